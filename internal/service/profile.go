package service

import (
	"context"
	"errors"
	"time"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/storage"
)

type ProfileRequest struct {
	UserName string `json:"user_name" validate:"required,max=64"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

func ValidateProfileRequest(req *ProfileRequest) error {
	return validate.Struct(req)
}

// CreateProfile creates the empty goal profile a new account starts with. An
// existing profile is returned unchanged with created == false.
func CreateProfile(ctx context.Context, profiles storage.ProfileStore, store kv.Store, user *internal.User, req *ProfileRequest) (*internal.GoalProfile, bool, error) {
	existing, err := profiles.GetProfile(ctx, user.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, internal.ErrNotFound) {
		return nil, false, err
	}

	email := req.Email
	if email == "" {
		email = user.Email
	}
	now := time.Now().UTC()
	profile, err := profiles.PutProfile(ctx, &internal.GoalProfile{
		UserID:    user.ID,
		UserName:  req.UserName,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, false, err
	}
	if err := store.Set(ctx, user.ID, kv.Username, req.UserName); err != nil {
		return profile, true, err
	}
	if err := kv.SetBool(ctx, store, user.ID, kv.IsFirstTime, true); err != nil {
		return profile, true, err
	}
	return profile, true, nil
}
