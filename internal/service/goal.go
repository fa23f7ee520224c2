package service

import (
	"context"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/tracker"
)

type GoalRequest struct {
	BedTime  string `json:"bed_time" validate:"required,hhmm"`
	WakeTime string `json:"wake_time" validate:"required,hhmm"`
}

func ValidateGoalRequest(req *GoalRequest) error {
	return validate.Struct(req)
}

// UpdateGoal saves the goal and marks onboarding as done.
func UpdateGoal(ctx context.Context, goals *tracker.Goals, store kv.Store, user *internal.User, req *GoalRequest) error {
	if err := goals.UpdateGoal(ctx, user.ID, req.BedTime, req.WakeTime); err != nil {
		return err
	}
	return kv.SetBool(ctx, store, user.ID, kv.IsFirstTime, false)
}
