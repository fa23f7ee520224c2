package storage

import (
	"context"

	"github.com/yourname/fixyoursleep/internal"
)

// ProfileStore holds one GoalProfile document per user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error)
	PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error)
	// UpdateGoalFields writes only the non-nil fields. It returns
	// internal.ErrNotFound when the profile does not exist.
	UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error
}

// SleepLogStore keeps the per-user sleep log collection. SaveSleepLog is an
// upsert keyed by entry ID; it does not enforce one entry per day.
type SleepLogStore interface {
	SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error
	ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error)
	DeleteSleepLog(ctx context.Context, userID, id string) error
}

type Store interface {
	ProfileStore
	SleepLogStore
	Close() error
}
