package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/notify"
	"github.com/yourname/fixyoursleep/internal/storage"
)

// Goals updates the bedtime/wake-time goal and answers wake time lookups.
type Goals struct {
	profiles storage.ProfileStore
	kv       kv.Store
	notifier notify.Scheduler
	logger   internal.Logger
}

// NewGoals accepts a nil notifier; reminders are then skipped.
func NewGoals(profiles storage.ProfileStore, store kv.Store, notifier notify.Scheduler, logger internal.Logger) *Goals {
	return &Goals{profiles: profiles, kv: store, notifier: notifier, logger: logger}
}

// UpdateGoal writes both times as a partial update. Only presence is checked
// here. The widget keys and the bedtime reminder follow a successful write;
// their failures are logged, not returned.
func (g *Goals) UpdateGoal(ctx context.Context, userID, bedTime, wakeTime string) error {
	bedTime, wakeTime = strings.TrimSpace(bedTime), strings.TrimSpace(wakeTime)
	if bedTime == "" || wakeTime == "" {
		return internal.ErrInvalidGoal
	}
	if err := g.profiles.UpdateGoalFields(ctx, userID, internal.GoalFields{BedTime: &bedTime, WakeTime: &wakeTime}); err != nil {
		return err
	}

	if err := g.kv.Set(ctx, userID, kv.BedTimeGoal, bedTime); err != nil {
		g.logger.Warnf("goal: failed to store %s for %s: %v", kv.BedTimeGoal, userID, err)
	}
	if err := g.kv.Set(ctx, userID, kv.WakeTimeGoal, wakeTime); err != nil {
		g.logger.Warnf("goal: failed to store %s for %s: %v", kv.WakeTimeGoal, userID, err)
	}
	g.scheduleReminder(ctx, userID, bedTime)
	return nil
}

func (g *Goals) scheduleReminder(ctx context.Context, userID, bedTime string) {
	if g.notifier == nil {
		return
	}
	at, err := calendar.ParseTimeOfDay(bedTime)
	if err != nil {
		g.logger.Warnf("goal: no reminder for %s: %v", userID, err)
		return
	}
	perm, err := g.notifier.RequestPermission(ctx, userID)
	if err != nil {
		g.logger.Warnf("goal: permission request for %s failed: %v", userID, err)
		return
	}
	// An unanswered prompt reads as denied here; the scheduler holds the
	// reminder until the device answers.
	err = g.notifier.ScheduleDaily(ctx, userID, at, notify.ReminderTitle, notify.ReminderBody)
	switch {
	case errors.Is(err, internal.ErrPermissionDenied):
		g.logger.Infof("goal: notifications %s for %s, no bedtime reminder", perm, userID)
	case err != nil:
		g.logger.Warnf("goal: failed to schedule reminder for %s: %v", userID, err)
	}
}

// WakeTime prefers the locally kept goal and falls back to the profile. A
// user without a goal gets internal.ErrNotFound.
func (g *Goals) WakeTime(ctx context.Context, userID string) (calendar.TimeOfDay, error) {
	if v, ok, err := g.kv.Get(ctx, userID, kv.WakeTimeGoal); err != nil {
		g.logger.Warnf("goal: reading %s for %s: %v", kv.WakeTimeGoal, userID, err)
	} else if ok {
		if tod, err := calendar.ParseTimeOfDay(v); err == nil {
			return tod, nil
		}
		g.logger.Warnf("goal: ignoring malformed %s %q for %s", kv.WakeTimeGoal, v, userID)
	}

	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		return calendar.TimeOfDay{}, err
	}
	if !profile.HasGoal() {
		return calendar.TimeOfDay{}, fmt.Errorf("tracker: no goal for %s: %w", userID, internal.ErrNotFound)
	}
	tod, err := calendar.ParseTimeOfDay(profile.WakeTime)
	if err != nil {
		return calendar.TimeOfDay{}, fmt.Errorf("tracker: %v: %w", err, internal.ErrInvalidDocument)
	}
	return tod, nil
}
