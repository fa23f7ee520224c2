package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/events"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/notify"
)

func newGoals(t *testing.T, perm notify.Permission) (*Goals, *memStore, *kv.Memory, *fakeNotifier) {
	store := newMemStore()
	_, err := store.PutProfile(context.Background(), &internal.GoalProfile{UserID: "u1", UserName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	mem := kv.NewMemory()
	n := &fakeNotifier{perm: perm}
	return NewGoals(store, mem, n, internal.NopLogger()), store, mem, n
}

func TestUpdateGoalIsPartial(t *testing.T) {
	g, store, mem, n := newGoals(t, notify.Granted)
	ctx := context.Background()

	require.NoError(t, g.UpdateGoal(ctx, "u1", "22:30", "06:45"))

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "22:30", p.BedTime)
	assert.Equal(t, "06:45", p.WakeTime)
	assert.Equal(t, "Ada", p.UserName)
	assert.Equal(t, "ada@example.com", p.Email)

	v, ok, err := mem.Get(ctx, "u1", kv.WakeTimeGoal)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "06:45", v)

	require.Len(t, n.scheduled, 1)
	assert.Equal(t, "22:30", n.scheduled[0].String())
}

func TestUpdateGoalRequiresBothTimes(t *testing.T) {
	g, _, _, _ := newGoals(t, notify.Granted)
	assert.ErrorIs(t, g.UpdateGoal(context.Background(), "u1", "22:30", " "), internal.ErrInvalidGoal)
	assert.ErrorIs(t, g.UpdateGoal(context.Background(), "u1", "", "06:00"), internal.ErrInvalidGoal)
}

func TestUpdateGoalSurfacesStoreFailure(t *testing.T) {
	g, _, _, _ := newGoals(t, notify.Granted)
	err := g.UpdateGoal(context.Background(), "nobody", "22:30", "06:45")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func TestDeniedNotificationsDoNotFailGoalUpdate(t *testing.T) {
	g, store, _, n := newGoals(t, notify.Denied)
	require.NoError(t, g.UpdateGoal(context.Background(), "u1", "22:30", "06:45"))
	assert.Empty(t, n.scheduled)

	p, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, p.HasGoal())
}

func TestWakeTimeFallsBackToProfile(t *testing.T) {
	g, store, mem, _ := newGoals(t, notify.Granted)
	ctx := context.Background()

	_, err := g.WakeTime(ctx, "u1")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	require.NoError(t, store.UpdateGoalFields(ctx, "u1", internal.GoalFields{
		BedTime: ptr("23:00"), WakeTime: ptr("07:00"),
	}))
	wake, err := g.WakeTime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "07:00", wake.String())

	require.NoError(t, mem.Set(ctx, "u1", kv.WakeTimeGoal, "not-a-time"))
	wake, err = g.WakeTime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "07:00", wake.String())

	require.NoError(t, mem.Set(ctx, "u1", kv.WakeTimeGoal, "06:10"))
	wake, err = g.WakeTime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "06:10", wake.String())
}

func ptr(s string) *string { return &s }

func TestReminderFromOnboardingStartsOnceGranted(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_, err := store.PutProfile(ctx, &internal.GoalProfile{UserID: "u1", UserName: "Ada"})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 10, 20, 0, 0, 0, time.Local))
	rec := &recorder{}
	reminders := notify.NewReminders(rec, clock, time.Minute, internal.NopLogger())
	g := NewGoals(store, kv.NewMemory(), reminders, internal.NopLogger())

	require.NoError(t, g.UpdateGoal(ctx, "u1", "23:00", "07:00"))
	assert.Equal(t, 1, rec.count(events.PermissionRequest))

	reminders.SetPermission("u1", true)
	reminders.Start()
	defer reminders.Stop()
	clock.BlockUntil(1)
	clock.Advance(3 * time.Hour)

	assert.Eventually(t, func() bool { return rec.count(events.Notification) == 1 }, time.Second, 5*time.Millisecond)
}
