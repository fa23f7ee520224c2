package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/motion"
	"github.com/yourname/fixyoursleep/internal/storage"
	"github.com/yourname/fixyoursleep/internal/tracker"
	"github.com/yourname/fixyoursleep/internal/vision"
)

func newStore(t *testing.T) *storage.FileStorage {
	dir := t.TempDir()
	s, err := storage.NewFileStorage(filepath.Join(dir, "profiles.json"), filepath.Join(dir, "sleep.json"), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestValidateGoalRequest(t *testing.T) {
	assert.NoError(t, ValidateGoalRequest(&GoalRequest{BedTime: "22:30", WakeTime: "06:45"}))
	assert.Error(t, ValidateGoalRequest(&GoalRequest{BedTime: "22:30"}))
	assert.Error(t, ValidateGoalRequest(&GoalRequest{BedTime: "25:00", WakeTime: "06:45"}))
	assert.Error(t, ValidateGoalRequest(&GoalRequest{BedTime: "late", WakeTime: "06:45"}))
}

func TestCreateProfileIsIdempotent(t *testing.T) {
	store := newStore(t)
	mem := kv.NewMemory()
	ctx := context.Background()
	user := &internal.User{ID: "u1", Email: "ada@example.com"}

	p, created, err := CreateProfile(ctx, store, mem, user, &ProfileRequest{UserName: "Ada"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.False(t, p.HasGoal())

	first, err := kv.GetBool(ctx, mem, "u1", kv.IsFirstTime)
	require.NoError(t, err)
	assert.True(t, first)

	p, created, err = CreateProfile(ctx, store, mem, user, &ProfileRequest{UserName: "Someone else"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ada", p.UserName)
}

func TestUpdateGoalEndsOnboarding(t *testing.T) {
	store := newStore(t)
	mem := kv.NewMemory()
	ctx := context.Background()
	user := &internal.User{ID: "u1"}
	_, _, err := CreateProfile(ctx, store, mem, user, &ProfileRequest{UserName: "Ada"})
	require.NoError(t, err)

	goals := tracker.NewGoals(store, mem, nil, internal.NopLogger())
	require.NoError(t, UpdateGoal(ctx, goals, mem, user, &GoalRequest{BedTime: "23:00", WakeTime: "07:00"}))

	first, err := kv.GetBool(ctx, mem, "u1", kv.IsFirstTime)
	require.NoError(t, err)
	assert.False(t, first)

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "07:00", p.WakeTime)
}

func entry(day string, completed bool) internal.SleepLogEntry {
	d, _ := calendar.ParseDay(day)
	return internal.SleepLogEntry{Date: d.Start(time.Local), IsCompleted: completed}
}

func TestCalculateSleepStats(t *testing.T) {
	byDay := map[calendar.Day][]internal.SleepLogEntry{}
	for _, e := range []internal.SleepLogEntry{
		entry("2025-01-01", true),
		entry("2025-01-02", true),
		entry("2025-01-03", true),
		entry("2025-01-04", false),
		entry("2025-01-06", true),
		entry("2025-01-07", true),
	} {
		d := calendar.DayOf(e.Date)
		byDay[d] = append(byDay[d], e)
	}
	today, _ := calendar.ParseDay("2025-01-08")

	stats := CalculateSleepStats(byDay, today)
	assert.Equal(t, 6, stats.TotalLogs)
	assert.Equal(t, 5, stats.CompletedDays)
	assert.InDelta(t, 5.0/6.0, stats.CompletionRate, 1e-9)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)

	empty := CalculateSleepStats(nil, today)
	assert.Zero(t, empty.CompletionRate)
	assert.Zero(t, empty.CurrentStreak)
}

func TestParseDays(t *testing.T) {
	days, err := ParseDays("2025-01-01, 2025-01-02,")
	require.NoError(t, err)
	assert.Len(t, days, 2)

	_, err = ParseDays("")
	assert.Error(t, err)
	_, err = ParseDays("2025-13-01")
	assert.Error(t, err)
}

type sensorStub struct{}

func (sensorStub) Subscribe(time.Duration, func(motion.Acceleration), func(error)) (motion.Subscription, error) {
	return 1, nil
}
func (sensorStub) Unsubscribe(motion.Subscription) {}

type labelerStub []vision.Label

func (l labelerStub) Labels(context.Context, []byte) ([]vision.Label, error) { return l, nil }

func newSessions(t *testing.T, labels labelerStub) (*Sessions, *kv.Memory) {
	store := newStore(t)
	mem := kv.NewMemory()
	logger := internal.NopLogger()
	clock := clockwork.NewFakeClock()
	factory := func(userID string) *tracker.Tracker {
		return tracker.New(userID, tracker.Deps{
			Goals:   tracker.NewGoals(store, mem, nil, logger),
			Logbook: tracker.NewLogbook(store, tracker.RejectDuplicates, time.Local),
			KV:      mem,
			Sensor:  sensorStub{},
			Clock:   clock,
			Logger:  logger,
		}, tracker.DefaultOptions())
	}
	s := NewSessions(factory, mem, labels, 600, logger)
	t.Cleanup(s.Close)
	return s, mem
}

func TestSessionsRoutineFlow(t *testing.T) {
	s, mem := newSessions(t, labelerStub{{Description: "Book", Score: 0.9}})
	ctx := context.Background()

	_, err := s.Get("u1")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	s.Start(ctx, "u1")
	_, err = s.StartCountdown("u1", 0)
	assert.ErrorIs(t, err, internal.ErrStepOutOfOrder)

	_, err = s.VerifyRelaxPhoto(ctx, "u1", []byte("jpeg"))
	assert.ErrorIs(t, err, internal.ErrStepOutOfOrder)

	_, err = s.CompleteStep(ctx, "u1", tracker.StepFocus)
	require.NoError(t, err)
	labels, err := s.VerifyRelaxPhoto(ctx, "u1", []byte("jpeg"))
	require.NoError(t, err)
	assert.Len(t, labels, 1)
	steps, err := s.CompleteStep(ctx, "u1", tracker.StepPutAway)
	require.NoError(t, err)
	assert.Len(t, steps, 3)

	cd, err := s.StartCountdown("u1", 0)
	require.NoError(t, err)
	assert.Equal(t, 600, cd.Total())
	require.NoError(t, s.CancelCountdown("u1"))

	sleeping, err := kv.GetBool(ctx, mem, "u1", kv.IsSleepingRightNow)
	require.NoError(t, err)
	assert.True(t, sleeping)

	require.NoError(t, s.End(ctx, "u1"))
	sleeping, err = kv.GetBool(ctx, mem, "u1", kv.IsSleepingRightNow)
	require.NoError(t, err)
	assert.False(t, sleeping)
	assert.ErrorIs(t, s.End(ctx, "u1"), internal.ErrNotFound)
}

func TestRelaxPhotoWithoutBook(t *testing.T) {
	s, _ := newSessions(t, labelerStub{{Description: "Cat"}})
	ctx := context.Background()
	s.Start(ctx, "u1")
	_, err := s.CompleteStep(ctx, "u1", tracker.StepFocus)
	require.NoError(t, err)

	_, err = s.VerifyRelaxPhoto(ctx, "u1", []byte("jpeg"))
	assert.ErrorIs(t, err, ErrNoBookDetected)

	tr, err := s.Get("u1")
	require.NoError(t, err)
	assert.False(t, tr.Snapshot().Steps[1].IsCompleted)
}

func TestStartReplacesTracker(t *testing.T) {
	s, mem := newSessions(t, nil)
	ctx := context.Background()
	first := s.Start(ctx, "u1")
	require.NoError(t, kv.SetBool(ctx, mem, "u1", kv.IsSleepingRightNow, true))

	second := s.Start(ctx, "u1")
	assert.NotSame(t, first, second)
	sleeping, err := kv.GetBool(ctx, mem, "u1", kv.IsSleepingRightNow)
	require.NoError(t, err)
	assert.False(t, sleeping, "a replaced routine no longer marks the user asleep")

	_, err = first.BeginCountdown(3, nil)
	assert.ErrorIs(t, err, tracker.ErrClosed)
}
