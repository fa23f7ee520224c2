package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
)

func day(t *testing.T, s string) calendar.Day {
	d, err := calendar.ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestFetchLogStatusBucketsByDay(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.SaveSleepLog(ctx, "u1", &internal.SleepLogEntry{
		ID: "a", UserID: "u1", Date: time.Date(2025, 1, 1, 7, 30, 0, 0, time.Local), IsCompleted: true,
	}))
	require.NoError(t, store.SaveSleepLog(ctx, "u1", &internal.SleepLogEntry{
		ID: "b", UserID: "u1", Date: time.Date(2025, 1, 2, 23, 59, 0, 0, time.Local), IsCompleted: false,
	}))
	require.NoError(t, store.SaveSleepLog(ctx, "u2", &internal.SleepLogEntry{
		ID: "c", UserID: "u2", Date: time.Date(2025, 1, 3, 7, 0, 0, 0, time.Local), IsCompleted: true,
	}))

	lb := NewLogbook(store, RejectDuplicates, time.Local)
	status, err := lb.FetchLogStatus(ctx, "u1", []calendar.Day{
		day(t, "2025-01-01"), day(t, "2025-01-02"), day(t, "2025-01-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[calendar.Day]bool{
		day(t, "2025-01-01"): true,
		day(t, "2025-01-02"): false,
		day(t, "2025-01-03"): false,
	}, status)
}

func TestFetchLogStatusUsesLocalDay(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*3600)
	// 2025-01-01 20:00 UTC is already 2025-01-02 in Tokyo.
	require.NoError(t, store.SaveSleepLog(ctx, "u1", &internal.SleepLogEntry{
		ID: "a", UserID: "u1", Date: time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC), IsCompleted: true,
	}))

	status, err := NewLogbook(store, RejectDuplicates, tokyo).FetchLogStatus(ctx, "u1", []calendar.Day{
		day(t, "2025-01-01"), day(t, "2025-01-02"),
	})
	require.NoError(t, err)
	assert.False(t, status[day(t, "2025-01-01")])
	assert.True(t, status[day(t, "2025-01-02")])
}

func TestRecordRejectsSecondLogForDay(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	lb := NewLogbook(store, RejectDuplicates, time.Local)

	morning := time.Date(2025, 1, 10, 7, 15, 0, 0, time.Local)
	first, err := lb.Record(ctx, "u1", morning, true)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = lb.Record(ctx, "u1", morning.Add(2*time.Hour), false)
	assert.ErrorIs(t, err, internal.ErrDuplicateEntry)

	entries := store.entries("u1")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsCompleted)

	_, err = lb.Record(ctx, "u1", morning.AddDate(0, 0, 1), true)
	require.NoError(t, err)
	assert.Len(t, store.entries("u1"), 2)
}

func TestRecordCompletedReplacesInterruption(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	lb := NewLogbook(store, RejectDuplicates, time.Local)

	night := time.Date(2025, 1, 10, 2, 30, 0, 0, time.Local)
	interrupted, err := lb.Record(ctx, "u1", night, false)
	require.NoError(t, err)
	_, err = lb.Record(ctx, "u1", night.Add(time.Hour), false)
	assert.ErrorIs(t, err, internal.ErrDuplicateEntry)

	completed, err := lb.Record(ctx, "u1", night.Add(5*time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, interrupted.ID, completed.ID)

	entries := store.entries("u1")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsCompleted)

	_, err = lb.Record(ctx, "u1", night.Add(6*time.Hour), true)
	assert.ErrorIs(t, err, internal.ErrDuplicateEntry)
}

func TestRecordOverwritesSecondLogForDay(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	lb := NewLogbook(store, OverwriteDuplicates, time.Local)

	morning := time.Date(2025, 1, 10, 7, 15, 0, 0, time.Local)
	first, err := lb.Record(ctx, "u1", morning, false)
	require.NoError(t, err)
	second, err := lb.Record(ctx, "u1", morning.Add(time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	entries := store.entries("u1")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsCompleted)
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RejectDuplicates, p)

	p, err = ParseDuplicatePolicy(" Overwrite ")
	require.NoError(t, err)
	assert.Equal(t, OverwriteDuplicates, p)

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}
