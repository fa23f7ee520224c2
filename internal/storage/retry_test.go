package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
)

type flakyStore struct {
	Store
	failures int
	calls    int
	err      error
}

func (f *flakyStore) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []internal.SleepLogEntry{{ID: "a"}}, nil
}

func newTestRetryStore(inner Store, attempts int) *RetryStore {
	r := NewRetryStore(inner, attempts, internal.NopLogger())
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func TestRetryStoreRetriesTransientErrors(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("connection reset")}
	r := newTestRetryStore(inner, 3)

	logs, err := r.ListSleepLogs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStoreGivesUpAfterAttempts(t *testing.T) {
	inner := &flakyStore{failures: 10, err: errors.New("connection reset")}
	r := newTestRetryStore(inner, 3)

	_, err := r.ListSleepLogs(context.Background(), "u1")
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStoreDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyStore{failures: 10, err: internal.ErrNotFound}
	r := newTestRetryStore(inner, 3)

	_, err := r.ListSleepLogs(context.Background(), "u1")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	assert.Equal(t, 1, inner.calls)
}
