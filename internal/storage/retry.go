package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yourname/fixyoursleep/internal"
)

// RetryStore retries transient failures of the wrapped store a bounded number
// of times. Not-found, invalid-document and context errors are returned at once.
type RetryStore struct {
	inner      Store
	attempts   uint64
	newBackOff func() backoff.BackOff
	logger     internal.Logger
}

func NewRetryStore(inner Store, attempts int, logger internal.Logger) *RetryStore {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryStore{
		inner:    inner,
		attempts: uint64(attempts),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
		logger: logger,
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, internal.ErrNotFound) ||
		errors.Is(err, internal.ErrInvalidDocument) ||
		errors.Is(err, internal.ErrDuplicateEntry) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func retryValue[T any](ctx context.Context, r *RetryStore, op string, fn func() (T, error)) (T, error) {
	var out T
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.attempts-1), ctx)
	err := backoff.RetryNotify(func() error {
		v, err := fn()
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}, b, func(err error, wait time.Duration) {
		r.logger.Warnf("storage: %s failed, retrying in %s: %v", op, wait, err)
	})
	return out, err
}

func retry(ctx context.Context, r *RetryStore, op string, fn func() error) error {
	_, err := retryValue(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (r *RetryStore) GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error) {
	return retryValue(ctx, r, "get profile", func() (*internal.GoalProfile, error) {
		return r.inner.GetProfile(ctx, userID)
	})
}

func (r *RetryStore) PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error) {
	return retryValue(ctx, r, "put profile", func() (*internal.GoalProfile, error) {
		return r.inner.PutProfile(ctx, profile)
	})
}

func (r *RetryStore) UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error {
	return retry(ctx, r, "update goal", func() error {
		return r.inner.UpdateGoalFields(ctx, userID, fields)
	})
}

func (r *RetryStore) SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error {
	return retry(ctx, r, "save sleep log", func() error {
		return r.inner.SaveSleepLog(ctx, userID, entry)
	})
}

func (r *RetryStore) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	return retryValue(ctx, r, "list sleep logs", func() ([]internal.SleepLogEntry, error) {
		return r.inner.ListSleepLogs(ctx, userID)
	})
}

func (r *RetryStore) DeleteSleepLog(ctx context.Context, userID, id string) error {
	return retry(ctx, r, "delete sleep log", func() error {
		return r.inner.DeleteSleepLog(ctx, userID, id)
	})
}

func (r *RetryStore) Close() error {
	return r.inner.Close()
}

var _ Store = (*RetryStore)(nil)
