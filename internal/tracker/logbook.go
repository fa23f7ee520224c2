package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/storage"
)

// DuplicatePolicy decides what happens to a second log for the same day.
type DuplicatePolicy string

const (
	RejectDuplicates    DuplicatePolicy = "reject"
	OverwriteDuplicates DuplicatePolicy = "overwrite"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RejectDuplicates, OverwriteDuplicates:
		return p, nil
	case "":
		return RejectDuplicates, nil
	default:
		return "", fmt.Errorf("tracker: unknown duplicate log policy %q", s)
	}
}

// Logbook buckets sleep logs by local day and enforces one log per day.
type Logbook struct {
	logs   storage.SleepLogStore
	policy DuplicatePolicy
	loc    *time.Location
}

func NewLogbook(logs storage.SleepLogStore, policy DuplicatePolicy, loc *time.Location) *Logbook {
	if policy == "" {
		policy = RejectDuplicates
	}
	if loc == nil {
		loc = time.Local
	}
	return &Logbook{logs: logs, policy: policy, loc: loc}
}

func (l *Logbook) Policy() DuplicatePolicy { return l.policy }

func (l *Logbook) DayOf(t time.Time) calendar.Day {
	return calendar.DayOf(t.In(l.loc))
}

// ByDay fetches every entry of the user and indexes it by local day.
func (l *Logbook) ByDay(ctx context.Context, userID string) (map[calendar.Day][]internal.SleepLogEntry, error) {
	entries, err := l.logs.ListSleepLogs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[calendar.Day][]internal.SleepLogEntry, len(entries))
	for _, e := range entries {
		d := l.DayOf(e.Date)
		out[d] = append(out[d], e)
	}
	return out, nil
}

// FetchLogStatus reports, for each requested day, whether a completed entry
// exists. Days without any entry report false.
func (l *Logbook) FetchLogStatus(ctx context.Context, userID string, days []calendar.Day) (map[calendar.Day]bool, error) {
	byDay, err := l.ByDay(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := make(map[calendar.Day]bool, len(days))
	for _, d := range days {
		status[d] = anyCompleted(byDay[d])
	}
	return status, nil
}

// Record writes the log for the day at falls on.
func (l *Logbook) Record(ctx context.Context, userID string, at time.Time, completed bool) (*internal.SleepLogEntry, error) {
	day := l.DayOf(at)
	byDay, err := l.ByDay(ctx, userID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if existing := byDay[day]; len(existing) > 0 {
		// Under reject, a completed night may still replace an interruption.
		if l.policy == RejectDuplicates && (!completed || anyCompleted(existing)) {
			return nil, fmt.Errorf("tracker: %s: %w", day, internal.ErrDuplicateEntry)
		}
		id = existing[0].ID
	}

	entry := &internal.SleepLogEntry{
		ID:          id,
		UserID:      userID,
		Date:        at,
		IsCompleted: completed,
		CreatedAt:   at,
	}
	if err := l.logs.SaveSleepLog(ctx, userID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func anyCompleted(entries []internal.SleepLogEntry) bool {
	for _, e := range entries {
		if e.IsCompleted {
			return true
		}
	}
	return false
}
