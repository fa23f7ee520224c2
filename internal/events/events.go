// Package events carries tracker and reminder events to the user's phone.
package events

import (
	"context"
	"time"
)

const (
	CountdownStarted   = "countdown.started"
	CountdownTick      = "countdown.tick"
	CountdownFinished  = "countdown.finished"
	CountdownCancelled = "countdown.cancelled"
	MotionSubscribe    = "motion.subscribe"
	MotionUnsubscribe  = "motion.unsubscribe"
	SleepCompleted     = "sleep.completed"
	SleepInterrupted   = "sleep.interrupted"
	SleepUndetermined  = "sleep.undetermined"
	Notification       = "notification"
	PermissionRequest  = "notification.permission_request"
)

type Event struct {
	Type   string         `json:"type"`
	UserID string         `json:"-"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

func New(userID, typ string, data map[string]any) Event {
	return Event{Type: typ, UserID: userID, At: time.Now(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Presence reports whether the user's app is in the foreground, i.e. has a
// live connection.
type Presence interface {
	IsForeground(userID string) bool
}

// Discard drops every event; used when no device channel is wired.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
func (Discard) IsForeground(string) bool             { return false }
