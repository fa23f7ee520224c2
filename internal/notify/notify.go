// Package notify keeps per-user notification permission and the daily bedtime
// reminder. Delivery goes to the phone through an events.Publisher.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/events"
)

const (
	ReminderTitle = "Time to Sleep!"
	ReminderBody  = "Put down your phone and get some rest."
)

type Permission string

const (
	Granted       Permission = "granted"
	Denied        Permission = "denied"
	NotDetermined Permission = "not_determined"
)

type Scheduler interface {
	RequestPermission(ctx context.Context, userID string) (Permission, error)
	ScheduleDaily(ctx context.Context, userID string, at calendar.TimeOfDay, title, body string) error
	Notify(ctx context.Context, userID, title, body string) error
}

type reminder struct {
	at        calendar.TimeOfDay
	title     string
	body      string
	lastFired calendar.Day
	// pending reminders wait for the device to answer the permission prompt.
	pending bool
}

// arm makes the reminder live as of now. A slot already passed today starts
// tomorrow.
func (rem *reminder) arm(now time.Time) {
	rem.pending = false
	if rem.at.ReachedBy(now) {
		rem.lastFired = calendar.DayOf(now)
	}
}

// Reminders is a polling daily scheduler. Each user has at most one daily
// reminder; scheduling again replaces it.
type Reminders struct {
	mu          sync.Mutex
	permissions map[string]Permission
	reminders   map[string]*reminder

	pub      events.Publisher
	clock    clockwork.Clock
	interval time.Duration
	logger   internal.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewReminders(pub events.Publisher, clock clockwork.Clock, interval time.Duration, logger internal.Logger) *Reminders {
	return &Reminders{
		permissions: make(map[string]Permission),
		reminders:   make(map[string]*reminder),
		pub:         pub,
		clock:       clock,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetPermission records the answer the device gave to the OS prompt. A
// reminder held for that answer starts when granted and is dropped when
// denied.
func (r *Reminders) SetPermission(userID string, granted bool) Permission {
	p := Denied
	if granted {
		p = Granted
	}
	r.mu.Lock()
	r.permissions[userID] = p
	rem, ok := r.reminders[userID]
	held := ok && rem.pending
	if held {
		if granted {
			rem.arm(r.clock.Now())
		} else {
			delete(r.reminders, userID)
		}
	}
	r.mu.Unlock()
	if held && granted {
		r.logger.Infof("daily reminder for user %s activated at %s", userID, rem.at)
	}
	return p
}

func (r *Reminders) Permission(userID string) Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.permissions[userID]; ok {
		return p
	}
	return NotDetermined
}

// RequestPermission asks the device to prompt the user when no answer has been
// recorded yet. Until the device reports back the request counts as denied.
func (r *Reminders) RequestPermission(ctx context.Context, userID string) (Permission, error) {
	p := r.Permission(userID)
	if p != NotDetermined {
		return p, nil
	}
	if err := r.pub.Publish(ctx, events.New(userID, events.PermissionRequest, nil)); err != nil {
		return Denied, err
	}
	return Denied, nil
}

// ScheduleDaily sets the user's daily reminder. With the permission prompt
// still unanswered the reminder is held and starts once SetPermission grants
// it.
func (r *Reminders) ScheduleDaily(ctx context.Context, userID string, at calendar.TimeOfDay, title, body string) error {
	rem := &reminder{at: at, title: title, body: body}
	r.mu.Lock()
	switch r.permissions[userID] {
	case Granted:
		rem.arm(r.clock.Now())
	case Denied:
		r.mu.Unlock()
		return internal.ErrPermissionDenied
	default:
		rem.pending = true
	}
	r.reminders[userID] = rem
	r.mu.Unlock()

	if rem.pending {
		r.logger.Infof("daily reminder for user %s at %s held until permission is answered", userID, at)
	} else {
		r.logger.Infof("daily reminder for user %s scheduled at %s", userID, at)
	}
	return nil
}

func (r *Reminders) Cancel(userID string) {
	r.mu.Lock()
	delete(r.reminders, userID)
	r.mu.Unlock()
}

func (r *Reminders) Notify(ctx context.Context, userID, title, body string) error {
	if r.Permission(userID) != Granted {
		return internal.ErrPermissionDenied
	}
	return r.pub.Publish(ctx, events.New(userID, events.Notification, map[string]any{
		"title": title,
		"body":  body,
	}))
}

func (r *Reminders) Start() {
	go r.loop()
	r.logger.Infof("reminder scheduler started (poll every %s)", r.interval)
}

func (r *Reminders) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.done
}

func (r *Reminders) loop() {
	defer close(r.done)
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			r.fireDue(context.Background(), r.clock.Now())
		}
	}
}

type due struct {
	userID, title, body string
}

func (r *Reminders) fireDue(ctx context.Context, now time.Time) {
	today := calendar.DayOf(now)
	var fire []due

	r.mu.Lock()
	for userID, rem := range r.reminders {
		if rem.pending || rem.lastFired == today || !rem.at.ReachedBy(now) {
			continue
		}
		rem.lastFired = today
		fire = append(fire, due{userID: userID, title: rem.title, body: rem.body})
	}
	r.mu.Unlock()

	for _, d := range fire {
		if err := r.Notify(ctx, d.userID, d.title, d.body); err != nil {
			r.logger.Warnf("reminder for user %s not delivered: %v", d.userID, err)
		}
	}
}

var _ Scheduler = (*Reminders)(nil)
