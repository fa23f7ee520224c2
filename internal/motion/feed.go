package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/yourname/fixyoursleep/internal"
)

// Controller asks a connected device to start or stop streaming samples.
type Controller interface {
	RequestSamples(userID string, interval time.Duration) error
	StopSamples(userID string) error
}

// Feed is a Sensor backed by samples pushed from the user's phone.
type Feed struct {
	mu     sync.Mutex
	ctrl   Controller
	nextID Subscription
	users  map[string]*device
	logger internal.Logger
}

type device struct {
	available bool
	subs      map[Subscription]subscriber
}

type subscriber struct {
	fn   func(Acceleration)
	lost func(error)
}

func NewFeed(ctrl Controller, logger internal.Logger) *Feed {
	return &Feed{ctrl: ctrl, users: make(map[string]*device), logger: logger}
}

func (f *Feed) device(userID string) *device {
	d, ok := f.users[userID]
	if !ok {
		d = &device{subs: make(map[Subscription]subscriber)}
		f.users[userID] = d
	}
	return d
}

// SetAvailable records whether the user's phone can currently stream samples.
// Going unavailable drops every subscription and reports it lost.
func (f *Feed) SetAvailable(userID string, available bool) {
	f.mu.Lock()
	d := f.device(userID)
	d.available = available
	if available || len(d.subs) == 0 {
		f.mu.Unlock()
		return
	}
	lost := make([]func(error), 0, len(d.subs))
	for id, s := range d.subs {
		if s.lost != nil {
			lost = append(lost, s.lost)
		}
		delete(d.subs, id)
	}
	f.mu.Unlock()

	err := fmt.Errorf("motion: user %s: %w", userID, internal.ErrSensorUnavailable)
	for _, fn := range lost {
		fn(err)
	}
}

func (f *Feed) Available(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.users[userID]
	return ok && d.available
}

// Push fans a sample out to the user's subscribers. Callbacks run on the
// caller's goroutine, outside the feed lock.
func (f *Feed) Push(userID string, a Acceleration) {
	f.mu.Lock()
	d, ok := f.users[userID]
	if !ok || len(d.subs) == 0 {
		f.mu.Unlock()
		return
	}
	fns := make([]func(Acceleration), 0, len(d.subs))
	for _, s := range d.subs {
		fns = append(fns, s.fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}

func (f *Feed) ForUser(userID string) Sensor {
	return &userSensor{feed: f, userID: userID}
}

type userSensor struct {
	feed   *Feed
	userID string
}

func (s *userSensor) Subscribe(interval time.Duration, fn func(Acceleration), lost func(error)) (Subscription, error) {
	f := s.feed
	f.mu.Lock()
	d := f.device(s.userID)
	if !d.available {
		f.mu.Unlock()
		return 0, fmt.Errorf("motion: user %s: %w", s.userID, internal.ErrSensorUnavailable)
	}
	f.nextID++
	id := f.nextID
	d.subs[id] = subscriber{fn: fn, lost: lost}
	first := len(d.subs) == 1
	f.mu.Unlock()

	if first && f.ctrl != nil {
		if err := f.ctrl.RequestSamples(s.userID, interval); err != nil {
			s.Unsubscribe(id)
			return 0, fmt.Errorf("motion: user %s: %w: %v", s.userID, internal.ErrSensorUnavailable, err)
		}
	}
	return id, nil
}

func (s *userSensor) Unsubscribe(sub Subscription) {
	f := s.feed
	f.mu.Lock()
	d, ok := f.users[s.userID]
	if !ok {
		f.mu.Unlock()
		return
	}
	_, had := d.subs[sub]
	delete(d.subs, sub)
	last := had && len(d.subs) == 0
	f.mu.Unlock()

	if last && f.ctrl != nil {
		if err := f.ctrl.StopSamples(s.userID); err != nil {
			f.logger.Warnf("motion: failed to stop samples for %s: %v", s.userID, err)
		}
	}
}
