package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/events"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/motion"
	"github.com/yourname/fixyoursleep/internal/notify"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]internal.GoalProfile
	logs     map[string][]internal.SleepLogEntry
	saves    int
}

func newMemStore() *memStore {
	return &memStore{profiles: map[string]internal.GoalProfile{}, logs: map[string][]internal.SleepLogEntry{}}
}

func (s *memStore) GetProfile(_ context.Context, userID string) (*internal.GoalProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) PutProfile(_ context.Context, p *internal.GoalProfile) (*internal.GoalProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = *p
	return p, nil
}

func (s *memStore) UpdateGoalFields(_ context.Context, userID string, f internal.GoalFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return internal.ErrNotFound
	}
	if f.BedTime != nil {
		p.BedTime = *f.BedTime
	}
	if f.WakeTime != nil {
		p.WakeTime = *f.WakeTime
	}
	s.profiles[userID] = p
	return nil
}

func (s *memStore) SaveSleepLog(_ context.Context, userID string, e *internal.SleepLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	for i, existing := range s.logs[userID] {
		if existing.ID == e.ID {
			s.logs[userID][i] = *e
			return nil
		}
	}
	s.logs[userID] = append(s.logs[userID], *e)
	return nil
}

func (s *memStore) ListSleepLogs(_ context.Context, userID string) ([]internal.SleepLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.SleepLogEntry(nil), s.logs[userID]...), nil
}

func (s *memStore) DeleteSleepLog(_ context.Context, userID, id string) error {
	return nil
}

func (s *memStore) entries(userID string) []internal.SleepLogEntry {
	out, _ := s.ListSleepLogs(context.Background(), userID)
	return out
}

type fakeSensor struct {
	mu           sync.Mutex
	available    bool
	next         motion.Subscription
	subs         map[motion.Subscription]func(motion.Acceleration)
	lost         map[motion.Subscription]func(error)
	subscribes   int
	unsubscribes int
}

func newFakeSensor(available bool) *fakeSensor {
	return &fakeSensor{
		available: available,
		subs:      map[motion.Subscription]func(motion.Acceleration){},
		lost:      map[motion.Subscription]func(error){},
	}
}

func (s *fakeSensor) Subscribe(_ time.Duration, fn func(motion.Acceleration), lost func(error)) (motion.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return 0, internal.ErrSensorUnavailable
	}
	s.next++
	s.subs[s.next] = fn
	s.lost[s.next] = lost
	s.subscribes++
	return s.next, nil
}

func (s *fakeSensor) Unsubscribe(sub motion.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		delete(s.lost, sub)
		s.unsubscribes++
	}
}

// drop simulates the device disconnecting mid-stream.
func (s *fakeSensor) drop() {
	s.mu.Lock()
	s.available = false
	lost := make([]func(error), 0, len(s.lost))
	for id, fn := range s.lost {
		lost = append(lost, fn)
		delete(s.subs, id)
		delete(s.lost, id)
	}
	s.mu.Unlock()
	for _, fn := range lost {
		fn(internal.ErrSensorUnavailable)
	}
}

func (s *fakeSensor) emit(z float64) {
	s.mu.Lock()
	fns := make([]func(motion.Acceleration), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(motion.Acceleration{Z: z})
	}
}

func (s *fakeSensor) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type recorder struct {
	mu         sync.Mutex
	events     []events.Event
	foreground bool
	// onPublish runs after the event is recorded, outside mu.
	onPublish func(events.Event)
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onPublish
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return nil
}

func (r *recorder) IsForeground(string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.foreground
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu        sync.Mutex
	perm      notify.Permission
	scheduled []calendar.TimeOfDay
	notified  []string
}

func (n *fakeNotifier) RequestPermission(context.Context, string) (notify.Permission, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm, nil
}

func (n *fakeNotifier) ScheduleDaily(_ context.Context, _ string, at calendar.TimeOfDay, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.perm != notify.Granted {
		return internal.ErrPermissionDenied
	}
	n.scheduled = append(n.scheduled, at)
	return nil
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.perm != notify.Granted {
		return internal.ErrPermissionDenied
	}
	n.notified = append(n.notified, title)
	return nil
}

func (n *fakeNotifier) notifications() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notified...)
}

type harness struct {
	tr       *Tracker
	clock    clockwork.FakeClock
	store    *memStore
	kv       *kv.Memory
	sensor   *fakeSensor
	rec      *recorder
	notifier *fakeNotifier

	mu       sync.Mutex
	resolved []Result
}

const testUser = "u1"

// newHarness builds a tracker for testUser with wake time 07:00 and the clock
// at the given local time on 2025-01-10.
func newHarness(t *testing.T, hour, minute int, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(time.Date(2025, 1, 10, hour, minute, 0, 0, time.Local)),
		store:    newMemStore(),
		kv:       kv.NewMemory(),
		sensor:   newFakeSensor(true),
		rec:      &recorder{foreground: true},
		notifier: &fakeNotifier{perm: notify.Granted},
	}
	_, err := h.store.PutProfile(context.Background(), &internal.GoalProfile{UserID: testUser, BedTime: "23:00", WakeTime: "07:00"})
	require.NoError(t, err)

	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	logger := internal.NopLogger()
	h.tr = New(testUser, Deps{
		Goals:    NewGoals(h.store, h.kv, h.notifier, logger),
		Logbook:  NewLogbook(h.store, RejectDuplicates, time.Local),
		KV:       h.kv,
		Sensor:   h.sensor,
		Notifier: h.notifier,
		Events:   h.rec,
		Presence: h.rec,
		Clock:    h.clock,
		Logger:   logger,
		OnResolved: func(r Result) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.resolved = append(h.resolved, r)
		},
	}, o)
	t.Cleanup(h.tr.Close)
	return h
}

func (h *harness) results() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Result(nil), h.resolved...)
}

// second advances the clock one second and waits for the tick to land.
func (h *harness) second(t *testing.T, wantRemaining int) {
	t.Helper()
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return h.tr.Snapshot().Remaining == wantRemaining
	}, time.Second, time.Millisecond)
}

func (h *harness) sleeping(t *testing.T) bool {
	t.Helper()
	v, err := kv.GetBool(context.Background(), h.kv, testUser, kv.IsSleepingRightNow)
	require.NoError(t, err)
	return v
}
