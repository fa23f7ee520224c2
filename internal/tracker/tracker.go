// Package tracker drives a sleep attempt: the wind-down checklist, the
// countdown, motion-based pickup detection and the single resolution that
// turns a pickup into a logged outcome.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/events"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/motion"
	"github.com/yourname/fixyoursleep/internal/notify"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseCountingDown Phase = "counting-down"
	PhaseMonitoring   Phase = "monitoring"
	PhaseResolved     Phase = "resolved"
)

const (
	interruptedTitle = "Sleep interrupted"
	interruptedBody  = "You picked up your phone before your wake time."
)

var (
	ErrClosed          = errors.New("tracker: closed")
	ErrInvalidDuration = errors.New("tracker: countdown duration must be positive")
)

type Options struct {
	PickupThreshold     float64
	PickupDebounce      time.Duration
	SampleInterval      time.Duration
	Axis                motion.Axis
	RecordInterruptions bool
}

func DefaultOptions() Options {
	return Options{
		PickupThreshold: 0.6,
		PickupDebounce:  500 * time.Millisecond,
		SampleInterval:  time.Second,
		Axis:            motion.AxisZ,
	}
}

type Deps struct {
	Goals    *Goals
	Logbook  *Logbook
	KV       kv.Store
	Sensor   motion.Sensor
	Notifier notify.Scheduler
	Events   events.Publisher
	Presence events.Presence
	Clock    clockwork.Clock
	Logger   internal.Logger
	// OnResolved, when set, is called once per resolved attempt.
	OnResolved func(Result)
}

// Result is how an attempt ended.
type Result struct {
	Attempt uint64                  `json:"attempt"`
	Outcome internal.Outcome        `json:"outcome"`
	At      time.Time               `json:"at"`
	Entry   *internal.SleepLogEntry `json:"entry,omitempty"`
	Err     error                   `json:"-"`
}

type Snapshot struct {
	Steps       []internal.RoutineStep `json:"steps"`
	Phase       Phase                  `json:"phase"`
	Attempt     uint64                 `json:"attempt"`
	Remaining   int                    `json:"remaining"`
	Display     string                 `json:"remaining_display"`
	Outcome     internal.Outcome       `json:"outcome,omitempty"`
	RoutineDone bool                   `json:"routine_done"`
}

// Tracker is one user's sleep session. All state sits behind mu; ticks,
// samples and the debounce timer arrive on their own goroutines and are
// serialized there. Callbacks and I/O run with mu released.
type Tracker struct {
	userID string
	deps   Deps
	opts   Options
	ctx    context.Context
	stop   context.CancelFunc

	mu         sync.Mutex
	closed     bool
	routine    *Routine
	phase      Phase
	attempt    uint64
	outcome    internal.Outcome
	remaining  int
	stopTick   chan struct{}
	onFinished func(error)
	sub        motion.Subscription
	subscribed bool
	debounce   clockwork.Timer
	armID      uint64
}

func New(userID string, deps Deps, opts Options) *Tracker {
	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	if deps.Presence == nil {
		deps.Presence = events.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = internal.NopLogger()
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.Axis == "" {
		opts.Axis = motion.AxisZ
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		userID:  userID,
		deps:    deps,
		opts:    opts,
		ctx:     ctx,
		stop:    cancel,
		routine: NewRoutine(),
		phase:   PhaseIdle,
	}
}

func (t *Tracker) UserID() string { return t.userID }

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Steps:       t.routine.Steps(),
		Phase:       t.phase,
		Attempt:     t.attempt,
		Outcome:     t.outcome,
		RoutineDone: t.routine.Done(),
	}
	if t.phase == PhaseCountingDown {
		s.Remaining = t.remaining
	}
	s.Display = FormatSeconds(s.Remaining)
	return s
}

// CompleteStep advances the checklist. Finishing the last step marks the user
// as sleeping.
func (t *Tracker) CompleteStep(ctx context.Context, i int) ([]internal.RoutineStep, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if err := t.routine.Complete(i); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	steps := t.routine.Steps()
	done := t.routine.Done()
	t.mu.Unlock()

	if done {
		if err := kv.SetBool(ctx, t.deps.KV, t.userID, kv.IsSleepingRightNow, true); err != nil {
			return steps, err
		}
	}
	return steps, nil
}

func (t *Tracker) RoutineDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.routine.Done()
}

// BeginCountdown starts a new attempt with a one-second tick. Whatever the
// previous attempt still held is released first. onFinished is called once
// when the countdown reaches zero, with the result of starting motion
// monitoring; it is never called for a cancelled countdown.
func (t *Tracker) BeginCountdown(seconds int, onFinished func(error)) (*Countdown, error) {
	if seconds <= 0 {
		return nil, ErrInvalidDuration
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	sub, hadSub := t.releaseLocked()
	t.attempt++
	attempt := t.attempt
	t.phase = PhaseCountingDown
	t.outcome = internal.OutcomeNone
	t.remaining = seconds
	t.onFinished = onFinished
	stop := make(chan struct{})
	t.stopTick = stop
	ticker := t.deps.Clock.NewTicker(time.Second)
	t.mu.Unlock()

	if hadSub {
		t.deps.Sensor.Unsubscribe(sub)
	}
	go t.runTicker(attempt, ticker, stop)
	t.publish(events.CountdownStarted, map[string]any{
		"attempt":   attempt,
		"remaining": seconds,
		"display":   FormatSeconds(seconds),
	})
	return &Countdown{t: t, attempt: attempt, total: seconds}, nil
}

// CancelCountdown stops the running countdown, if any. No outcome is
// recorded.
func (t *Tracker) CancelCountdown() {
	t.mu.Lock()
	attempt := t.attempt
	t.mu.Unlock()
	t.cancelCountdown(attempt)
}

func (t *Tracker) cancelCountdown(attempt uint64) {
	t.mu.Lock()
	if attempt != t.attempt || t.phase != PhaseCountingDown {
		t.mu.Unlock()
		return
	}
	t.stopTickerLocked()
	t.onFinished = nil
	t.phase = PhaseIdle
	t.mu.Unlock()
	t.publish(events.CountdownCancelled, map[string]any{"attempt": attempt})
}

func (t *Tracker) runTicker(attempt uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !t.tick(attempt) {
				return
			}
		}
	}
}

func (t *Tracker) tick(attempt uint64) bool {
	t.mu.Lock()
	if attempt != t.attempt || t.phase != PhaseCountingDown {
		t.mu.Unlock()
		return false
	}
	t.remaining--
	remaining := t.remaining
	if remaining > 0 {
		t.mu.Unlock()
		t.publish(events.CountdownTick, map[string]any{
			"attempt":   attempt,
			"remaining": remaining,
			"display":   FormatSeconds(remaining),
		})
		return true
	}
	// The attempt leaves counting-down before mu is released, so a cancel
	// arriving after the last tick finds nothing to cancel.
	t.stopTickerLocked()
	onFinished := t.onFinished
	t.onFinished = nil
	t.phase = PhaseMonitoring
	t.mu.Unlock()

	t.publish(events.CountdownFinished, map[string]any{"attempt": attempt})
	err := t.startMonitoring(attempt)
	if onFinished != nil {
		onFinished(err)
	}
	return false
}

// BeginMotionMonitoring starts pickup detection right away. A running
// countdown is cut short; with no attempt in progress a new one starts.
func (t *Tracker) BeginMotionMonitoring() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	switch t.phase {
	case PhaseMonitoring:
		t.mu.Unlock()
		return nil
	case PhaseCountingDown:
		t.stopTickerLocked()
		t.onFinished = nil
	default:
		t.attempt++
		t.outcome = internal.OutcomeNone
	}
	t.phase = PhaseMonitoring
	attempt := t.attempt
	t.mu.Unlock()
	return t.startMonitoring(attempt)
}

// startMonitoring subscribes for an attempt the caller already moved to
// PhaseMonitoring. If the attempt moved on while subscribing, the
// subscription is dropped.
func (t *Tracker) startMonitoring(attempt uint64) error {
	t.mu.Lock()
	if t.closed || attempt != t.attempt {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.phase != PhaseMonitoring {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	sub, err := t.deps.Sensor.Subscribe(t.opts.SampleInterval, func(a motion.Acceleration) {
		t.onSample(attempt, a)
	}, func(err error) {
		t.onSensorLost(attempt, err)
	})
	if err != nil {
		t.deps.Logger.Warnf("tracker: monitoring for %s could not start: %v", t.userID, err)
		t.resolveUndetermined(attempt, err)
		if !errors.Is(err, internal.ErrSensorUnavailable) {
			err = fmt.Errorf("%w: %v", internal.ErrSensorUnavailable, err)
		}
		return err
	}

	t.mu.Lock()
	if attempt != t.attempt || t.phase != PhaseMonitoring || t.closed {
		t.mu.Unlock()
		t.deps.Sensor.Unsubscribe(sub)
		return nil
	}
	t.sub = sub
	t.subscribed = true
	t.mu.Unlock()
	return nil
}

// onSensorLost ends a monitored attempt whose device stopped streaming.
func (t *Tracker) onSensorLost(attempt uint64, err error) {
	t.deps.Logger.Warnf("tracker: sensor for %s lost during monitoring: %v", t.userID, err)
	t.resolveUndetermined(attempt, err)
}

// resolveUndetermined resolves a monitored attempt without a pickup. The
// sensor has already dropped any subscription.
func (t *Tracker) resolveUndetermined(attempt uint64, err error) {
	t.mu.Lock()
	if t.closed || attempt != t.attempt || t.phase != PhaseMonitoring {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseResolved
	t.outcome = internal.OutcomeUndetermined
	t.disarmLocked()
	t.subscribed = false
	t.mu.Unlock()
	t.finish(Result{Attempt: attempt, Outcome: internal.OutcomeUndetermined, At: t.deps.Clock.Now(), Err: err})
}

// StopMotionMonitoring unsubscribes from the sensor without resolving the
// attempt.
func (t *Tracker) StopMotionMonitoring() {
	t.mu.Lock()
	sub, hadSub := t.takeSubscriptionLocked()
	t.disarmLocked()
	if t.phase == PhaseMonitoring {
		t.phase = PhaseIdle
	}
	t.mu.Unlock()
	if hadSub {
		t.deps.Sensor.Unsubscribe(sub)
	}
}

func (t *Tracker) onSample(attempt uint64, a motion.Acceleration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if attempt != t.attempt || t.phase != PhaseMonitoring {
		return
	}
	if a.Along(t.opts.Axis) < t.opts.PickupThreshold {
		t.disarmLocked()
		return
	}
	if t.debounce != nil {
		return
	}
	t.armID++
	armID := t.armID
	t.debounce = t.deps.Clock.AfterFunc(t.opts.PickupDebounce, func() {
		t.onPickup(attempt, armID)
	})
}

func (t *Tracker) onPickup(attempt, armID uint64) {
	t.mu.Lock()
	if attempt != t.attempt || t.phase != PhaseMonitoring || t.debounce == nil || armID != t.armID {
		t.mu.Unlock()
		return
	}
	t.debounce = nil
	t.phase = PhaseResolved
	sub, hadSub := t.takeSubscriptionLocked()
	t.mu.Unlock()

	if hadSub {
		t.deps.Sensor.Unsubscribe(sub)
	}
	t.resolve(attempt, t.deps.Clock.Now())
}

// resolve decides the outcome of a pickup. It runs exactly once per attempt:
// the phase moved to resolved under the lock before it was called.
func (t *Tracker) resolve(attempt uint64, now time.Time) {
	ctx := t.ctx
	res := Result{Attempt: attempt, At: now}

	wake, err := t.deps.Goals.WakeTime(ctx, t.userID)
	switch {
	case err != nil:
		res.Outcome = internal.OutcomeUndetermined
		res.Err = err
	case wake.ReachedBy(now):
		res.Outcome = internal.OutcomeCompleted
		res.Entry, res.Err = t.deps.Logbook.Record(ctx, t.userID, now, true)
	default:
		res.Outcome = internal.OutcomeInterrupted
		if t.opts.RecordInterruptions {
			res.Entry, res.Err = t.deps.Logbook.Record(ctx, t.userID, now, false)
		}
	}
	if res.Err != nil {
		t.deps.Logger.Errorf("tracker: resolving attempt %d for %s: %v", attempt, t.userID, res.Err)
	}

	t.mu.Lock()
	if attempt == t.attempt {
		t.outcome = res.Outcome
	}
	t.mu.Unlock()
	t.finish(res)
}

// finish clears the sleeping flag and tells the user how the attempt ended.
func (t *Tracker) finish(res Result) {
	ctx := t.ctx
	if err := kv.SetBool(ctx, t.deps.KV, t.userID, kv.IsSleepingRightNow, false); err != nil {
		t.deps.Logger.Warnf("tracker: clearing %s for %s: %v", kv.IsSleepingRightNow, t.userID, err)
	}

	data := map[string]any{"attempt": res.Attempt, "outcome": res.Outcome}
	if res.Entry != nil {
		data["entry_id"] = res.Entry.ID
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}

	switch res.Outcome {
	case internal.OutcomeCompleted:
		t.publish(events.SleepCompleted, data)
	case internal.OutcomeInterrupted:
		if t.deps.Presence.IsForeground(t.userID) {
			t.publish(events.SleepInterrupted, data)
		} else if t.deps.Notifier != nil {
			if err := t.deps.Notifier.Notify(ctx, t.userID, interruptedTitle, interruptedBody); err != nil {
				t.deps.Logger.Infof("tracker: interruption notice for %s not sent: %v", t.userID, err)
			}
		}
	default:
		t.publish(events.SleepUndetermined, data)
	}

	if t.deps.OnResolved != nil {
		t.deps.OnResolved(res)
	}
}

// Close releases the countdown, the sensor subscription and the debounce
// timer, and aborts an in-flight resolution. It is idempotent.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	sub, hadSub := t.releaseLocked()
	if t.phase != PhaseResolved {
		t.phase = PhaseIdle
	}
	t.mu.Unlock()

	if hadSub {
		t.deps.Sensor.Unsubscribe(sub)
	}
	t.stop()
}

// releaseLocked stops the ticker and debounce timer and hands back the
// subscription for the caller to drop once mu is released.
func (t *Tracker) releaseLocked() (motion.Subscription, bool) {
	t.stopTickerLocked()
	t.onFinished = nil
	t.disarmLocked()
	return t.takeSubscriptionLocked()
}

func (t *Tracker) stopTickerLocked() {
	if t.stopTick != nil {
		close(t.stopTick)
		t.stopTick = nil
	}
}

func (t *Tracker) disarmLocked() {
	if t.debounce != nil {
		t.debounce.Stop()
		t.debounce = nil
	}
}

func (t *Tracker) takeSubscriptionLocked() (motion.Subscription, bool) {
	if !t.subscribed {
		return 0, false
	}
	t.subscribed = false
	return t.sub, true
}

func (t *Tracker) publish(typ string, data map[string]any) {
	if err := t.deps.Events.Publish(t.ctx, events.New(t.userID, typ, data)); err != nil {
		t.deps.Logger.Debugf("tracker: publishing %s for %s: %v", typ, t.userID, err)
	}
}
