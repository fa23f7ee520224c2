package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/tracker"
	"github.com/yourname/fixyoursleep/internal/vision"
)

var (
	ErrNoRoutine          = fmt.Errorf("no active routine: %w", internal.ErrNotFound)
	ErrRoutineNotFinished = fmt.Errorf("finish the routine first: %w", internal.ErrStepOutOfOrder)
	ErrNoBookDetected     = errors.New("no book detected in the photo")
)

type TrackerFactory func(userID string) *tracker.Tracker

// Sessions keeps one live tracker per user.
type Sessions struct {
	mu         sync.Mutex
	trackers   map[string]*tracker.Tracker
	newTracker TrackerFactory
	kv         kv.Store
	labeler    vision.Labeler
	windDown   int
	logger     internal.Logger
}

func NewSessions(newTracker TrackerFactory, store kv.Store, labeler vision.Labeler, windDownSeconds int, logger internal.Logger) *Sessions {
	if labeler == nil {
		labeler = vision.Disabled{}
	}
	return &Sessions{
		trackers:   make(map[string]*tracker.Tracker),
		newTracker: newTracker,
		kv:         store,
		labeler:    labeler,
		windDown:   windDownSeconds,
		logger:     logger,
	}
}

// Start replaces the user's tracker with a fresh routine. A replaced
// routine is over, so the user is no longer marked asleep.
func (s *Sessions) Start(ctx context.Context, userID string) *tracker.Tracker {
	tr := s.newTracker(userID)
	s.mu.Lock()
	prev := s.trackers[userID]
	s.trackers[userID] = tr
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
		if err := kv.SetBool(ctx, s.kv, userID, kv.IsSleepingRightNow, false); err != nil {
			s.logger.Warnf("failed to clear sleeping flag for %s: %v", userID, err)
		}
	}
	return tr
}

func (s *Sessions) Get(userID string) (*tracker.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.trackers[userID]
	if !ok {
		return nil, ErrNoRoutine
	}
	return tr, nil
}

func (s *Sessions) CompleteStep(ctx context.Context, userID string, i int) ([]internal.RoutineStep, error) {
	tr, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	return tr.CompleteStep(ctx, i)
}

// VerifyRelaxPhoto completes the relax step when the photo shows a book.
func (s *Sessions) VerifyRelaxPhoto(ctx context.Context, userID string, image []byte) ([]vision.Label, error) {
	tr, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	steps := tr.Snapshot().Steps
	if last := steps[len(steps)-1]; last.ID != tracker.StepRelax || last.IsCompleted {
		return nil, fmt.Errorf("relax step is not pending: %w", internal.ErrStepOutOfOrder)
	}

	labels, err := s.labeler.Labels(ctx, image)
	if err != nil {
		return nil, err
	}
	if !vision.ContainsBook(labels) {
		return labels, ErrNoBookDetected
	}
	if _, err := tr.CompleteStep(ctx, tracker.StepRelax); err != nil {
		return labels, err
	}
	return labels, nil
}

// StartCountdown begins the wind-down. seconds <= 0 uses the configured
// duration.
func (s *Sessions) StartCountdown(userID string, seconds int) (*tracker.Countdown, error) {
	tr, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if !tr.RoutineDone() {
		return nil, ErrRoutineNotFinished
	}
	if seconds <= 0 {
		seconds = s.windDown
	}
	return tr.BeginCountdown(seconds, func(err error) {
		if err != nil {
			s.logger.Warnf("sessions: monitoring for %s did not start after countdown: %v", userID, err)
			return
		}
		s.logger.Infof("sessions: countdown finished for %s, monitoring", userID)
	})
}

func (s *Sessions) CancelCountdown(userID string) error {
	tr, err := s.Get(userID)
	if err != nil {
		return err
	}
	tr.CancelCountdown()
	return nil
}

func (s *Sessions) StartMonitoring(userID string) error {
	tr, err := s.Get(userID)
	if err != nil {
		return err
	}
	return tr.BeginMotionMonitoring()
}

func (s *Sessions) StopMonitoring(userID string) error {
	tr, err := s.Get(userID)
	if err != nil {
		return err
	}
	tr.StopMotionMonitoring()
	return nil
}

// End cancels the sleep: the tracker is torn down and the user is no longer
// marked as sleeping.
func (s *Sessions) End(ctx context.Context, userID string) error {
	s.mu.Lock()
	tr, ok := s.trackers[userID]
	delete(s.trackers, userID)
	s.mu.Unlock()
	if !ok {
		return ErrNoRoutine
	}
	tr.Close()
	return kv.SetBool(ctx, s.kv, userID, kv.IsSleepingRightNow, false)
}

func (s *Sessions) Close() {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*tracker.Tracker)
	s.mu.Unlock()
	for _, tr := range trackers {
		tr.Close()
	}
}
