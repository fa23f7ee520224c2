package tracker

import (
	"fmt"

	"github.com/yourname/fixyoursleep/internal"
)

const (
	StepFocus = iota
	StepRelax
	StepPutAway
)

var stepTitles = [...]string{
	StepFocus:   "Turn your phone to no disturb mode",
	StepRelax:   "Spend 10 mins to relax the mind",
	StepPutAway: "Put your phone on the table",
}

// Routine is the forward-only wind-down checklist. It starts with one pending
// step and reveals the next one each time the last visible step completes.
// It is not safe for concurrent use; Tracker guards it.
type Routine struct {
	steps []internal.RoutineStep
}

func NewRoutine() *Routine {
	r := &Routine{}
	r.reveal(StepFocus)
	return r
}

func (r *Routine) reveal(i int) {
	r.steps = append(r.steps, internal.RoutineStep{ID: i, Title: stepTitles[i]})
}

func (r *Routine) Steps() []internal.RoutineStep {
	return append([]internal.RoutineStep(nil), r.steps...)
}

// Complete marks step i done. Only the last visible pending step can be
// completed.
func (r *Routine) Complete(i int) error {
	last := len(r.steps) - 1
	if i != last || r.steps[last].IsCompleted {
		return fmt.Errorf("step %d: %w", i, internal.ErrStepOutOfOrder)
	}
	r.steps[i].IsCompleted = true
	if i+1 < len(stepTitles) {
		r.reveal(i + 1)
	}
	return nil
}

func (r *Routine) Done() bool {
	return len(r.steps) == len(stepTitles) && r.steps[len(r.steps)-1].IsCompleted
}
