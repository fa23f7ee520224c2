package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
)

func TestRoutineRevealsStepsInOrder(t *testing.T) {
	r := NewRoutine()
	steps := r.Steps()
	require.Len(t, steps, 1)
	assert.False(t, steps[0].IsCompleted)
	assert.Equal(t, "Turn your phone to no disturb mode", steps[0].Title)

	require.NoError(t, r.Complete(0))
	steps = r.Steps()
	require.Len(t, steps, 2)
	assert.True(t, steps[0].IsCompleted)
	assert.False(t, steps[1].IsCompleted)

	require.NoError(t, r.Complete(1))
	require.Len(t, r.Steps(), 3)
	assert.False(t, r.Done())

	require.NoError(t, r.Complete(2))
	steps = r.Steps()
	require.Len(t, steps, 3)
	assert.True(t, steps[2].IsCompleted)
	assert.True(t, r.Done())
}

func TestRoutineRejectsSkipsAndRepeats(t *testing.T) {
	r := NewRoutine()
	assert.ErrorIs(t, r.Complete(1), internal.ErrStepOutOfOrder)
	assert.ErrorIs(t, r.Complete(-1), internal.ErrStepOutOfOrder)

	require.NoError(t, r.Complete(0))
	assert.ErrorIs(t, r.Complete(0), internal.ErrStepOutOfOrder)
	assert.ErrorIs(t, r.Complete(2), internal.ErrStepOutOfOrder)

	require.NoError(t, r.Complete(1))
	require.NoError(t, r.Complete(2))
	assert.ErrorIs(t, r.Complete(2), internal.ErrStepOutOfOrder)
	assert.ErrorIs(t, r.Complete(3), internal.ErrStepOutOfOrder)
}

func TestStepsAreCopies(t *testing.T) {
	r := NewRoutine()
	steps := r.Steps()
	steps[0].IsCompleted = true
	assert.False(t, r.Steps()[0].IsCompleted)
}
