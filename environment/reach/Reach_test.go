package reach

import (
	"testing"

	ts "github.com/rcppo/golearn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixed always starts at the same state
type fixed []float64

func (f fixed) Start() *mat.VecDense {
	return mat.NewVecDense(len(f), append([]float64(nil), f...))
}

func action(values map[int]float64) *mat.VecDense {
	a := mat.NewVecDense(ActionDims, nil)
	for i, v := range values {
		a.SetVec(i, v)
	}
	return a
}

func TestStepMovesCursor(t *testing.T) {
	r, first, err := New(NewTarget(fixed{0.5, 0.5, 0.9, 0.9}, 100), 0.99)
	require.NoError(t, err)
	assert.True(t, first.First())
	assert.Equal(t, 0, first.Number)

	step, done, err := r.Step(action(map[int]float64{LJoyX: 1, LJoyY: -1}))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, step.Number)
	assert.InDelta(t, 0.5+Speed, step.Observation.AtVec(0), 1e-12)
	assert.InDelta(t, 0.5-Speed, step.Observation.AtVec(1), 1e-12)
	assert.Equal(t, []float64{0.9, 0.9}, step.Observation.RawVector().Data[2:])
	assert.Less(t, step.Reward, 0.0)
	assert.Equal(t, step, r.LastTimeStep())

	// The starting state is not modified by stepping
	assert.Equal(t, 0.5, first.Observation.AtVec(0))
}

func TestStepDeadZoneAndBounds(t *testing.T) {
	r, _, err := New(NewTarget(fixed{0.99, 0.0, 0.5, 0.5}, 100), 1)
	require.NoError(t, err)

	// Below the dead zone the stick has no effect
	step, _, err := r.Step(action(map[int]float64{LJoyX: StickDeadZone / 2}))
	require.NoError(t, err)
	assert.Equal(t, 0.99, step.Observation.AtVec(0))

	// The cursor never leaves the unit square and stick values are
	// clipped
	step, _, err = r.Step(action(map[int]float64{LJoyX: 5, LJoyY: -5}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, step.Observation.AtVec(0))
	assert.Equal(t, 0.0, step.Observation.AtVec(1))

	// The right stick does nothing
	step, _, err = r.Step(action(map[int]float64{RJoyX: 1, RJoyY: 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, step.Observation.RawVector().Data[:2])
}

func TestGoal(t *testing.T) {
	r, _, err := New(NewTarget(fixed{0.5, 0.5, 0.52, 0.5}, 100), 1)
	require.NoError(t, err)

	// Within reach, but Cross is not pressed
	step, done, err := r.Step(action(nil))
	require.NoError(t, err)
	assert.False(t, done)
	assert.InDelta(t, -0.1*0.02, step.Reward, 1e-12)

	step, done, err = r.Step(action(map[int]float64{Cross: 1}))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, GoalReward, step.Reward)
	assert.True(t, step.TerminalEnd())

	// Pressing Cross far from the target does nothing
	r, _, err = New(NewTarget(fixed{0, 0, 1, 1}, 100), 1)
	require.NoError(t, err)
	step, done, err = r.Step(action(map[int]float64{Cross: 1}))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Less(t, step.Reward, 0.0)
}

func TestTimeout(t *testing.T) {
	r, _, err := New(NewTarget(fixed{0, 0, 1, 1}, 3), 1)
	require.NoError(t, err)

	var step ts.TimeStep
	for i := 0; i < 3; i++ {
		var done bool
		step, done, err = r.Step(action(nil))
		require.NoError(t, err)
		assert.Equal(t, i == 2, done)
	}
	assert.True(t, step.Last())
	assert.False(t, step.TerminalEnd())
	assert.Equal(t, ts.Timeout, step.EndType)

	first, err := r.Reset()
	require.NoError(t, err)
	assert.True(t, first.First())
	assert.Equal(t, 0, first.Number)
}

func TestErrors(t *testing.T) {
	_, _, err := New(NewTarget(fixed{0, 0}, 3), 1)
	assert.Error(t, err)

	r, _, err := New(NewTarget(fixed{0, 0, 1, 1}, 3), 1)
	require.NoError(t, err)
	_, _, err = r.Step(mat.NewVecDense(2, nil))
	assert.Error(t, err)
}

func TestSpecs(t *testing.T) {
	r, _, err := New(NewTarget(fixed{0, 0, 1, 1}, 3), 0.9)
	require.NoError(t, err)

	assert.Equal(t, ObservationDims, r.ObservationSpec().Dims())
	assert.Equal(t, ActionDims, r.ActionSpec().Dims())
	assert.Equal(t, len(Labels), r.ActionSpec().Dims())
	assert.Equal(t, 0.9, r.DiscountSpec().LowerBound.AtVec(0))
}
