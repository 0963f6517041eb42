// Package reach implements a controller-driven reaching environment.
//
// The environment mirrors the controller layout of the emulated game
// the agent is trained on: four analogue stick axes followed by three
// buttons. The left stick moves a cursor around the unit square and
// the Cross button must be pressed while the cursor is within reach of
// the target for the episode to end successfully. The right stick, R1
// and Square have no effect.
package reach

import (
	"fmt"
	"math"

	"github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/timestep"
	"github.com/rcppo/golearn/utils/floatutils"
	"github.com/rcppo/golearn/utils/matutils"
	"gonum.org/v1/gonum/mat"
)

// Controller layout, in action-vector order
const (
	LJoyX int = iota
	LJoyY
	RJoyX
	RJoyY
	R1
	Cross
	Square

	ActionDims
)

const (
	ObservationDims int = 4

	// Speed is the distance the cursor travels in one step with the
	// left stick fully tilted
	Speed float64 = 0.05

	// Radius is the distance to the target within which pressing Cross
	// ends the episode successfully
	Radius float64 = 0.1

	// ButtonThreshold is the value above which a button counts as
	// pressed
	ButtonThreshold float64 = 0.5

	// StickDeadZone is the value below which a stick axis is ignored
	StickDeadZone float64 = 0.2
)

// Labels names each action dimension
var Labels = [ActionDims]string{"LJoyX", "LJoyY", "RJoyX", "RJoyY", "R1",
	"Cross", "Square"}

// Reach implements the environment.Environment interface. Observations
// are [cursor x, cursor y, target x, target y].
type Reach struct {
	environment.Task
	lastStep timestep.TimeStep
	discount float64
}

// New creates and returns a new Reach environment along with its
// first TimeStep.
func New(t environment.Task, discount float64) (*Reach, timestep.TimeStep,
	error) {
	r := &Reach{Task: t, discount: discount}
	step, err := r.Reset()
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	return r, step, nil
}

// Reset resets the environment and returns a starting state drawn from the
// Starter
func (r *Reach) Reset() (timestep.TimeStep, error) {
	state := r.Start()
	if state.Len() != ObservationDims {
		return timestep.TimeStep{}, fmt.Errorf("reset: illegal start state "+
			"length \n\twant(%v) \n\thave(%v)", ObservationDims, state.Len())
	}
	clipState(state)

	r.lastStep = timestep.New(timestep.First, 0, r.discount, state, 0)
	return r.lastStep, nil
}

// Step moves the cursor with the left stick and returns the next
// TimeStep together with whether the episode has ended.
func (r *Reach) Step(action *mat.VecDense) (timestep.TimeStep, bool, error) {
	if action.Len() != ActionDims {
		return timestep.TimeStep{}, false, fmt.Errorf("step: illegal "+
			"action length \n\twant(%v) \n\thave(%v)", ActionDims,
			action.Len())
	}

	obs := r.lastStep.Observation
	next := mat.VecDenseCopyOf(obs)
	next.SetVec(0, obs.AtVec(0)+Speed*stick(action.AtVec(LJoyX)))
	next.SetVec(1, obs.AtVec(1)+Speed*stick(action.AtVec(LJoyY)))
	clipState(next)

	reward := r.GetReward(obs, action, next)
	nextStep := timestep.New(timestep.Mid, reward, r.discount, next,
		r.lastStep.Number+1)
	r.End(&nextStep)

	r.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// LastTimeStep returns the last TimeStep that occurred in the
// environment
func (r *Reach) LastTimeStep() timestep.TimeStep {
	return r.lastStep
}

// ObservationSpec returns the observation specification of the
// environment
func (r *Reach) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, nil)
	upperBound := matutils.VecOnes(ObservationDims)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the environment.
// Stick axes lie in [-1, 1] and buttons in [0, 1].
func (r *Reach) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{-1, -1, -1, -1, 0,
		0, 0})
	upperBound := matutils.VecOnes(ActionDims)

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (r *Reach) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{r.discount})

	return environment.NewSpec(shape, environment.Discount, bound, bound,
		environment.Continuous)
}

// String converts the environment to a string representation
func (r *Reach) String() string {
	obs := r.lastStep.Observation
	return fmt.Sprintf("Reach  |  cursor: (%.2f, %.2f)  |  target: "+
		"(%.2f, %.2f)", obs.AtVec(0), obs.AtVec(1), obs.AtVec(2),
		obs.AtVec(3))
}

// stick applies the dead zone and clips a stick axis to [-1, 1]
func stick(v float64) float64 {
	if math.Abs(v) < StickDeadZone {
		return 0
	}
	return floatutils.Clip(v, -1, 1)
}

// clipState keeps the cursor and target inside the unit square
func clipState(state *mat.VecDense) {
	matutils.VecClip(state, 0, 1)
}

// distance returns the distance between the cursor and the target of
// an observation
func distance(obs mat.Vector) float64 {
	return math.Hypot(obs.AtVec(0)-obs.AtVec(2), obs.AtVec(1)-obs.AtVec(3))
}
