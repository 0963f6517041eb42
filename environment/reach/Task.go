package reach

import (
	"github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/timestep"
	"gonum.org/v1/gonum/mat"
)

// GoalReward is the reward for pressing Cross within reach of the
// target
const GoalReward float64 = 1.0

// Target implements the task of moving the cursor to the target and
// pressing Cross. On every step the agent receives the negative
// distance to the target scaled by DistanceScale.
type Target struct {
	environment.Starter
	stepLimit environment.Ender

	DistanceScale float64

	// pressed records whether Cross was pressed within reach on the
	// last rewarded transition
	pressed bool
}

// NewTarget creates and returns a new Target task with episodes cut
// off after maxSteps
func NewTarget(s environment.Starter, maxSteps int) *Target {
	return &Target{
		Starter:       s,
		stepLimit:     environment.NewStepLimit(maxSteps),
		DistanceScale: 0.1,
	}
}

// GetReward returns the reward for the transition
func (t *Target) GetReward(_, action, nextState mat.Vector) float64 {
	t.pressed = action.AtVec(Cross) > ButtonThreshold && t.AtGoal(nextState)
	if t.pressed {
		return GoalReward
	}
	return -t.DistanceScale * distance(nextState)
}

// AtGoal returns whether the cursor is within reach of the target
func (t *Target) AtGoal(state mat.Vector) bool {
	return distance(state) <= Radius
}

// End ends the episode when the goal was completed on the last
// transition or when the step limit is reached
func (t *Target) End(step *timestep.TimeStep) bool {
	if t.pressed {
		t.pressed = false
		step.StepType = timestep.Last
		step.EndType = timestep.TerminalStateReached
		return true
	}
	return t.stepLimit.End(step)
}
