// Package environment outlines the interfaces and sturcts needed to implement
// concrete environments that a controller agent can be trained on.
package environment

import (
	"github.com/rcppo/golearn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode should end. If the episode should
// end, End() sets the StepType (and EndType) of the argument TimeStep
// and returns true.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment.
type Task interface {
	Starter
	Ender

	// GetReward returns the reward for transitioning from state to
	// nextState when taking action
	GetReward(state, action, nextState mat.Vector) float64

	// AtGoal returns whether the state is the goal state
	AtGoal(state mat.Vector) bool
}

// Environment implements a simualted (or emulated) environment that an
// agent acts in through continuous controller actions.
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first TimeStep of the next episode
	Reset() (timestep.TimeStep, error)

	// Step takes one environmental step with the argument action and
	// returns the next TimeStep along with whether the episode ended
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)

	// LastTimeStep returns the last TimeStep that occurred
	LastTimeStep() timestep.TimeStep

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}
