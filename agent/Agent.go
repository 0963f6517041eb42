// Package agent defines an agent interface
package agent

import (
	"github.com/rcppo/golearn/timestep"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action mat.Vector, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. For a given agent, the
// Policy and Learner should share the same weights so that any changes
// the learner makes to the weights are reflected in the actions the
// Policy chooses
type Policy interface {
	SelectAction(t timestep.TimeStep) *mat.VecDense
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Evaluation holds the nodes computed when an ActorCritic scores a
// batch of state-action pairs. For a batch of B samples with A action
// dimensions LogProb and Entropy are B x A matrices holding one value
// per action dimension and Value is a vector of B state values.
type Evaluation struct {
	LogProb *G.Node
	Value   *G.Node
	Entropy *G.Node
}

// ActorCritic is a stochastic policy paired with a state value
// function that share a single set of parameters.
//
// An ActorCritic has two modes. Act samples actions for single
// observations without tracking gradients. Evaluate binds a batch of
// states and actions to a training graph whose nodes can be used to
// build a loss and differentiated with respect to ActorLearnables and
// CriticLearnables. The training graph has a fixed batch size.
type ActorCritic interface {
	// Act samples an action for a single observation and returns it
	// along with its per-dimension log probability and the value of
	// the observation. Act panics if the observation has the wrong
	// length.
	Act(obs []float64) (action, logProb []float64, value float64)

	// Value returns the value of a single observation without
	// sampling an action. Value panics if the observation has the
	// wrong length.
	Value(obs []float64) float64

	// Evaluate binds BatchSize() states and actions, in row major
	// order, to the training graph and returns the nodes scoring them
	Evaluate(states, actions []float64) (Evaluation, error)

	// EvaluationNodes returns the nodes of the training graph without
	// binding any inputs
	EvaluationNodes() Evaluation

	Graph() *G.ExprGraph
	ActorLearnables() G.Nodes
	CriticLearnables() G.Nodes

	BatchSize() int
	Features() int
	ActionDims() int

	// SetActionMask enables (1) or disables (0) each action dimension.
	// Disabled dimensions are always 0 and are given neither log
	// probability nor entropy.
	SetActionMask([]float64) error
	ActionMask() []float64

	// Sync copies the parameters of the training graph to the graph
	// used by Act
	Sync() error

	// Snapshot returns the parameters as an opaque blob which Load
	// accepts
	Snapshot() ([]byte, error)
	Load([]byte) error

	Close() error
}
