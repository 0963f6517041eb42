// Package rollout implements an on-policy trajectory buffer which
// annotates stored transitions with generalized advantage estimates
// when they are drained in mini-batches.
package rollout

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when a transition does not match the
// dimensions of a Store
var ErrShape = errors.New("invalid transition shape")

// Transition is a single step of interaction. LogProb holds the log
// probability of each action dimension under the policy that selected
// the action, and Value is that policy's value estimate of State.
type Transition struct {
	State   []float64
	Action  []float64
	Reward  float64
	Done    bool
	LogProb []float64
	Value   float64
}

// Option configures a Store
type Option func(*Store)

// NormalizeAdvantages makes a Store standardize the advantages of all
// its transitions to mean 0 and standard deviation 1 before emitting
// batches.
func NormalizeAdvantages() Option {
	return func(s *Store) {
		s.normalize = true
	}
}

// Store implements a GAE(λ) rollout buffer following
// https://arxiv.org/abs/1506.02438. Transitions are appended in the
// order they occurred, possibly spanning several episodes separated by
// Done flags. Advantages and returns are computed only when batches
// are requested.
//
// A Store is not safe for concurrent use. Collection must be paused
// while a Store is being drained.
type Store struct {
	obsDim int
	actDim int

	gamma  float64 // Discount factor ℽ
	lambda float64 // λ for GAE(λ) calculation

	normalize bool
	rng       *rand.Rand

	// Row major storage of transitions
	states    []float64
	actions   []float64
	logProbs  []float64
	rewards   []float64
	values    []float64
	dones     []bool
	bootstrap float64
}

// New creates and returns a new, empty Store. The seed determines the
// order in which transitions are batched.
func New(obsDim, actDim int, gamma, lambda float64, seed uint64,
	opts ...Option) *Store {
	s := &Store{
		obsDim: obsDim,
		actDim: actDim,
		gamma:  gamma,
		lambda: lambda,
		rng:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store copies a transition into the Store
func (s *Store) Store(t Transition) error {
	if len(t.State) != s.obsDim {
		return fmt.Errorf("store: %w: illegal state length \n\twant(%v)"+
			"\n\thave(%v)", ErrShape, s.obsDim, len(t.State))
	}
	if len(t.Action) != s.actDim {
		return fmt.Errorf("store: %w: illegal action length \n\twant(%v)"+
			"\n\thave(%v)", ErrShape, s.actDim, len(t.Action))
	}
	if len(t.LogProb) != s.actDim {
		return fmt.Errorf("store: %w: illegal log probability length "+
			"\n\twant(%v)\n\thave(%v)", ErrShape, s.actDim, len(t.LogProb))
	}

	s.states = append(s.states, t.State...)
	s.actions = append(s.actions, t.Action...)
	s.logProbs = append(s.logProbs, t.LogProb...)
	s.rewards = append(s.rewards, t.Reward)
	s.values = append(s.values, t.Value)
	s.dones = append(s.dones, t.Done)
	return nil
}

// Bootstrap sets the value estimate of the state following the last
// stored transition. It is used only if that transition is not Done
// and defaults to 0.
func (s *Store) Bootstrap(value float64) {
	s.bootstrap = value
}

// Len returns the number of stored transitions
func (s *Store) Len() int {
	return len(s.rewards)
}

// Empty returns whether the Store holds no transitions
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// Clear drops all stored transitions
func (s *Store) Clear() {
	s.states = s.states[:0]
	s.actions = s.actions[:0]
	s.logProbs = s.logProbs[:0]
	s.rewards = s.rewards[:0]
	s.values = s.values[:0]
	s.dones = s.dones[:0]
	s.bootstrap = 0
}

// Batches computes advantages and returns for all stored transitions
// and returns an Iterator over shuffled mini-batches of at most
// miniBatchSize transitions. One pass of the Iterator yields every
// transition exactly once. Only the final batch may be smaller than
// miniBatchSize.
//
// The Iterator copies what it needs, so the Store may be cleared while
// the Iterator is in use.
func (s *Store) Batches(miniBatchSize int) (*Iterator, error) {
	if miniBatchSize <= 0 {
		return nil, fmt.Errorf("batches: mini-batch size must be positive "+
			"but got %v", miniBatchSize)
	}

	n := s.Len()
	if n == 0 {
		return &Iterator{}, nil
	}

	advantages, returns := s.gae()
	if s.normalize {
		standardize(advantages)
	}

	return &Iterator{
		obsDim:     s.obsDim,
		actDim:     s.actDim,
		size:       miniBatchSize,
		order:      s.rng.Perm(n),
		states:     append([]float64(nil), s.states...),
		actions:    append([]float64(nil), s.actions...),
		logProbs:   append([]float64(nil), s.logProbs...),
		rewards:    append([]float64(nil), s.rewards...),
		values:     append([]float64(nil), s.values...),
		dones:      append([]bool(nil), s.dones...),
		advantages: advantages,
		returns:    returns,
	}, nil
}

// gae computes GAE(λ) advantages and the returns advantage + value of
// every stored transition. Done transitions neither bootstrap nor
// propagate advantages from the following transition.
func (s *Store) gae() (advantages, returns []float64) {
	n := s.Len()

	notDone := make([]float64, n)
	for i, done := range s.dones {
		if !done {
			notDone[i] = 1.0
		}
	}

	// δ_t = r_t + ℽ (1 - d_t) V(s_{t+1}) - V(s_t)
	next := make([]float64, n)
	copy(next, s.values[1:])
	next[n-1] = s.bootstrap
	nextVals := mat.NewVecDense(n, next)
	nextVals.MulElemVec(nextVals, mat.NewVecDense(n, notDone))

	deltas := mat.NewVecDense(n, nil)
	deltas.AddScaledVec(mat.NewVecDense(n, s.rewards), s.gamma, nextVals)
	deltas.SubVec(deltas, mat.NewVecDense(n, s.values))

	// A_t = δ_t + ℽλ (1 - d_t) A_{t+1}
	advantages = make([]float64, n)
	var last float64
	for t := n - 1; t >= 0; t-- {
		last = deltas.AtVec(t) + s.gamma*s.lambda*notDone[t]*last
		advantages[t] = last
	}

	returns = make([]float64, n)
	floats.AddTo(returns, advantages, s.values)
	return advantages, returns
}

// standardize standardizes x in place to mean 0 and standard deviation
// 1
func standardize(x []float64) {
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		std = 0
	}
	floats.AddConst(-mean, x)
	floats.Scale(1/(std+1e-8), x)
}
