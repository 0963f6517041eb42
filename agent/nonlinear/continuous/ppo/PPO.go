// Package ppo implements Proximal Policy Optimization with a clipped
// surrogate objective, generalized advantage estimation and KL based
// early stopping.
package ppo

import (
	"errors"
	"fmt"

	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/buffer/rollout"
	"github.com/rcppo/golearn/network"
	"github.com/rcppo/golearn/solver"
	"github.com/rcppo/golearn/timestep"
	"github.com/rcppo/golearn/utils/floatutils"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// ErrNonFinite is returned by Learn when a loss is NaN or infinite.
// The offending mini-batch is not applied.
var ErrNonFinite = errors.New("non-finite loss")

// IntrinsicRewarder computes intrinsic rewards for n states given in
// row major order. Intrinsic rewards scaled by Beta are added to both
// the advantages and the returns of a mini-batch before the loss is
// computed.
type IntrinsicRewarder interface {
	IntrinsicRewards(states []float64, n int) ([]float64, error)
}

// Option configures a PPO
type Option func(*PPO)

// WithLogger sets the logger of a PPO. The default logger discards
// everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *PPO) {
		p.log = logger.With().Str("component", "ppo").Logger()
	}
}

// WithIntrinsicRewarder blends the intrinsic rewards of r into every
// mini-batch
func WithIntrinsicRewarder(r IntrinsicRewarder) Option {
	return func(p *PPO) {
		p.intrinsic = r
	}
}

// Stats holds the means over all mini-batches processed by one call to
// Learn. All fields are 0 if no mini-batch was processed.
type Stats struct {
	Loss         float64
	PolicyLoss   float64
	ValueLoss    float64
	EntropyLoss  float64
	ApproxKL     float64
	ClipFraction float64
	Updates      int
	EarlyStopped bool
}

// PPO implements the Proximal Policy Optimization algorithm
// following https://arxiv.org/abs/1707.06347.
//
// A PPO updates the parameters of a Handle using the transitions of
// every registered rollout.Store. It also implements agent.Agent, in
// which case it fills a store of its own as it interacts with an
// environment and learns whenever BatchSize transitions have been
// collected.
type PPO struct {
	handle   *Handle
	selector *Selector
	config   Config

	vm           G.VM
	obj          *objective
	actorNodes   G.Nodes
	learnables   G.Nodes
	actorSolver  *solver.Solver
	criticSolver *solver.Solver
	actorModel   []G.ValueGrad
	criticModel  []G.ValueGrad

	stores    []*rollout.Store
	intrinsic IntrinsicRewarder
	log       zerolog.Logger

	// Interaction with an environment
	own        *rollout.Store
	prevStep   timestep.TimeStep
	decision   Decision
	eval       bool
	lastStats  Stats
	learnCalls int
}

// New creates and returns a new PPO updating the parameters owned by h
func New(h *Handle, c Config, opts ...Option) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	ac := h.ac
	if ac.BatchSize() != c.MiniBatchSize {
		return nil, fmt.Errorf("new: policy batch size must equal the "+
			"mini-batch size \n\twant(%v)\n\thave(%v)", c.MiniBatchSize,
			ac.BatchSize())
	}

	if len(c.ActionMask) > 0 {
		if err := h.SetActionMask(c.ActionMask); err != nil {
			return nil, fmt.Errorf("new: %w", err)
		}
	}

	obj, err := newObjective(ac.Graph(), ac.EvaluationNodes(),
		ac.BatchSize(), c.EpsClip, c.EntCoef, c.ClCoeff)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	actorNodes := ac.ActorLearnables()
	criticNodes := ac.CriticLearnables()
	learnables := append(append(G.Nodes{}, actorNodes...), criticNodes...)
	if _, err := G.Grad(obj.loss, learnables...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %w", err)
	}

	actorSolver, err := solver.NewPolicyGradientAdam(c.LrActor)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	criticSolver, err := solver.NewPolicyGradientAdam(c.LrCritic)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	p := &PPO{
		handle:   h,
		selector: NewSelector(h),
		config:   c,

		vm:           G.NewTapeMachine(ac.Graph(), G.BindDualValues(learnables...)),
		obj:          obj,
		actorNodes:   actorNodes,
		learnables:   learnables,
		actorSolver:  actorSolver,
		criticSolver: criticSolver,
		actorModel:   network.NodesToModel(actorNodes),
		criticModel:  network.NodesToModel(criticNodes),

		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Selector returns a Selector sharing the parameters of the PPO
func (p *PPO) Selector() *Selector {
	return p.selector
}

// Handle returns the Handle whose parameters the PPO updates
func (p *PPO) Handle() *Handle {
	return p.handle
}

// AddStore registers a store to be drained by Learn
func (p *PPO) AddStore(s *rollout.Store) {
	p.stores = append(p.stores, s)
}

// NewStore creates a store with the discount, GAE λ and advantage
// normalization of the PPO, registers it and returns it
func (p *PPO) NewStore(seed uint64) *rollout.Store {
	var opts []rollout.Option
	if p.config.NormalizeAdvantages {
		opts = append(opts, rollout.NormalizeAdvantages())
	}

	s := rollout.New(p.handle.ac.Features(), p.handle.ac.ActionDims(),
		p.config.Gamma, p.config.LambdaGAE, seed, opts...)
	p.AddStore(s)
	return s
}

// Learn performs KEpochs passes over every registered store, taking
// one optimizer step per mini-batch. Learning stops early once the
// mean approximate KL divergence of all mini-batches processed so far
// exceeds KLThreshold. Every store is cleared before Learn returns,
// whether or not an error occurred.
//
// Collection into the stores must be paused while Learn runs.
func (p *PPO) Learn() (Stats, error) {
	p.handle.mu.Lock()
	defer p.handle.mu.Unlock()
	defer func() {
		for _, s := range p.stores {
			s.Clear()
		}
	}()

	var acc accumulator
	var err error
	for epoch := 0; epoch < p.config.KEpochs; epoch++ {
		var stop bool
		if stop, err = p.epoch(epoch, &acc); err != nil || stop {
			acc.earlyStopped = stop
			break
		}
	}

	if syncErr := p.handle.ac.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	if err != nil {
		return acc.stats(), fmt.Errorf("learn: %w", err)
	}
	return acc.stats(), nil
}

// epoch performs one pass over every store and returns whether
// learning should stop
func (p *PPO) epoch(epoch int, acc *accumulator) (bool, error) {
	for n, store := range p.stores {
		it, err := store.Batches(p.config.MiniBatchSize)
		if err != nil {
			return false, fmt.Errorf("epoch %v: store %v: %w", epoch, n, err)
		}

		for batch, ok := it.Next(); ok; batch, ok = it.Next() {
			mb, err := p.update(batch)
			if err != nil {
				return false, fmt.Errorf("epoch %v: store %v: %w", epoch, n,
					err)
			}
			acc.add(mb)

			if kl := acc.kl(); kl > p.config.KLThreshold {
				p.log.Warn().
					Int("store", n).
					Int("epoch", epoch).
					Float64("kl", kl).
					Msg("stopping early due to high KL divergence")
				return true, nil
			}
		}
	}
	return false, nil
}

// update takes a single optimizer step on a mini-batch
func (p *PPO) update(b rollout.Batch) (miniBatchStats, error) {
	ac := p.handle.ac
	in, err := p.inputs(b)
	if err != nil {
		return miniBatchStats{}, fmt.Errorf("update: %w", err)
	}

	if _, err := ac.Evaluate(in.states, in.actions); err != nil {
		return miniBatchStats{}, fmt.Errorf("update: %w", err)
	}
	if err := p.obj.set(in); err != nil {
		return miniBatchStats{}, fmt.Errorf("update: %w", err)
	}

	// Gradients accumulate over runs of the VM until a solver step
	// consumes them, so a rejected mini-batch must not leave any behind
	defer p.vm.Reset()
	if err := p.vm.RunAll(); err != nil {
		err = fmt.Errorf("could not run loss VM: %w", err)
		return miniBatchStats{}, p.discard(err)
	}

	mb, err := p.step(b)
	if err != nil {
		return miniBatchStats{}, p.discard(err)
	}
	return mb, nil
}

// discard zeroes the gradients of all learnables after a failed
// update and returns err wrapped for update
func (p *PPO) discard(err error) error {
	if zeroErr := zeroGrads(p.learnables); zeroErr != nil {
		return fmt.Errorf("update: %w (%v)", err, zeroErr)
	}
	return fmt.Errorf("update: %w", err)
}

// step checks the losses of the last run of the loss VM and applies
// its gradients
func (p *PPO) step(b rollout.Batch) (miniBatchStats, error) {
	var mb miniBatchStats
	mb.loss, mb.actor, mb.critic, mb.entropy = p.obj.losses()
	if p.config.CheckFinite && !floatutils.AllFinite(mb.loss, mb.actor,
		mb.critic, mb.entropy) {
		return miniBatchStats{}, fmt.Errorf("%w: loss %v, actor %v, "+
			"critic %v, entropy %v", ErrNonFinite, mb.loss, mb.actor,
			mb.critic, mb.entropy)
	}
	mb.kl = p.obj.approxKL(b.OldLogProbs, b.Len, p.handle.ac.ActionDims())
	mb.clipFraction = p.obj.clipFraction(b.Len, p.config.EpsClip)

	if p.config.MaxGradNorm > 0 {
		if _, err := clipGradNorm(p.actorNodes, p.config.MaxGradNorm); err != nil {
			return miniBatchStats{}, err
		}
	}
	if err := p.actorSolver.Step(p.actorModel); err != nil {
		return miniBatchStats{}, fmt.Errorf("actor step: %w", err)
	}
	if err := p.criticSolver.Step(p.criticModel); err != nil {
		return miniBatchStats{}, fmt.Errorf("critic step: %w", err)
	}

	return mb, nil
}

// batchInputs is a mini-batch padded to the batch size of the graph
type batchInputs struct {
	n          int
	states     []float64
	actions    []float64
	oldLogProb []float64 // summed over action dimensions
	advantages []float64
	returns    []float64
	weights    []float64
}

// inputs pads a mini-batch to the batch size of the graph and adds
// intrinsic rewards to its advantages and returns
func (p *PPO) inputs(b rollout.Batch) (batchInputs, error) {
	ac := p.handle.ac
	size, features, actionDims := ac.BatchSize(), ac.Features(),
		ac.ActionDims()
	if b.Len == 0 || b.Len > size {
		return batchInputs{}, fmt.Errorf("inputs: mini-batch of %v "+
			"transitions for a batch size of %v", b.Len, size)
	}

	in := batchInputs{
		n:          b.Len,
		states:     make([]float64, size*features),
		actions:    make([]float64, size*actionDims),
		oldLogProb: make([]float64, size),
		advantages: make([]float64, size),
		returns:    make([]float64, size),
		weights:    make([]float64, size),
	}
	copy(in.states, b.States)
	copy(in.actions, b.Actions)
	copy(in.advantages, b.Advantages)
	copy(in.returns, b.Returns)
	for i := 0; i < b.Len; i++ {
		in.oldLogProb[i] = floats.Sum(b.OldLogProbs[i*actionDims : (i+1)*actionDims])
		in.weights[i] = 1.0
	}

	if p.intrinsic != nil {
		rewards, err := p.intrinsic.IntrinsicRewards(b.States, b.Len)
		if err != nil {
			return batchInputs{}, fmt.Errorf("inputs: intrinsic rewards: %w",
				err)
		}
		if len(rewards) != b.Len {
			return batchInputs{}, fmt.Errorf("inputs: %v intrinsic rewards "+
				"for %v transitions", len(rewards), b.Len)
		}
		floats.AddScaled(in.advantages[:b.Len], p.config.Beta, rewards)
		floats.AddScaled(in.returns[:b.Len], p.config.Beta, rewards)
	}

	return in, nil
}

// Close closes the loss VM and the parameters
func (p *PPO) Close() error {
	vmErr := p.vm.Close()
	if err := p.handle.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if vmErr != nil {
		return fmt.Errorf("close: %w", vmErr)
	}
	return nil
}

var _ agent.Closer = &PPO{}
