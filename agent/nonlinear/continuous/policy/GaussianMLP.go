package policy

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/network"
	"github.com/rcppo/golearn/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrSnapshot is returned when a parameter snapshot cannot be loaded
var ErrSnapshot = errors.New("invalid snapshot")

var _ agent.ActorCritic = &GaussianMLP{}

// halfLog2Pi is log(sqrt(2π))
var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// Layers describes the hidden layers of an MLP. For index i, Hidden[i]
// is the number of units in hidden layer i, Biases[i] is whether it
// has a bias unit and Activations[i] is its activation.
type Layers struct {
	Hidden      []int
	Biases      []bool
	Activations []*network.Activation
}

// heads holds the networks and distribution parameters built on one
// computational graph
type heads struct {
	actor  network.NeuralNet
	critic network.NeuralNet
	logStd *G.Node // 1 x A
	value  *G.Node // B
}

// GaussianMLP implements a diagonal Gaussian policy together with a
// state value function. The mean of the Gaussian and the state value
// are predicted by two separate MLPs reading the same observation. The
// log standard deviation is a learnable vector that does not depend on
// the state.
//
// A GaussianMLP keeps two computational graphs. The training graph has
// batch size BatchSize() and is used to score stored state-action
// pairs when building a loss. The inference graph has batch size 1 and
// is used to sample actions. Sync copies the parameters of the
// training graph into the inference graph.
//
// Actions are sampled as action := μ + σ * ɛ, with ɛ ~ N(0, I).
// Disabled action dimensions are always 0 and have log probability and
// entropy 0.
type GaussianMLP struct {
	features   int
	actionDims int
	batch      int

	g       *G.ExprGraph
	train   heads
	actions *G.Node
	mask    *G.Node
	eval    agent.Evaluation

	inferG  *G.ExprGraph
	infer   heads
	vm      G.VM
	normal  *distmv.Normal
	maskVal []float64
}

// NewGaussianMLP returns a new GaussianMLP for observations with
// features features and actions with actionDims dimensions. The
// training graph scores batches of batch samples. The init parameter
// determines the weight initialization scheme, logStd is the initial
// log standard deviation of every action dimension and seed seeds the
// action sampler. All action dimensions start enabled.
func NewGaussianMLP(features, actionDims, batch int, actor, critic Layers,
	init G.InitWFn, logStd float64, seed uint64) (*GaussianMLP, error) {
	if features <= 0 || actionDims <= 0 || batch <= 0 {
		return nil, fmt.Errorf("newgaussianmlp: features (%v), action "+
			"dimensions (%v) and batch (%v) must be positive", features,
			actionDims, batch)
	}

	g := G.NewGraph()
	train, err := newHeads(g, features, actionDims, batch, actor, critic,
		init, logStd)
	if err != nil {
		return nil, fmt.Errorf("newgaussianmlp: training graph: %w", err)
	}

	inferG := G.NewGraph()
	infer, err := newHeads(inferG, features, actionDims, 1, actor, critic,
		init, logStd)
	if err != nil {
		return nil, fmt.Errorf("newgaussianmlp: inference graph: %w", err)
	}

	// Scoring nodes of the training graph
	actions := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, actionDims),
		G.WithName("actions"), G.WithInit(G.Zeroes()))
	mask := G.NewMatrix(g, tensor.Float64, G.WithShape(1, actionDims),
		G.WithName("actionMask"), G.WithInit(G.Ones()))
	logProb, entropy, err := score(train, actions, mask, batch)
	if err != nil {
		return nil, fmt.Errorf("newgaussianmlp: %w", err)
	}

	// Standard normal for action selection
	normal, ok := distmv.NewNormal(make([]float64, actionDims),
		mat.NewDiagDense(actionDims, floatutils.Ones(actionDims)),
		rand.NewSource(seed))
	if !ok {
		return nil, fmt.Errorf("newgaussianmlp: could not create standard " +
			"normal for action selection")
	}

	pol := &GaussianMLP{
		features:   features,
		actionDims: actionDims,
		batch:      batch,

		g:       g,
		train:   train,
		actions: actions,
		mask:    mask,
		eval: agent.Evaluation{
			LogProb: logProb,
			Value:   train.value,
			Entropy: entropy,
		},

		inferG:  inferG,
		infer:   infer,
		vm:      G.NewTapeMachine(inferG),
		normal:  normal,
		maskVal: floatutils.Ones(actionDims),
	}

	if err := pol.Sync(); err != nil {
		return nil, fmt.Errorf("newgaussianmlp: %w", err)
	}
	return pol, nil
}

// newHeads adds the actor and critic networks and the log standard
// deviation to g. Both networks read from the same input node.
func newHeads(g *G.ExprGraph, features, actionDims, batch int, actor,
	critic Layers, init G.InitWFn, logStd float64) (heads, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	actorNet, err := network.NewMultiHeadMLPFromInput(input, actionDims, g,
		actor.Hidden, actor.Biases, init, actor.Activations, "actor")
	if err != nil {
		return heads{}, fmt.Errorf("actor: %w", err)
	}

	criticNet, err := network.NewMultiHeadMLPFromInput(input, 1, g,
		critic.Hidden, critic.Biases, init, critic.Activations, "critic")
	if err != nil {
		return heads{}, fmt.Errorf("critic: %w", err)
	}

	logStdNode := G.NewMatrix(g, tensor.Float64, G.WithShape(1, actionDims),
		G.WithName("logStd"), G.WithInit(G.ValuesOf(logStd)))

	value, err := G.Reshape(criticNet.Prediction(), tensor.Shape{batch})
	if err != nil {
		return heads{}, fmt.Errorf("critic: %w", err)
	}

	return heads{
		actor:  actorNet,
		critic: criticNet,
		logStd: logStdNode,
		value:  value,
	}, nil
}

// score adds the per-dimension log probability of actions and the
// per-dimension entropy of the policy to the graph of h. Both are
// multiplied by the action mask.
func score(h heads, actions, mask *G.Node, batch int) (logProb,
	entropy *G.Node, err error) {
	g := actions.Graph()
	ones := network.Ones(g, batch)

	logStd, err := G.Mul(ones, h.logStd)
	if err != nil {
		return nil, nil, fmt.Errorf("score: %w", err)
	}
	maskRows, err := G.Mul(ones, mask)
	if err != nil {
		return nil, nil, fmt.Errorf("score: %w", err)
	}

	// log N(a | μ, σ) = -(a - μ)² / 2σ² - log σ - log √(2π)
	std := G.Must(G.Exp(logStd))
	z := G.Must(G.Sub(actions, h.actor.Prediction()))
	z = G.Must(G.HadamardDiv(z, std))
	exponent := G.Must(G.HadamardProd(G.NewConstant(-0.5), G.Must(G.Square(z))))
	normaliser := G.Must(G.Add(logStd, G.NewConstant(halfLog2Pi)))
	logProb = G.Must(G.Sub(exponent, normaliser))
	logProb = G.Must(G.HadamardProd(logProb, maskRows))

	// H(N(μ, σ)) = 1/2 + log √(2π) + log σ
	entropy = G.Must(G.Add(logStd, G.NewConstant(0.5+halfLog2Pi)))
	entropy = G.Must(G.HadamardProd(entropy, maskRows))

	return logProb, entropy, nil
}

// Act samples an action for obs from the inference graph
func (p *GaussianMLP) Act(obs []float64) (action, logProb []float64,
	value float64) {
	p.forward("act", obs)
	defer p.vm.Reset()

	mean := p.infer.actor.Output().Data().([]float64)
	logStd := p.infer.logStd.Value().Data().([]float64)
	value = p.infer.critic.Output().Data().([]float64)[0]
	eps := p.normal.Rand(nil)

	action = make([]float64, p.actionDims)
	logProb = make([]float64, p.actionDims)
	for i := range action {
		if p.maskVal[i] == 0 {
			continue
		}
		action[i] = mean[i] + math.Exp(logStd[i])*eps[i]
		logProb[i] = -0.5*eps[i]*eps[i] - logStd[i] - halfLog2Pi
	}

	return action, logProb, value
}

// Value returns the state value of obs predicted by the inference
// graph. No action noise is drawn.
func (p *GaussianMLP) Value(obs []float64) float64 {
	p.forward("value", obs)
	defer p.vm.Reset()

	return p.infer.critic.Output().Data().([]float64)[0]
}

// forward runs the inference graph on obs, panicking on failure
func (p *GaussianMLP) forward(op string, obs []float64) {
	if len(obs) != p.features {
		panic(fmt.Sprintf("%v: invalid observation length \n\twant(%v)"+
			"\n\thave(%v)", op, p.features, len(obs)))
	}

	input := append([]float64(nil), obs...)
	if err := p.infer.actor.SetInput(input); err != nil {
		panic(fmt.Sprintf("%v: cannot set input: %v", op, err))
	}
	if err := p.vm.RunAll(); err != nil {
		p.vm.Reset()
		panic(fmt.Sprintf("%v: could not run policy VM: %v", op, err))
	}
}

// Evaluate binds states and actions, given in row major order, to the
// inputs of the training graph
func (p *GaussianMLP) Evaluate(states, actions []float64) (agent.Evaluation,
	error) {
	if len(states) != p.batch*p.features {
		return agent.Evaluation{}, fmt.Errorf("evaluate: invalid number of "+
			"state features \n\twant(%v) \n\thave(%v)", p.batch*p.features,
			len(states))
	}
	if len(actions) != p.batch*p.actionDims {
		return agent.Evaluation{}, fmt.Errorf("evaluate: invalid number of "+
			"action dimensions \n\twant(%v) \n\thave(%v)",
			p.batch*p.actionDims, len(actions))
	}

	if err := p.train.actor.SetInput(states); err != nil {
		return agent.Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}

	actionsTensor := tensor.New(tensor.WithShape(p.batch, p.actionDims),
		tensor.WithBacking(actions))
	if err := G.Let(p.actions, actionsTensor); err != nil {
		return agent.Evaluation{}, fmt.Errorf("evaluate: could not set "+
			"actions: %w", err)
	}

	return p.eval, nil
}

// EvaluationNodes returns the scoring nodes of the training graph
func (p *GaussianMLP) EvaluationNodes() agent.Evaluation {
	return p.eval
}

// Graph returns the training graph
func (p *GaussianMLP) Graph() *G.ExprGraph {
	return p.g
}

// ActorLearnables returns the learnables of the policy in the training
// graph, the log standard deviation last
func (p *GaussianMLP) ActorLearnables() G.Nodes {
	return append(append(G.Nodes{}, p.train.actor.Learnables()...),
		p.train.logStd)
}

// CriticLearnables returns the learnables of the value function in the
// training graph
func (p *GaussianMLP) CriticLearnables() G.Nodes {
	return p.train.critic.Learnables()
}

// BatchSize returns the batch size of the training graph
func (p *GaussianMLP) BatchSize() int {
	return p.batch
}

// Features returns the length of observations
func (p *GaussianMLP) Features() int {
	return p.features
}

// ActionDims returns the number of action dimensions
func (p *GaussianMLP) ActionDims() int {
	return p.actionDims
}

// SetActionMask sets which action dimensions are enabled (1) or
// disabled (0)
func (p *GaussianMLP) SetActionMask(mask []float64) error {
	if len(mask) != p.actionDims {
		return fmt.Errorf("setactionmask: invalid mask length \n\twant(%v)"+
			"\n\thave(%v)", p.actionDims, len(mask))
	}
	for i, m := range mask {
		if m != 0 && m != 1 {
			return fmt.Errorf("setactionmask: mask[%v] = %v must be 0 or 1",
				i, m)
		}
	}

	p.maskVal = append([]float64(nil), mask...)
	maskTensor := tensor.New(tensor.WithShape(1, p.actionDims),
		tensor.WithBacking(append([]float64(nil), mask...)))
	if err := G.Let(p.mask, maskTensor); err != nil {
		return fmt.Errorf("setactionmask: %w", err)
	}
	return nil
}

// ActionMask returns a copy of the action mask
func (p *GaussianMLP) ActionMask() []float64 {
	return append([]float64(nil), p.maskVal...)
}

// Sync copies the parameters of the training graph to the inference
// graph
func (p *GaussianMLP) Sync() error {
	if err := p.infer.actor.Set(p.train.actor); err != nil {
		return fmt.Errorf("sync: actor: %w", err)
	}
	if err := p.infer.critic.Set(p.train.critic); err != nil {
		return fmt.Errorf("sync: critic: %w", err)
	}
	err := network.CopyValues(G.Nodes{p.infer.logStd}, G.Nodes{p.train.logStd})
	if err != nil {
		return fmt.Errorf("sync: log standard deviation: %w", err)
	}
	return nil
}

// snapshot is the gob encoded parameter blob of a GaussianMLP
type snapshot struct {
	Features   int
	ActionDims int
	Actor      [][]float64
	Critic     [][]float64
}

// Snapshot returns the parameters of the training graph
func (p *GaussianMLP) Snapshot() ([]byte, error) {
	actor, err := network.Values(p.ActorLearnables())
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	critic, err := network.Values(p.CriticLearnables())
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	var buf bytes.Buffer
	s := snapshot{
		Features:   p.features,
		ActionDims: p.actionDims,
		Actor:      actor,
		Critic:     critic,
	}
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("snapshot: could not encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load replaces the parameters of both graphs with those of a blob
// returned by Snapshot. The action mask is left unchanged.
func (p *GaussianMLP) Load(blob []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&s); err != nil {
		return fmt.Errorf("load: %w: %v", ErrSnapshot, err)
	}
	if s.Features != p.features || s.ActionDims != p.actionDims {
		return fmt.Errorf("load: %w: snapshot of %v features and %v action "+
			"dimensions, policy has %v and %v", ErrSnapshot, s.Features,
			s.ActionDims, p.features, p.actionDims)
	}

	if err := network.SetValues(p.ActorLearnables(), s.Actor); err != nil {
		return fmt.Errorf("load: %w: %v", ErrSnapshot, err)
	}
	if err := network.SetValues(p.CriticLearnables(), s.Critic); err != nil {
		return fmt.Errorf("load: %w: %v", ErrSnapshot, err)
	}
	return p.Sync()
}

// Close closes the inference VM
func (p *GaussianMLP) Close() error {
	return p.vm.Close()
}
