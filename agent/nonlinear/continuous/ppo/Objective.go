package ppo

import (
	"fmt"
	"math"

	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/utils/op"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// objective holds the inputs and outputs of the PPO loss, built on the
// training graph of an agent.ActorCritic. Batches smaller than the
// graph's batch size are zero padded, and padded rows get weight 0 in
// every mean.
type objective struct {
	// Inputs
	oldLogProb *G.Node // B, summed over action dimensions
	advantages *G.Node // B
	returns    *G.Node // B
	weights    *G.Node // B, 1 for real samples and 0 for padding
	invCount   *G.Node // scalar, 1 / number of real samples

	// Outputs
	ratio       *G.Node
	actorLoss   *G.Node
	criticLoss  *G.Node
	entropyLoss *G.Node
	loss        *G.Node

	ratioVal       G.Value
	logProbVal     G.Value
	actorLossVal   G.Value
	criticLossVal  G.Value
	entropyLossVal G.Value
	lossVal        G.Value
}

// newObjective adds the clipped surrogate PPO loss to the graph of ev:
//
//	loss = actor - entCoef * entropy + clCoeff * critic
//
// where actor = -mean(min(A * r, A * clip(r, 1-ε, 1+ε))), critic is
// the mean squared error of the value estimates and entropy is the
// mean of the summed per-dimension entropy.
func newObjective(g *G.ExprGraph, ev agent.Evaluation, batch int, epsClip,
	entCoef, clCoeff float64) (*objective, error) {
	vector := func(name string) *G.Node {
		return G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}

	o := &objective{
		oldLogProb: vector("oldLogProb"),
		advantages: vector("advantages"),
		returns:    vector("returns"),
		weights:    vector("weights"),
		invCount: G.NewScalar(g, tensor.Float64, G.WithName("invCount"),
			G.WithValue(1.0)),
	}

	// r = exp(Σ log π(a|s) - Σ log π_old(a|s))
	logProb, err := G.Sum(ev.LogProb, 1)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	o.ratio = G.Must(G.Exp(G.Must(G.Sub(logProb, o.oldLogProb))))

	surr1, surr2, err := surrogates(o.advantages, o.ratio, epsClip)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	surr, err := op.Min(surr1, surr2)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	o.actorLoss, err = op.WeightedMean(surr, o.weights, o.invCount)
	if err != nil {
		return nil, fmt.Errorf("newobjective: actor loss: %w", err)
	}
	o.actorLoss = G.Must(G.Neg(o.actorLoss))

	sqErr := G.Must(G.Square(G.Must(G.Sub(ev.Value, o.returns))))
	o.criticLoss, err = op.WeightedMean(sqErr, o.weights, o.invCount)
	if err != nil {
		return nil, fmt.Errorf("newobjective: critic loss: %w", err)
	}

	entropy, err := G.Sum(ev.Entropy, 1)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	o.entropyLoss, err = op.WeightedMean(entropy, o.weights, o.invCount)
	if err != nil {
		return nil, fmt.Errorf("newobjective: entropy loss: %w", err)
	}

	entTerm := G.Must(G.Mul(G.NewConstant(entCoef), o.entropyLoss))
	clTerm := G.Must(G.Mul(G.NewConstant(clCoeff), o.criticLoss))
	o.loss = G.Must(G.Sub(o.actorLoss, entTerm))
	o.loss = G.Must(G.Add(o.loss, clTerm))

	G.Read(o.ratio, &o.ratioVal)
	G.Read(ev.LogProb, &o.logProbVal)
	G.Read(o.actorLoss, &o.actorLossVal)
	G.Read(o.criticLoss, &o.criticLossVal)
	G.Read(o.entropyLoss, &o.entropyLossVal)
	G.Read(o.loss, &o.lossVal)

	return o, nil
}

// surrogates returns the unclipped and clipped surrogate objectives
// A * r and A * clip(r, 1-ε, 1+ε)
func surrogates(advantages, ratio *G.Node, epsClip float64) (surr1,
	surr2 *G.Node, err error) {
	surr1, err = G.HadamardProd(advantages, ratio)
	if err != nil {
		return nil, nil, fmt.Errorf("surrogates: %w", err)
	}

	clipped, err := op.Clip(ratio, 1-epsClip, 1+epsClip)
	if err != nil {
		return nil, nil, fmt.Errorf("surrogates: %w", err)
	}
	surr2, err = G.HadamardProd(advantages, clipped)
	if err != nil {
		return nil, nil, fmt.Errorf("surrogates: %w", err)
	}
	return surr1, surr2, nil
}

// set binds a padded batch to the inputs of the objective
func (o *objective) set(in batchInputs) error {
	inputs := []struct {
		node *G.Node
		data []float64
	}{
		{o.oldLogProb, in.oldLogProb},
		{o.advantages, in.advantages},
		{o.returns, in.returns},
		{o.weights, in.weights},
	}
	for _, input := range inputs {
		t := tensor.New(tensor.WithShape(len(input.data)),
			tensor.WithBacking(input.data))
		if err := G.Let(input.node, t); err != nil {
			return fmt.Errorf("set: could not set %v: %w",
				input.node.Name(), err)
		}
	}

	if err := G.Let(o.invCount, G.NewF64(1/float64(in.n))); err != nil {
		return fmt.Errorf("set: could not set %v: %w", o.invCount.Name(),
			err)
	}
	return nil
}

// losses returns the values of the losses computed by the last run of
// the graph
func (o *objective) losses() (loss, actor, critic, entropy float64) {
	return scalar(o.lossVal), scalar(o.actorLossVal),
		scalar(o.criticLossVal), scalar(o.entropyLossVal)
}

// approxKL returns mean(old - new) over every action dimension of the
// n real samples of the last run of the graph
func (o *objective) approxKL(oldLogProbs []float64, n, actionDims int) float64 {
	newLogProbs := o.logProbVal.Data().([]float64)[:n*actionDims]
	diff := make([]float64, n*actionDims)
	floats.SubTo(diff, oldLogProbs[:n*actionDims], newLogProbs)
	return floats.Sum(diff) / float64(len(diff))
}

// clipFraction returns the fraction of the n real samples of the last
// run of the graph whose ratio lies outside [1-ε, 1+ε]
func (o *objective) clipFraction(n int, epsClip float64) float64 {
	ratios := o.ratioVal.Data().([]float64)[:n]
	var clipped int
	for _, r := range ratios {
		if math.Abs(r-1) > epsClip {
			clipped++
		}
	}
	return float64(clipped) / float64(n)
}

func scalar(v G.Value) float64 {
	if v == nil {
		return 0
	}
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		return d[0]
	default:
		panic(fmt.Sprintf("scalar: unexpected value type %T", d))
	}
}

// clipGradNorm rescales the gradients of nodes in place so that their
// global L2 norm is at most maxNorm and returns the norm before
// rescaling
func clipGradNorm(nodes G.Nodes, maxNorm float64) (float64, error) {
	grads := make([][]float64, len(nodes))
	var sqNorm float64
	for i, node := range nodes {
		data, err := gradData(node)
		if err != nil {
			return 0, fmt.Errorf("clipgradnorm: %w", err)
		}
		grads[i] = data
		sqNorm += floats.Dot(data, data)
	}

	norm := math.Sqrt(sqNorm)
	if coef := maxNorm / (norm + 1e-6); coef < 1 {
		for _, grad := range grads {
			floats.Scale(coef, grad)
		}
	}
	return norm, nil
}

// zeroGrads sets the gradients of nodes to 0
func zeroGrads(nodes G.Nodes) error {
	for _, node := range nodes {
		data, err := gradData(node)
		if err != nil {
			return fmt.Errorf("zerograds: %w", err)
		}
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}

// gradData returns the backing data of the gradient of node
func gradData(node *G.Node) ([]float64, error) {
	grad, err := node.Grad()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", node.Name(), err)
	}
	data, ok := grad.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%v: gradient is not float64", node.Name())
	}
	return data, nil
}
