package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// multiHeadMLP implements a multi-layered perceptron with multiple
// output nodes, one for each value that should be predicted.
type multiHeadMLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLPFromInput returns a new multi-head output MLP that
// computes its forward pass on an existing input node of the graph g.
// Several networks may be built on the same input node, in which case
// they share the input but none of their weights. The prefix is
// prepended to the names of all learnable nodes and must be unique
// within the graph.
//
// The MLP has len(hiddenSizes) + 1 layers. A final linear layer with a
// bias unit is always added so that the network predicts outputs
// values for each sample in the batch.
func NewMultiHeadMLPFromInput(input *G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string) (NeuralNet, error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newmultiheadmlpfrominput: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newmultiheadmlpfrominput: invalid number of biases" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	if !input.IsMatrix() {
		return nil, fmt.Errorf("newmultiheadmlpfrominput: input must be a " +
			"matrix")
	}
	if input.Graph() != g {
		return nil, fmt.Errorf("newmultiheadmlpfrominput: input must " +
			"belong to the graph")
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// Add the final linear output layer
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActs := append(append([]*Activation{}, activations...), Identity())

	layers := addfcLayers(g, sizes, layerBiases, layerActs, init, features,
		prefix)

	// Create the network and run the forward pass on the input node
	network := multiHeadMLP{
		g:          g,
		layers:     layers,
		input:      input,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batch,
	}
	if _, err := network.fwd(input); err != nil {
		msg := "newmultiheadmlpfrominput: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP, which
// reads its input from a new batch x features node.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	return NewMultiHeadMLPFromInput(input, outputs, g, hiddenSizes, biases,
		init, activations, "")
}

// Graph returns the computational graph of the multiHeadMLP.
func (m *multiHeadMLP) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the batch size of inputs to the network
func (m *multiHeadMLP) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (m *multiHeadMLP) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs from the network
func (m *multiHeadMLP) Outputs() int {
	return m.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (m *multiHeadMLP) SetInput(input []float64) error {
	if len(input) != m.numInputs*m.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.numInputs*m.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Set sets the weights of a multiHeadMLP to be equal to the
// weights of another NeuralNet with the same architecture. Weights are
// copied, the two networks never share memory afterwards.
func (m *multiHeadMLP) Set(source NeuralNet) error {
	if err := CopyValues(m.Learnables(), source.Learnables()); err != nil {
		return fmt.Errorf("set: %v", err)
	}
	return nil
}

// Learnables returns the learnable nodes in a multiHeadMLP
func (m *multiHeadMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		m.learnables = m.computeLearnables()
	}
	return m.learnables
}

// computeLearnables computes all the learnables for the network
func (m *multiHeadMLP) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(m.layers))

	for _, layer := range m.layers {
		learnables = append(learnables, layer.weights)
		if layer.bias != nil {
			learnables = append(learnables, layer.bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnables nodes with their gradients.
func (m *multiHeadMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if m.model == nil {
		m.model = NodesToModel(m.Learnables())
	}
	return m.model
}

// fwd performs the forward pass of the multiHeadMLP on the input
// node
func (m *multiHeadMLP) fwd(input *G.Node) (*G.Node, error) {
	if features := input.Shape()[1]; features != m.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", m.numInputs, features)
	}

	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// Output returns the output of the multiHeadMLP, which is only
// populated after a VM has run the graph.
func (m *multiHeadMLP) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the multiHeadMLP
func (m *multiHeadMLP) Prediction() *G.Node {
	return m.prediction
}
