package network

import (
	"fmt"

	"github.com/rcppo/golearn/utils/floatutils"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network. The bias is stored as a 1 x n row so that it can be copied
// across the batch with a matrix product.
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	if f.bias != nil {
		bias, err := G.Mul(Ones(x.Graph(), x.Shape()[0]), f.bias)
		if err != nil {
			return nil, fmt.Errorf("fwd: could not expand bias: %v", err)
		}
		if x, err = G.Add(x, bias); err != nil {
			return nil, fmt.Errorf("fwd: could not add bias: %v", err)
		}
	}

	if f.act == nil || f.act.IsNil() {
		return x, nil
	}
	return f.act.fwd(x)
}

// addfcLayers adds fully connected layers with the given sizes to the
// graph g. Node names are formed as prefix + "L<i>W" or "L<i>B".
func addfcLayers(g *G.ExprGraph, sizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, features int,
	prefix string) []*fcLayer {
	layers := make([]*fcLayer, len(sizes))
	in := features

	for i, out := range sizes {
		weights := G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
			G.WithName(fmt.Sprintf("%sL%dW", prefix, i)), G.WithInit(init))

		var bias *G.Node
		if biases[i] {
			bias = G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
				G.WithName(fmt.Sprintf("%sL%dB", prefix, i)),
				G.WithInit(G.Zeroes()))
		}

		layers[i] = &fcLayer{weights: weights, bias: bias,
			act: activations[i]}
		in = out
	}
	return layers
}

// Ones returns a constant batch x 1 column of ones. Multiplying a 1 x n
// row by this column repeats the row across the batch.
func Ones(g *G.ExprGraph, batch int) *G.Node {
	backing := floatutils.Ones(batch)
	return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
		G.WithName(fmt.Sprintf("ones%d", batch)),
		G.WithValue(tensor.New(tensor.WithShape(batch, 1),
			tensor.WithBacking(backing))))
}
