package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NodesToModel converts learnable nodes to the model consumed by
// Gorgonia solvers
func NodesToModel(nodes G.Nodes) []G.ValueGrad {
	model := make([]G.ValueGrad, len(nodes))
	for i, node := range nodes {
		model[i] = node
	}
	return model
}

// Values returns a copy of the current value of each node
func Values(nodes G.Nodes) ([][]float64, error) {
	values := make([][]float64, len(nodes))
	for i, node := range nodes {
		data, err := backing(node)
		if err != nil {
			return nil, fmt.Errorf("values: %v", err)
		}
		values[i] = append([]float64(nil), data...)
	}
	return values, nil
}

// SetValues copies values into the existing tensors of nodes, in
// order. Values must match the number and sizes of the nodes.
func SetValues(nodes G.Nodes, values [][]float64) error {
	if len(nodes) != len(values) {
		return fmt.Errorf("setvalues: invalid number of values \n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(values))
	}

	for i, node := range nodes {
		data, err := backing(node)
		if err != nil {
			return fmt.Errorf("setvalues: %v", err)
		}
		if len(data) != len(values[i]) {
			return fmt.Errorf("setvalues: invalid size for node %v "+
				"\n\twant(%v) \n\thave(%v)", node.Name(), len(data),
				len(values[i]))
		}
		copy(data, values[i])
	}
	return nil
}

// CopyValues copies the values of the source nodes into the
// destination nodes
func CopyValues(dest, source G.Nodes) error {
	values, err := Values(source)
	if err != nil {
		return fmt.Errorf("copyvalues: %v", err)
	}
	return SetValues(dest, values)
}

// backing returns the float64 slice backing the value of a node
func backing(node *G.Node) ([]float64, error) {
	t, ok := node.Value().(tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("node %v has no tensor value", node.Name())
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %v is not float64", node.Name())
	}
	return data, nil
}
