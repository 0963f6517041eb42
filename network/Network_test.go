package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestMultiHeadMLPForward(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(2, 3, 1, g, []int{2}, []bool{true},
		G.Ones(), []*Activation{Identity()})
	require.NoError(t, err)

	assert.Equal(t, 3, net.BatchSize())
	assert.Equal(t, 2, net.Features())
	assert.Equal(t, 1, net.Outputs())
	assert.Len(t, net.Learnables(), 4)
	assert.Len(t, net.Model(), 4)

	require.NoError(t, net.SetInput([]float64{1, 2, 3, 4, 0, 0}))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	// Weights of one and biases of zero sum the inputs twice
	assert.Equal(t, []int{3, 1}, []int(net.Prediction().Shape()))
	assert.Equal(t, []float64{6, 14, 0}, net.Output().Data())

	assert.Error(t, net.SetInput([]float64{1, 2}))
}

func TestMultiHeadMLPSharedInput(t *testing.T) {
	g := G.NewGraph()
	first, err := NewMultiHeadMLP(3, 2, 4, g, []int{5, 5},
		[]bool{true, false}, G.GlorotU(1), []*Activation{ReLU(), TanH()})
	require.NoError(t, err)

	input := first.(*multiHeadMLP).input
	second, err := NewMultiHeadMLPFromInput(input, 1, g, nil, nil,
		G.GlorotU(1), nil, "critic")
	require.NoError(t, err)

	assert.Equal(t, []int{2, 4}, []int(first.Prediction().Shape()))
	assert.Equal(t, []int{2, 1}, []int(second.Prediction().Shape()))
	assert.Len(t, first.Learnables(), 5)
	assert.Len(t, second.Learnables(), 2)
	assert.Equal(t, "criticL0W", second.Learnables()[0].Name())
}

func TestMultiHeadMLPErrors(t *testing.T) {
	g := G.NewGraph()
	_, err := NewMultiHeadMLP(2, 1, 1, g, []int{2}, []bool{true},
		G.Ones(), nil)
	assert.Error(t, err)

	_, err = NewMultiHeadMLP(2, 1, 1, g, []int{2}, nil, G.Ones(),
		[]*Activation{ReLU()})
	assert.Error(t, err)

	other := G.NewGraph()
	input := G.NewMatrix(other, G.Float64, G.WithShape(1, 2),
		G.WithName("input"), G.WithInit(G.Zeroes()))
	_, err = NewMultiHeadMLPFromInput(input, 1, g, nil, nil, G.Ones(), nil,
		"")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	newNet := func(init G.InitWFn) NeuralNet {
		net, err := NewMultiHeadMLP(3, 1, 2, G.NewGraph(), []int{4},
			[]bool{true}, init, []*Activation{TanH()})
		require.NoError(t, err)
		return net
	}
	source := newNet(G.GlorotU(1))
	dest := newNet(G.Zeroes())

	require.NoError(t, dest.Set(source))
	want, err := Values(source.Learnables())
	require.NoError(t, err)
	got, err := Values(dest.Learnables())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Networks never share memory after Set
	zeroes := make([][]float64, len(want))
	for i := range want {
		zeroes[i] = make([]float64, len(want[i]))
	}
	require.NoError(t, SetValues(source.Learnables(), zeroes))
	got, err = Values(dest.Learnables())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Architectures must match
	other, err := NewMultiHeadMLP(3, 1, 2, G.NewGraph(), []int{5},
		[]bool{true}, G.Ones(), []*Activation{TanH()})
	require.NoError(t, err)
	assert.Error(t, other.Set(source))
	assert.Error(t, SetValues(source.Learnables(), zeroes[:1]))
}

func TestActivationText(t *testing.T) {
	acts := []*Activation{ReLU(), TanH(), Identity(), Nil()}
	data, err := json.Marshal(acts)
	require.NoError(t, err)
	assert.JSONEq(t, `["relu", "tanh", "identity", "nil"]`, string(data))

	var decoded []*Activation
	require.NoError(t, json.Unmarshal(data, &decoded))
	for i := range acts {
		assert.Equal(t, acts[i].String(), decoded[i].String())
	}
	assert.True(t, decoded[2].IsIdentity())
	assert.True(t, decoded[3].IsNil())

	_, err = ActivationFromString("softmax")
	assert.Error(t, err)
	assert.Error(t, json.Unmarshal([]byte(`["sigmoid"]`), &decoded))
}
