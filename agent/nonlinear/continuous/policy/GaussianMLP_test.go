package policy

import (
	"math"
	"testing"

	"github.com/rcppo/golearn/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

const (
	features   = 3
	actionDims = 2
)

func layers() Layers {
	return Layers{
		Hidden:      []int{4},
		Biases:      []bool{true},
		Activations: []*network.Activation{network.TanH()},
	}
}

func newPolicy(t *testing.T, batch int, seed uint64) *GaussianMLP {
	t.Helper()
	p, err := NewGaussianMLP(features, actionDims, batch, layers(), layers(),
		G.GlorotU(1), -1, seed)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// runScore runs the training graph on a single state-action pair
func runScore(t *testing.T, p *GaussianMLP, obs, action []float64) (logProb,
	entropy []float64, value float64) {
	t.Helper()
	ev, err := p.Evaluate(obs, action)
	require.NoError(t, err)

	vm := G.NewTapeMachine(p.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	logProb = append([]float64(nil), ev.LogProb.Value().Data().([]float64)...)
	entropy = append([]float64(nil), ev.Entropy.Value().Data().([]float64)...)
	value = ev.Value.Value().Data().([]float64)[0]
	return logProb, entropy, value
}

func TestActMatchesEvaluate(t *testing.T) {
	p := newPolicy(t, 1, 1)
	obs := []float64{0.1, -0.4, 0.7}

	action, logProb, value := p.Act(obs)
	require.Len(t, action, actionDims)
	require.Len(t, logProb, actionDims)

	gotLogProb, entropy, gotValue := runScore(t, p, obs, action)
	assert.InDeltaSlice(t, logProb, gotLogProb, 1e-9)
	assert.InDelta(t, value, gotValue, 1e-9)

	// Entropy of a Gaussian with log standard deviation -1
	want := 0.5 + 0.5*math.Log(2*math.Pi) - 1
	assert.InDeltaSlice(t, []float64{want, want}, entropy, 1e-9)
}

func TestValue(t *testing.T) {
	p := newPolicy(t, 1, 3)
	q := newPolicy(t, 1, 3)
	blob, err := p.Snapshot()
	require.NoError(t, err)
	require.NoError(t, q.Load(blob))
	obs := []float64{-0.2, 0.5, 0.3}

	_, _, value := p.Act(obs)
	assert.InDelta(t, value, p.Value(obs), 1e-12)
	action, _, _ := p.Act(obs)

	q.Act(obs)
	want, _, _ := q.Act(obs)
	assert.Equal(t, want, action)

	assert.Panics(t, func() { p.Value([]float64{1}) })
}

func TestActionMask(t *testing.T) {
	p := newPolicy(t, 1, 1)
	obs := []float64{0.3, 0.2, 0.1}

	require.NoError(t, p.SetActionMask([]float64{1, 0}))
	assert.Equal(t, []float64{1, 0}, p.ActionMask())

	for i := 0; i < 5; i++ {
		action, logProb, _ := p.Act(obs)
		assert.Zero(t, action[1])
		assert.Zero(t, logProb[1])
		assert.NotZero(t, logProb[0])
	}

	logProb, entropy, _ := runScore(t, p, obs, []float64{0.5, 3})
	assert.Zero(t, logProb[1])
	assert.Zero(t, entropy[1])
	assert.NotZero(t, entropy[0])

	assert.Error(t, p.SetActionMask([]float64{1}))
	assert.Error(t, p.SetActionMask([]float64{1, 0.5}))
	assert.Equal(t, []float64{1, 0}, p.ActionMask())
}

func TestSnapshotLoad(t *testing.T) {
	source := newPolicy(t, 4, 7)
	dest := newPolicy(t, 4, 7)
	obs := []float64{1, 2, 3}

	blob, err := source.Snapshot()
	require.NoError(t, err)
	require.NoError(t, dest.Load(blob))

	// Same parameters and the same sampling seed give the same actions
	for i := 0; i < 3; i++ {
		a1, l1, v1 := source.Act(obs)
		a2, l2, v2 := dest.Act(obs)
		assert.InDeltaSlice(t, a1, a2, 1e-12)
		assert.InDeltaSlice(t, l1, l2, 1e-12)
		assert.InDelta(t, v1, v2, 1e-12)
	}

	want, err := network.Values(source.ActorLearnables())
	require.NoError(t, err)
	got, err := network.Values(dest.ActorLearnables())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadErrors(t *testing.T) {
	p := newPolicy(t, 1, 1)
	assert.ErrorIs(t, p.Load([]byte("not a snapshot")), ErrSnapshot)

	other, err := NewGaussianMLP(features+1, actionDims, 1, layers(),
		layers(), G.GlorotU(1), -1, 1)
	require.NoError(t, err)
	defer other.Close()
	blob, err := other.Snapshot()
	require.NoError(t, err)
	assert.ErrorIs(t, p.Load(blob), ErrSnapshot)

	wider, err := NewGaussianMLP(features, actionDims, 1,
		Layers{Hidden: []int{8}, Biases: []bool{true},
			Activations: []*network.Activation{network.ReLU()}},
		layers(), G.GlorotU(1), -1, 1)
	require.NoError(t, err)
	defer wider.Close()
	blob, err = wider.Snapshot()
	require.NoError(t, err)
	assert.ErrorIs(t, p.Load(blob), ErrSnapshot)
}

func TestShapeErrors(t *testing.T) {
	p := newPolicy(t, 2, 1)

	assert.Panics(t, func() { p.Act([]float64{1}) })

	_, err := p.Evaluate(make([]float64, features), make([]float64,
		2*actionDims))
	assert.Error(t, err)
	_, err = p.Evaluate(make([]float64, 2*features), make([]float64,
		actionDims))
	assert.Error(t, err)

	_, err = NewGaussianMLP(0, actionDims, 1, layers(), layers(),
		G.GlorotU(1), -1, 1)
	assert.Error(t, err)
}

func TestLearnables(t *testing.T) {
	p := newPolicy(t, 2, 1)

	actor := p.ActorLearnables()
	require.Len(t, actor, 5)
	assert.Equal(t, "logStd", actor[len(actor)-1].Name())
	assert.Len(t, p.CriticLearnables(), 4)

	assert.Equal(t, 2, p.BatchSize())
	assert.Equal(t, features, p.Features())
	assert.Equal(t, actionDims, p.ActionDims())
	assert.Equal(t, []int{2, actionDims},
		[]int(p.EvaluationNodes().LogProb.Shape()))
}
