package tracker

import (
	"path/filepath"
	"testing"

	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	ts "github.com/rcppo/golearn/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func episode(rewards ...float64) []ts.TimeStep {
	steps := []ts.TimeStep{ts.New(ts.First, 0, 1, nil, 0)}
	for i, r := range rewards {
		kind := ts.Mid
		if i == len(rewards)-1 {
			kind = ts.Last
		}
		steps = append(steps, ts.New(kind, r, 1, nil, i+1))
	}
	return steps
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	r := NewReturn(filename)

	for _, step := range episode(1, 2, 3) {
		r.Track(step)
	}
	for _, step := range episode(-1, 0.5) {
		r.Track(step)
	}

	// Unfinished episodes are dropped
	r.Track(ts.New(ts.First, 0, 1, nil, 0))
	r.Track(ts.New(ts.Mid, 10, 1, nil, 1))

	assert.Equal(t, []float64{6, -0.5}, r.Data())

	require.NoError(t, r.Save())
	loaded, err := LoadReturns(filename)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, -0.5}, loaded)
}

func TestReturnPanicsOnGap(t *testing.T) {
	r := NewReturn("unused")
	r.Track(ts.New(ts.First, 0, 1, nil, 0))

	assert.Panics(t, func() {
		r.Track(ts.New(ts.Mid, 1, 1, nil, 2))
	})
}

type fakeSource struct {
	stats ppo.Stats
	n     int
}

func (f *fakeSource) LastStats() (ppo.Stats, int) { return f.stats, f.n }

func TestLearning(t *testing.T) {
	source := &fakeSource{stats: ppo.Stats{Loss: 100}, n: 3}
	filename := filepath.Join(t.TempDir(), "learning.bin")
	l := NewLearning(source, filename)

	// Updates made before the tracker existed are not recorded
	l.Track(ts.TimeStep{})
	assert.Empty(t, l.Data())

	source.stats, source.n = ppo.Stats{Loss: 1, Updates: 4}, 4
	l.Track(ts.TimeStep{})
	l.Track(ts.TimeStep{})
	source.stats, source.n = ppo.Stats{Loss: 2, EarlyStopped: true}, 5
	l.Track(ts.TimeStep{})

	want := []ppo.Stats{{Loss: 1, Updates: 4}, {Loss: 2, EarlyStopped: true}}
	assert.Equal(t, want, l.Data())

	require.NoError(t, l.Save())
	loaded, err := LoadLearning(filename)
	require.NoError(t, err)
	assert.Equal(t, want, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadReturns(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
