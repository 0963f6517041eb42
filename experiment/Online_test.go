package experiment

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	"github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/environment/reach"
	"github.com/rcppo/golearn/experiment/checkpointer"
	"github.com/rcppo/golearn/experiment/tracker"
	"github.com/rcppo/golearn/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r1"
)

const episodeSteps = 10

func newReach(t *testing.T) *reach.Reach {
	t.Helper()
	bounds := make([]r1.Interval, reach.ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: 0, Max: 1}
	}
	task := reach.NewTarget(environment.NewUniformStarter(bounds, 1),
		episodeSteps)

	e, _, err := reach.New(task, 0.99)
	require.NoError(t, err)
	return e
}

func newAgent(t *testing.T) *ppo.PPO {
	t.Helper()
	c := ppo.Default()
	c.ActorLayers = []int{8}
	c.ActorBiases = []bool{true}
	c.ActorActivations = []*network.Activation{network.TanH()}
	c.CriticLayers = []int{8}
	c.CriticBiases = []bool{true}
	c.CriticActivations = []*network.Activation{network.TanH()}
	c.BatchSize = 16
	c.MiniBatchSize = 8
	c.KEpochs = 2
	c.KLThreshold = math.Inf(1)

	ac, err := c.NewActorCritic(reach.ObservationDims, reach.ActionDims, 1)
	require.NoError(t, err)
	p, err := ppo.New(ppo.NewHandle(ac), c)
	require.NoError(t, err)
	p.Collect(2)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOnlineRun(t *testing.T) {
	dir := t.TempDir()
	e := newReach(t)
	p := newAgent(t)

	returns := tracker.NewReturn(filepath.Join(dir, "returns.bin"))
	learning := tracker.NewLearning(p, filepath.Join(dir, "learning.bin"))
	saver, err := checkpointer.NewNStep(20, p.Handle(),
		checkpointer.FilenameEnumerator(0, filepath.Join(dir, "policy"),
			".bin"))
	require.NoError(t, err)

	exp := NewOnline(e, p, 45, []tracker.Tracker{returns},
		WithCheckpointers(saver))
	exp.Register(learning)

	require.NoError(t, exp.Run())

	// Episodes last at most episodeSteps steps
	assert.GreaterOrEqual(t, exp.Episodes(), 4)
	assert.Len(t, returns.Data(), exp.Episodes())

	// 45 steps hold two full batches of 16 transitions
	_, updates := p.LastStats()
	assert.Equal(t, 2, updates)
	require.Len(t, learning.Data(), 2)
	for _, s := range learning.Data() {
		assert.Equal(t, 4, s.Updates)
		assert.False(t, math.IsNaN(s.Loss))
	}

	require.NoError(t, exp.Save())
	loaded, err := tracker.LoadReturns(filepath.Join(dir, "returns.bin"))
	require.NoError(t, err)
	assert.Equal(t, returns.Data(), loaded)

	latest, ok, err := checkpointer.Latest(filepath.Join(dir, "policy"),
		".bin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "policy2.bin"), latest)
	require.NoError(t, checkpointer.Restore(latest, p.Handle()))
}

func TestOnlineEval(t *testing.T) {
	p := newAgent(t)
	p.Eval()

	exp := NewOnline(newReach(t), p, 40, nil)
	require.NoError(t, exp.Run())

	_, updates := p.LastStats()
	assert.Zero(t, updates)
}
