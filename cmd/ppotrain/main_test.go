package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	"github.com/rcppo/golearn/experiment/tracker"
	"github.com/rcppo/golearn/initwfn"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var smallNet = []string{
	"--actor-layers", "8",
	"--actor-biases", "true",
	"--actor-activations", "relu",
	"--critic-layers", "8",
	"--critic-biases", "true",
	"--critic-activations", "tanh",
	"--batch-size", "16",
	"--mini-batch-size", "8",
	"--k-epochs", "1",
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	cmd := newTrainCmd(v)
	require.NoError(t, cmd.ParseFlags(nil))

	c, err := decodeConfig(v)
	require.NoError(t, err)

	want := ppo.Default()
	assert.Equal(t, want.ActorLayers, c.ActorLayers)
	assert.Equal(t, want.CriticBiases, c.CriticBiases)
	assert.Equal(t, names(want.ActorActivations), names(c.ActorActivations))
	assert.Equal(t, want.BatchSize, c.BatchSize)
	assert.Equal(t, want.KLThreshold, c.KLThreshold)
	assert.Empty(t, c.ActionMask)
	assert.True(t, c.CheckFinite)
}

func TestDecodeConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("PPO_GAMMA", "0.9")
	t.Setenv("PPO_CRITIC_LAYERS", "16,4")
	t.Setenv("PPO_CRITIC_BIASES", "true,false")
	t.Setenv("PPO_CRITIC_ACTIVATIONS", "relu,identity")
	t.Setenv("PPO_LR_ACTOR", "0.5")

	v := viper.New()
	cmd := newTrainCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{
		"--lr-actor", "0.01",
		"--action-mask", "1,0,1,1,1,1,1",
		"--actor-activations", "relu,relu",
	}))

	c, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 0.9, c.Gamma)
	assert.Equal(t, 0.01, c.LrActor, "flags take precedence over env")
	assert.Equal(t, []int{16, 4}, c.CriticLayers)
	assert.Equal(t, []bool{true, false}, c.CriticBiases)
	assert.Equal(t, []string{"relu", "relu"}, names(c.ActorActivations))
	assert.Equal(t, []string{"relu", "identity"}, names(c.CriticActivations))
	assert.Equal(t, []float64{1, 0, 1, 1, 1, 1, 1}, c.ActionMask)
}

func TestDecodeConfigInit(t *testing.T) {
	v := viper.New()
	cmd := newTrainCmd(v)
	require.NoError(t, cmd.ParseFlags(nil))
	c, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, initwfn.GlorotUConfig{Gain: 1}, c.InitWFn.Config)

	t.Setenv("PPO_INIT_GAIN", "2")
	v = viper.New()
	cmd = newTrainCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--init", "glorotn"}))
	c, err = decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, initwfn.GlorotNConfig{Gain: 2}, c.InitWFn.Config)

	v = viper.New()
	cmd = newTrainCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--init", "Constant",
		"--init-value", "0.25"}))
	c, err = decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, initwfn.ConstantConfig{Value: 0.25}, c.InitWFn.Config)
}

func TestDecodeConfigInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--actor-activations", "softmax,tanh"},
		{"--mini-batch-size", "0"},
		{"--actor-layers", "8"},
		{"--init", "orthogonal"},
	} {
		v := viper.New()
		cmd := newTrainCmd(v)
		require.NoError(t, cmd.ParseFlags(args))

		_, err := decodeConfig(v)
		assert.Error(t, err, args)
	}
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	args := append([]string{"train",
		"--steps", "40",
		"--episode-steps", "10",
		"--checkpoint-every", "20",
		"--log-level", "warn",
		"--out", dir,
	}, smallNet...)

	_, err := run(t, args...)
	require.NoError(t, err)

	runs, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	runDir := filepath.Join(dir, runs[0].Name())

	for _, f := range []string{returnsFile, learningFile, configFile,
		finalFile, checkpoint + "1" + snapshotExt,
		checkpoint + "2" + snapshotExt} {
		assert.FileExists(t, filepath.Join(runDir, f))
	}

	returns, err := tracker.LoadReturns(filepath.Join(runDir, returnsFile))
	require.NoError(t, err)
	assert.NotEmpty(t, returns)

	learning, err := tracker.LoadLearning(filepath.Join(runDir,
		learningFile))
	require.NoError(t, err)
	assert.Len(t, learning, 2)

	data, err := os.ReadFile(filepath.Join(runDir, configFile))
	require.NoError(t, err)
	var typed agent.TypedConfig
	require.NoError(t, json.Unmarshal(data, &typed))
	assert.Equal(t, agent.GaussianPPOMLP, typed.Type)

	// Resume from the final snapshot
	resumed := append([]string{"train",
		"--steps", "5",
		"--episode-steps", "10",
		"--checkpoint-every", "0",
		"--log-level", "error",
		"--out", t.TempDir(),
		"--resume", filepath.Join(runDir, finalFile),
	}, smallNet...)
	_, err = run(t, resumed...)
	require.NoError(t, err)
}

func TestTrainBadResume(t *testing.T) {
	args := append([]string{"train",
		"--steps", "5",
		"--log-level", "error",
		"--out", t.TempDir(),
		"--resume", filepath.Join(t.TempDir(), "missing.bin"),
	}, smallNet...)
	_, err := run(t, args...)
	assert.Error(t, err)
}

func TestTrainBadLogLevel(t *testing.T) {
	_, err := run(t, "train", "--log-level", "loud", "--out", t.TempDir())
	assert.Error(t, err)
}
