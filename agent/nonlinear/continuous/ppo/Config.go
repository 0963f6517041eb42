package ppo

import (
	"fmt"
	"math"

	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/agent/nonlinear/continuous/policy"
	env "github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/initwfn"
	"github.com/rcppo/golearn/network"
)

func init() {
	// Register the Config type so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.GaussianPPOMLP, Config{})
}

// Config implements a configuration for a PPO agent with a Gaussian
// policy. The mean of the policy and the state value function are
// separate MLPs reading the same observation.
type Config struct {
	// Policy neural net
	ActorLayers      []int                 `mapstructure:"actor-layers"`
	ActorBiases      []bool                `mapstructure:"actor-biases"`
	ActorActivations []*network.Activation `mapstructure:"actor-activations"`

	// State value function neural net
	CriticLayers      []int                 `mapstructure:"critic-layers"`
	CriticBiases      []bool                `mapstructure:"critic-biases"`
	CriticActivations []*network.Activation `mapstructure:"critic-activations"`

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn `mapstructure:"-"`

	LrActor  float64 `mapstructure:"lr-actor"`
	LrCritic float64 `mapstructure:"lr-critic"`

	// BatchSize is the number of transitions the agent collects
	// between updates. MiniBatchSize is the size of each gradient
	// step's batch.
	BatchSize     int `mapstructure:"batch-size"`
	MiniBatchSize int `mapstructure:"mini-batch-size"`

	Gamma       float64 `mapstructure:"gamma"`
	LambdaGAE   float64 `mapstructure:"lambda-gae"`
	KEpochs     int     `mapstructure:"k-epochs"`
	EpsClip     float64 `mapstructure:"eps-clip"`
	LogStd      float64 `mapstructure:"log-std"`
	EntCoef     float64 `mapstructure:"ent-coef"`
	ClCoeff     float64 `mapstructure:"cl-coeff"`
	MaxGradNorm float64 `mapstructure:"max-grad-norm"` // <= 0 if no clipping
	KLThreshold float64 `mapstructure:"kl-threshold"`

	// Beta weighs intrinsic rewards. It is only used when the agent
	// is given an IntrinsicRewarder.
	Beta float64 `mapstructure:"beta"`

	// ActionMask enables (1) or disables (0) each action dimension.
	// An empty mask enables all dimensions.
	ActionMask []float64 `mapstructure:"action-mask"`

	NormalizeAdvantages bool `mapstructure:"normalize-advantages"`

	// CheckFinite aborts an update before the optimizer step when any
	// loss is NaN or infinite
	CheckFinite bool `mapstructure:"check-finite"`
}

// Default returns the default configuration
func Default() Config {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("default: %v", err))
	}

	return Config{
		ActorLayers:      []int{64, 64},
		ActorBiases:      []bool{true, true},
		ActorActivations: []*network.Activation{network.TanH(), network.TanH()},

		CriticLayers:      []int{64, 64},
		CriticBiases:      []bool{true, true},
		CriticActivations: []*network.Activation{network.TanH(), network.TanH()},

		InitWFn: init,

		LrActor:       1e-4,
		LrCritic:      1e-4,
		BatchSize:     1024 * 8,
		MiniBatchSize: 1024,
		Gamma:         0.99,
		LambdaGAE:     0.95,
		KEpochs:       5,
		EpsClip:       0.2,
		LogStd:        -3.0,
		EntCoef:       0.01,
		ClCoeff:       0.5,
		MaxGradNorm:   0.5,
		KLThreshold:   0.01,
		Beta:          0.1,
		CheckFinite:   true,
	}
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if err := validateLayers("actor", c.ActorLayers, c.ActorBiases,
		c.ActorActivations); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := validateLayers("critic", c.CriticLayers, c.CriticBiases,
		c.CriticActivations); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	switch {
	case c.InitWFn == nil:
		return fmt.Errorf("validate: no weight initializer")
	case c.LrActor < 0 || c.LrCritic < 0:
		return fmt.Errorf("validate: learning rates must be non-negative")
	case c.BatchSize <= 0:
		return fmt.Errorf("validate: batch size must be positive")
	case c.MiniBatchSize <= 0:
		return fmt.Errorf("validate: mini-batch size must be positive")
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("validate: gamma must be in [0, 1]")
	case c.LambdaGAE < 0 || c.LambdaGAE > 1:
		return fmt.Errorf("validate: GAE lambda must be in [0, 1]")
	case c.KEpochs <= 0:
		return fmt.Errorf("validate: number of epochs must be positive")
	case c.EpsClip < 0:
		return fmt.Errorf("validate: clip epsilon must be non-negative")
	case math.IsNaN(c.KLThreshold):
		return fmt.Errorf("validate: KL threshold cannot be NaN")
	}

	for i, m := range c.ActionMask {
		if m != 0 && m != 1 {
			return fmt.Errorf("validate: action mask[%v] = %v must be 0 "+
				"or 1", i, m)
		}
	}
	return nil
}

func validateLayers(name string, layers []int, biases []bool,
	acts []*network.Activation) error {
	if len(layers) != len(biases) {
		return fmt.Errorf("%v: one bias per layer required \n\twant(%v)"+
			"\n\thave(%v)", name, len(layers), len(biases))
	}
	if len(layers) != len(acts) {
		return fmt.Errorf("%v: one activation per layer required "+
			"\n\twant(%v)\n\thave(%v)", name, len(layers), len(acts))
	}
	for _, l := range layers {
		if l <= 0 {
			return fmt.Errorf("%v: layer sizes must be positive", name)
		}
	}
	return nil
}

// ValidAgent returns true if the argument agent can be constructed
// from the Config and false otherwise.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*PPO)
	return ok
}

// Type returns the type of agent constructed by the Config
func (c Config) Type() agent.Type {
	return agent.GaussianPPOMLP
}

// NewActorCritic creates the Gaussian policy and value function
// described by the Config
func (c Config) NewActorCritic(features, actionDims int,
	seed uint64) (*policy.GaussianMLP, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newactorcritic: %w", err)
	}

	return policy.NewGaussianMLP(
		features,
		actionDims,
		c.MiniBatchSize,
		policy.Layers{
			Hidden:      c.ActorLayers,
			Biases:      c.ActorBiases,
			Activations: c.ActorActivations,
		},
		policy.Layers{
			Hidden:      c.CriticLayers,
			Biases:      c.CriticBiases,
			Activations: c.CriticActivations,
		},
		c.InitWFn.InitWFn(),
		c.LogStd,
		seed,
	)
}

// CreateAgent creates and returns the agent determined by the
// configuration. The agent collects its own transitions and learns
// every BatchSize steps.
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	features := e.ObservationSpec().Dims()
	actionDims := e.ActionSpec().Dims()

	ac, err := c.NewActorCritic(features, actionDims, seed)
	if err != nil {
		return nil, fmt.Errorf("createagent: %w", err)
	}

	p, err := New(NewHandle(ac), c)
	if err != nil {
		ac.Close()
		return nil, fmt.Errorf("createagent: %w", err)
	}
	p.Collect(seed + 1)

	return p, nil
}
