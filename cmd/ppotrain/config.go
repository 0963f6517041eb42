package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	"github.com/rcppo/golearn/initwfn"
	"github.com/rcppo/golearn/network"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// addConfigFlags adds a flag for every field of ppo.Config, defaulting
// to ppo.Default()
func addConfigFlags(flags *pflag.FlagSet) {
	c := ppo.Default()

	flags.IntSlice("actor-layers", c.ActorLayers, "Hidden layer sizes of the policy")
	flags.BoolSlice("actor-biases", c.ActorBiases, "Whether each policy layer has a bias")
	flags.StringSlice("actor-activations", names(c.ActorActivations), "Activation of each policy layer (relu, tanh, identity)")
	flags.IntSlice("critic-layers", c.CriticLayers, "Hidden layer sizes of the value function")
	flags.BoolSlice("critic-biases", c.CriticBiases, "Whether each value function layer has a bias")
	flags.StringSlice("critic-activations", names(c.CriticActivations), "Activation of each value function layer")
	flags.String("init", string(initwfn.GlorotU), "Weight initializer (GlorotU, GlorotN, Constant, Zeroes, Ones)")
	flags.Float64("init-gain", 1.0, "Gain of the Glorot weight initializers")
	flags.Float64("init-value", 0.0, "Weight value of the Constant initializer")

	flags.Float64("lr-actor", c.LrActor, "Policy learning rate")
	flags.Float64("lr-critic", c.LrCritic, "Value function learning rate")
	flags.Int("batch-size", c.BatchSize, "Transitions collected between updates")
	flags.Int("mini-batch-size", c.MiniBatchSize, "Transitions per gradient step")
	flags.Float64("gamma", c.Gamma, "Discount factor")
	flags.Float64("lambda-gae", c.LambdaGAE, "GAE lambda")
	flags.Int("k-epochs", c.KEpochs, "Passes over the collected transitions per update")
	flags.Float64("eps-clip", c.EpsClip, "Probability ratio clipping range")
	flags.Float64("log-std", c.LogStd, "Initial log standard deviation of the policy")
	flags.Float64("ent-coef", c.EntCoef, "Entropy bonus coefficient")
	flags.Float64("cl-coeff", c.ClCoeff, "Value loss coefficient")
	flags.Float64("max-grad-norm", c.MaxGradNorm, "Maximum policy gradient norm (<= 0 disables clipping)")
	flags.Float64("kl-threshold", c.KLThreshold, "Approximate KL divergence that stops an update early")
	flags.Float64("beta", c.Beta, "Intrinsic reward weight")
	flags.Float64Slice("action-mask", c.ActionMask, "Enabled (1) or disabled (0) action dimensions")
	flags.Bool("normalize-advantages", c.NormalizeAdvantages, "Standardize advantages over each update")
	flags.Bool("check-finite", c.CheckFinite, "Abort updates with non-finite losses")
}

func names(acts []*network.Activation) []string {
	out := make([]string, len(acts))
	for i, a := range acts {
		out[i] = a.String()
	}
	return out
}

// decodeConfig reads a ppo.Config from v. Keys missing from v keep
// their default values.
func decodeConfig(v *viper.Viper) (ppo.Config, error) {
	c := ppo.Default()

	hook := mapstructure.ComposeDecodeHookFunc(stringToSliceHook,
		activationHook)
	if err := v.Unmarshal(&c, viper.DecodeHook(hook)); err != nil {
		return ppo.Config{}, fmt.Errorf("decodeConfig: %w", err)
	}

	ty, err := initwfn.ParseType(v.GetString("init"))
	if err != nil {
		return ppo.Config{}, fmt.Errorf("decodeConfig: %w", err)
	}
	init, err := initwfn.New(ty, v.GetFloat64("init-gain"),
		v.GetFloat64("init-value"))
	if err != nil {
		return ppo.Config{}, fmt.Errorf("decodeConfig: %w", err)
	}
	c.InitWFn = init

	if err := c.Validate(); err != nil {
		return ppo.Config{}, fmt.Errorf("decodeConfig: %w", err)
	}
	return c, nil
}

// stringToSliceHook splits comma separated strings, optionally wrapped
// in brackets as printed by pflag, into slices. Elements are decoded
// into the slice's element type afterwards.
func stringToSliceHook(f, t reflect.Type, data interface{}) (interface{},
	error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
		return data, nil
	}

	s := strings.TrimSpace(data.(string))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return []string{}, nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

var activationType = reflect.TypeOf(&network.Activation{})

// activationHook decodes activation names
func activationHook(f, t reflect.Type, data interface{}) (interface{},
	error) {
	if f.Kind() != reflect.String || t != activationType {
		return data, nil
	}
	return network.ActivationFromString(data.(string))
}
