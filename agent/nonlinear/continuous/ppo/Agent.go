package ppo

import (
	"fmt"

	"github.com/rcppo/golearn/buffer/rollout"
	ts "github.com/rcppo/golearn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Collect makes the PPO record its own interaction with an environment
// into a new store seeded with seed. Without calling Collect, the PPO
// only learns from stores added with AddStore.
func (p *PPO) Collect(seed uint64) *rollout.Store {
	if p.own == nil {
		p.own = p.NewStore(seed)
	}
	return p.own
}

// ObserveFirst observes and records information about the first
// timestep in an episode.
func (p *PPO) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		p.log.Warn().Int("step", t.Number).
			Msg("ObserveFirst should only be called on the first timestep")
	}
	p.prevStep = t
	return nil
}

// SelectAction samples an action at the given timestep, which must be
// the last timestep observed
func (p *PPO) SelectAction(t ts.TimeStep) *mat.VecDense {
	if t != p.prevStep {
		panic("selectAction: timestep is different from that previously " +
			"recorded")
	}

	p.decision = p.selector.Select(t.Observation.RawVector().Data)
	return mat.NewVecDense(len(p.decision.Action), p.decision.Action)
}

// Observe records the transition from the previous timestep to
// nextStep. Episodes cut off by a time limit are stored as ended, with
// the discounted value of their final observation added to the reward.
func (p *PPO) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	prev := p.prevStep
	p.prevStep = nextStep
	if p.eval || p.own == nil {
		return nil
	}

	reward := nextStep.Reward
	if nextStep.Last() && !nextStep.TerminalEnd() {
		value := p.selector.Value(nextStep.Observation.RawVector().Data)
		reward += p.config.Gamma * value
	}

	err := p.own.Store(rollout.Transition{
		State:   prev.Observation.RawVector().Data,
		Action:  mat.VecDenseCopyOf(action).RawVector().Data,
		Reward:  reward,
		Done:    nextStep.Last(),
		LogProb: p.decision.LogProb,
		Value:   p.decision.Value,
	})
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	return nil
}

// Step learns from the collected transitions once BatchSize of them
// have been stored. It does nothing in evaluation mode.
func (p *PPO) Step() error {
	if p.eval || p.own == nil || p.own.Len() < p.config.BatchSize {
		return nil
	}

	// The value of the current observation bootstraps the unfinished
	// trajectory at the end of the store
	if !p.prevStep.Last() {
		p.own.Bootstrap(p.selector.Value(p.prevStep.Observation.RawVector().Data))
	}

	stats, err := p.Learn()
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	p.lastStats = stats
	p.learnCalls++

	p.log.Info().
		Float64("loss", stats.Loss).
		Float64("policy_loss", stats.PolicyLoss).
		Float64("value_loss", stats.ValueLoss).
		Float64("entropy_loss", stats.EntropyLoss).
		Float64("approx_kl", stats.ApproxKL).
		Float64("clip_fraction", stats.ClipFraction).
		Int("updates", stats.Updates).
		Bool("early_stopped", stats.EarlyStopped).
		Msg("learned")
	return nil
}

// LastStats returns the statistics of the most recent update made by
// Step and the number of updates Step has made so far
func (p *PPO) LastStats() (Stats, int) {
	return p.lastStats, p.learnCalls
}

// EndEpisode performs cleanup at the end of an episode.
func (p *PPO) EndEpisode() {}

// Eval sets the algorithm into evaluation mode
func (p *PPO) Eval() { p.eval = true }

// Train sets the algorithm into training mode
func (p *PPO) Train() { p.eval = false }

// IsEval returns whether the algorithm is in evaluation mode
func (p *PPO) IsEval() bool { return p.eval }
