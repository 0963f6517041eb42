package experiment

import (
	"fmt"

	"github.com/rcppo/golearn/agent"
	env "github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/experiment/checkpointer"
	"github.com/rcppo/golearn/experiment/tracker"
	ts "github.com/rcppo/golearn/timestep"
	"github.com/rs/zerolog"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env           env.Environment
	agent         agent.Agent
	maxSteps      uint
	currentSteps  uint
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	log           zerolog.Logger
}

// Option configures an Online experiment
type Option func(*Online)

// WithLogger sets the logger that episode summaries are written to
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Online) {
		o.log = logger.With().Str("component", "experiment").Logger()
	}
}

// WithCheckpointers adds Checkpointers which are called after each
// step of the agent
func WithCheckpointers(c ...checkpointer.Checkpointer) Option {
	return func(o *Online) {
		o.checkpointers = append(o.checkpointers, c...)
	}
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter
// holds the Trackers which determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	t []tracker.Tracker, opts ...Option) *Online {
	o := &Online{
		env:      e,
		agent:    a,
		maxSteps: steps,
		trackers: t,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment. An episode is
// cut short when the timestep limit of the experiment is reached.
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.env.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %w", err)
	}
	o.track(step)

	episodeReturn := 0.0
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.agent.SelectAction(step)
		step, _, err = o.env.Step(action)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		episodeReturn += step.Reward

		// Observe the timestep and step the agent
		if err := o.agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
		if err := o.agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}

		o.track(step)
		if err := o.checkpoint(step); err != nil {
			return false, fmt.Errorf("runEpisode: %w", err)
		}
	}

	if step.Last() {
		o.agent.EndEpisode()
		o.episodes++
		o.log.Info().
			Int("episode", o.episodes).
			Int("length", step.Number).
			Float64("return", episodeReturn).
			Bool("terminal", step.TerminalEnd()).
			Uint("total_steps", o.currentSteps).
			Msg("episode finished")
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Steps returns the number of timesteps run so far
func (o *Online) Steps() uint {
	return o.currentSteps
}

// Episodes returns the number of episodes finished so far
func (o *Online) Episodes() int {
	return o.episodes
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each
// Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// checkpoint gives each Checkpointer the chance to save the agent
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
