package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rcppo/golearn/agent"
	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	"github.com/rcppo/golearn/environment"
	"github.com/rcppo/golearn/environment/reach"
	"github.com/rcppo/golearn/experiment"
	"github.com/rcppo/golearn/experiment/checkpointer"
	"github.com/rcppo/golearn/experiment/tracker"
	"github.com/rcppo/golearn/utils/progressbar"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	returnsFile  = "returns.bin"
	learningFile = "learning.bin"
	configFile   = "config.json"
	finalFile    = "policy-final.bin"
	checkpoint   = "policy-"
	snapshotExt  = ".bin"
)

// newTrainCmd returns the train command reading its settings through v
func newTrainCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a PPO agent on the reaching task",
		Long: `Train a PPO agent on the reaching task.

Every flag can also be set with a PPO_ prefixed environment variable
(e.g. PPO_LR_ACTOR) or in the file given by --config. Flags take
precedence over environment variables, which take precedence over the
configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("train: %w", err)
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer cancel()

			return train(ctx, v, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	addConfigFlags(flags)

	// Experiment settings
	flags.Uint("steps", 1_000_000, "Total environment steps")
	flags.Int("episode-steps", 500, "Steps after which an episode times out")
	flags.Uint64("seed", 1, "Random seed")
	flags.String("out", "runs", "Directory to save run data in")
	flags.Int("checkpoint-every", 50_000, "Steps between policy snapshots (<= 0 disables checkpointing)")
	flags.String("resume", "", "Policy snapshot to start training from")
	flags.Bool("progress", false, "Display a progress bar")

	// Logging
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("config", "", "Configuration file")

	// Bind flags to viper for environment variable support
	v.BindPFlags(flags)
	v.SetEnvPrefix("PPO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("newLogger: %w", err)
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func train(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) error {
	logger, err := newLogger(stderr, v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	runID := uuid.NewString()
	logger = logger.With().Str("run", runID).Logger()

	c, err := decodeConfig(v)
	if err != nil {
		return fmt.Errorf("train: invalid configuration: %w", err)
	}

	dir := filepath.Join(v.GetString("out"), runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := writeConfig(filepath.Join(dir, configFile), c); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	// Environment
	seed := v.GetUint64("seed")
	bounds := make([]r1.Interval, reach.ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: 0, Max: 1}
	}
	starter := environment.NewUniformStarter(bounds, seed)
	task := reach.NewTarget(starter, v.GetInt("episode-steps"))
	e, _, err := reach.New(task, c.Gamma)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	// Agent
	ac, err := c.NewActorCritic(e.ObservationSpec().Dims(),
		e.ActionSpec().Dims(), seed)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	handle := ppo.NewHandle(ac)
	if resume := v.GetString("resume"); resume != "" {
		if err := checkpointer.Restore(resume, handle); err != nil {
			handle.Close()
			return fmt.Errorf("train: %w", err)
		}
		logger.Info().Str("snapshot", resume).Msg("resumed policy")
	}
	learner, err := ppo.New(handle, c, ppo.WithLogger(logger))
	if err != nil {
		handle.Close()
		return fmt.Errorf("train: %w", err)
	}
	defer learner.Close()
	learner.Collect(seed + 1)

	// Experiment
	steps := v.GetUint("steps")
	trackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(dir, returnsFile)),
		tracker.NewLearning(learner, filepath.Join(dir, learningFile)),
	}
	opts := []experiment.Option{experiment.WithLogger(logger)}
	if every := v.GetInt("checkpoint-every"); every > 0 {
		names := checkpointer.FilenameEnumerator(0,
			filepath.Join(dir, checkpoint), snapshotExt)
		saver, err := checkpointer.NewNStep(every, handle, names)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		opts = append(opts, experiment.WithCheckpointers(saver))
	}
	exp := experiment.NewOnline(e, learner, steps, trackers, opts...)

	var bar *progressbar.ProgressBar
	if v.GetBool("progress") {
		bar = progressbar.New(stdout, 40, int(steps))
		defer bar.Close()
	}

	logger.Info().
		Uint("steps", steps).
		Str("out", dir).
		Int("batch_size", c.BatchSize).
		Int("mini_batch_size", c.MiniBatchSize).
		Msg("training started")

	for ended := false; !ended; {
		if ctx.Err() != nil {
			logger.Warn().Msg("interrupted, saving run data")
			break
		}
		ended, err = exp.RunEpisode()
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		if bar != nil {
			bar.Set(int(exp.Steps()))
			bar.Display()
		}
	}

	if err := exp.Save(); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	blob, err := handle.Save()
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, finalFile), blob, 0o644); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	logger.Info().
		Uint("steps", exp.Steps()).
		Int("episodes", exp.Episodes()).
		Msg("training finished")
	return nil
}

// writeConfig saves c as a typed agent configuration so that it can be
// decoded with agent.TypedConfig
func writeConfig(filename string, c ppo.Config) error {
	data, err := json.MarshalIndent(agent.NewTypedConfig(c), "", "  ")
	if err != nil {
		return fmt.Errorf("writeConfig: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writeConfig: %w", err)
	}
	return nil
}
