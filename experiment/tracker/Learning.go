package tracker

import (
	"fmt"

	"github.com/rcppo/golearn/agent/nonlinear/continuous/ppo"
	ts "github.com/rcppo/golearn/timestep"
)

// StatsSource reports the statistics of its most recent update and
// how many updates it has made
type StatsSource interface {
	LastStats() (ppo.Stats, int)
}

// Learning tracks and saves the statistics of every update a learner
// makes during an experiment. Updates are detected when the learner's
// update count changes between two tracked timesteps.
type Learning struct {
	source   StatsSource
	seen     int
	stats    []ppo.Stats
	filename string
}

// NewLearning returns a new Learning Tracker reading from source
func NewLearning(source StatsSource, filename string) *Learning {
	_, seen := source.LastStats()
	return &Learning{source: source, seen: seen, filename: filename}
}

// Track records the statistics of the source's latest update if an
// update was made since the last call
func (l *Learning) Track(ts.TimeStep) {
	stats, n := l.source.LastStats()
	if n == l.seen {
		return
	}
	l.seen = n
	l.stats = append(l.stats, stats)
}

// Data returns the statistics of all tracked updates
func (l *Learning) Data() []ppo.Stats {
	return append([]ppo.Stats(nil), l.stats...)
}

// Save saves the tracked statistics to disk
func (l *Learning) Save() error {
	if err := save(l.filename, l.stats); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// LoadLearning loads and returns the statistics saved by a Learning
// Tracker
func LoadLearning(filename string) ([]ppo.Stats, error) {
	var data []ppo.Stats
	if err := load(filename, &data); err != nil {
		return nil, fmt.Errorf("loadlearning: %w", err)
	}
	return data, nil
}
