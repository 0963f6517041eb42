// Package experiment implements functionality for running an experiment
package experiment

import (
	"github.com/rcppo/golearn/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each TimeStep to Trackers, which cache the data
// they need in RAM to be saved to disk later by Save. The Run method
// runs episodes until the maximum timestep limit is reached or an
// error occurs. The RunEpisode method runs a single episode.
//
// Experiments also checkpoint the agent's parameters on each timestep
// using Checkpointers, which decide when a snapshot is saved.
type Experiment interface {
	Run() error

	// RunEpisode runs a single episode and returns whether the
	// timestep limit of the experiment has been reached
	RunEpisode() (bool, error)

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful to track data only after a specified event.
	Register(t tracker.Tracker)
}
