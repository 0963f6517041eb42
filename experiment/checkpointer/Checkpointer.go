// Package checkpointer implements checkpointing of agent parameters
// during an experiment
package checkpointer

import (
	"fmt"
	"os"

	ts "github.com/rcppo/golearn/timestep"
)

// Saver is an object whose state can be saved as a snapshot
type Saver interface {
	Save() ([]byte, error)
}

// Loader is an object whose state can be restored from a snapshot
// returned by a Saver
type Loader interface {
	Load([]byte) error
}

// Checkpointer checkpoints/saves objects based on timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}

// Restore loads the snapshot saved in filename into l
func Restore(filename string, l Loader) error {
	blob, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := l.Load(blob); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}
