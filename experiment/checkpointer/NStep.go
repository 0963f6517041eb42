package checkpointer

import (
	"fmt"
	"os"

	ts "github.com/rcppo/golearn/timestep"
)

// NStep implements checkpointing every N steps
type NStep struct {
	interval int
	steps    int
	object   Saver

	// filename returns the name of the file to save the next snapshot
	// in.
	//
	// If each snapshot should be saved in a separate file with each
	// file having an incremented number as a suffix (e.g. file1.bin,
	// file2.bin, ..., fileK.bin), then use FilenameEnumerator.
	// Otherwise, a function returning the same name each time keeps
	// only the latest snapshot.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n calls to
// Checkpoint, counting steps across episodes
func NewNStep(n int, object Saver, filename func() string) (*NStep,
	error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive, "+
			"got %v", n)
	}
	return &NStep{interval: n, object: object, filename: filename}, nil
}

// Checkpoint saves a snapshot of the tracked object to a new file
// every n-th call
func (n *NStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	blob, err := n.object.Save()
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.WriteFile(n.filename(), blob, 0o644); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
