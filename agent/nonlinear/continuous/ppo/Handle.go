package ppo

import (
	"fmt"
	"sync"

	"github.com/rcppo/golearn/agent"
)

// Handle owns the single set of policy and value function parameters
// shared by action selection and learning. Every access to the
// parameters goes through the Handle's lock, so an update is never
// interleaved with action selection or with loading a snapshot.
type Handle struct {
	mu sync.Mutex
	ac agent.ActorCritic
}

// NewHandle returns a Handle owning ac
func NewHandle(ac agent.ActorCritic) *Handle {
	return &Handle{ac: ac}
}

// Save returns a snapshot of the current parameters
func (h *Handle) Save() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	blob, err := h.ac.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return blob, nil
}

// Load replaces the current parameters with a snapshot returned by
// Save. Optimizer state is kept.
func (h *Handle) Load(blob []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ac.Load(blob); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// SetActionMask sets the action mask used for both action selection
// and learning
func (h *Handle) SetActionMask(mask []float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ac.SetActionMask(mask)
}

// ActionMask returns the current action mask
func (h *Handle) ActionMask() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ac.ActionMask()
}

// Close releases the resources of the parameters
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ac.Close()
}
