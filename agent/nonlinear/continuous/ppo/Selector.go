package ppo

// Decision is the result of selecting an action
type Decision struct {
	Action  []float64
	LogProb []float64 // per action dimension
	Value   float64
}

// Selector selects actions with the current parameters of a Handle
// without changing them
type Selector struct {
	h *Handle
}

// NewSelector returns a Selector reading the parameters of h
func NewSelector(h *Handle) *Selector {
	return &Selector{h: h}
}

// Select samples an action for a single observation. Select panics if
// the observation does not have the length the policy was built for.
func (s *Selector) Select(obs []float64) Decision {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	action, logProb, value := s.h.ac.Act(obs)
	return Decision{Action: action, LogProb: logProb, Value: value}
}

// Value returns the state value of a single observation. Unlike
// Select, it does not advance the action sampler.
func (s *Selector) Value(obs []float64) float64 {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	return s.h.ac.Value(obs)
}
