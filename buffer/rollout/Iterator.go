package rollout

// Batch is a mini-batch of transitions. Per-sample matrices are stored
// in row major order, so States has Len rows of the observation length
// and Actions and OldLogProbs have Len rows of the action length.
type Batch struct {
	Len         int
	States      []float64
	Actions     []float64
	Rewards     []float64
	Dones       []bool
	OldLogProbs []float64
	OldValues   []float64
	Advantages  []float64
	Returns     []float64
}

// Iterator yields the mini-batches of one pass over a Store. An
// Iterator cannot be restarted.
type Iterator struct {
	obsDim int
	actDim int
	size   int
	order  []int
	pos    int

	states     []float64
	actions    []float64
	logProbs   []float64
	rewards    []float64
	values     []float64
	dones      []bool
	advantages []float64
	returns    []float64
}

// Next returns the next mini-batch. The boolean is false once every
// transition has been emitted.
func (it *Iterator) Next() (Batch, bool) {
	if it.pos >= len(it.order) {
		return Batch{}, false
	}

	end := it.pos + it.size
	if end > len(it.order) {
		end = len(it.order)
	}
	indices := it.order[it.pos:end]
	it.pos = end

	n := len(indices)
	b := Batch{
		Len:         n,
		States:      make([]float64, 0, n*it.obsDim),
		Actions:     make([]float64, 0, n*it.actDim),
		Rewards:     make([]float64, n),
		Dones:       make([]bool, n),
		OldLogProbs: make([]float64, 0, n*it.actDim),
		OldValues:   make([]float64, n),
		Advantages:  make([]float64, n),
		Returns:     make([]float64, n),
	}
	for i, idx := range indices {
		b.States = append(b.States, row(it.states, idx, it.obsDim)...)
		b.Actions = append(b.Actions, row(it.actions, idx, it.actDim)...)
		b.OldLogProbs = append(b.OldLogProbs,
			row(it.logProbs, idx, it.actDim)...)
		b.Rewards[i] = it.rewards[idx]
		b.Dones[i] = it.dones[idx]
		b.OldValues[i] = it.values[idx]
		b.Advantages[i] = it.advantages[idx]
		b.Returns[i] = it.returns[idx]
	}
	return b, true
}

// Remaining returns the number of transitions not yet emitted
func (it *Iterator) Remaining() int {
	return len(it.order) - it.pos
}

func row(data []float64, i, cols int) []float64 {
	return data[i*cols : (i+1)*cols]
}
