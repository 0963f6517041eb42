package rollout

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Store(Transition{
			State:   []float64{float64(i), float64(-i)},
			Action:  []float64{float64(i)},
			Reward:  1.0,
			Done:    i%7 == 6,
			LogProb: []float64{-float64(i)},
			Value:   0.5,
		})
		require.NoError(t, err)
	}
}

func drain(t *testing.T, it *Iterator) []Batch {
	t.Helper()
	var batches []Batch
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		batches = append(batches, b)
	}
	return batches
}

func TestBatchesPartition(t *testing.T) {
	s := New(2, 1, 0.99, 0.95, 1)
	fill(t, s, 23)

	it, err := s.Batches(5)
	require.NoError(t, err)
	batches := drain(t, it)
	require.Len(t, batches, 5)

	var seen []int
	for i, b := range batches {
		if i < len(batches)-1 {
			assert.Equal(t, 5, b.Len)
		}
		require.Len(t, b.States, 2*b.Len)
		require.Len(t, b.OldLogProbs, b.Len)
		for j := 0; j < b.Len; j++ {
			idx := int(b.States[2*j])
			assert.Equal(t, -float64(idx), b.States[2*j+1])
			assert.Equal(t, float64(idx), b.Actions[j])
			assert.Equal(t, -float64(idx), b.OldLogProbs[j])
			seen = append(seen, idx)
		}
	}

	sort.Ints(seen)
	want := make([]int, 23)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, seen)

	_, ok := it.Next()
	assert.False(t, ok, "iterator must not restart")
}

func TestClear(t *testing.T) {
	s := New(2, 1, 0.99, 0.95, 1)
	fill(t, s, 10)
	s.Clear()

	assert.True(t, s.Empty())
	it, err := s.Batches(4)
	require.NoError(t, err)
	assert.Empty(t, drain(t, it))

	fill(t, s, 3)
	it, err = s.Batches(4)
	require.NoError(t, err)
	assert.Len(t, drain(t, it), 1)
}

func TestGAE(t *testing.T) {
	gamma, lambda := 0.9, 0.5
	s := New(1, 1, gamma, lambda, 1)

	steps := []Transition{
		{Reward: 1, Value: 2},
		{Reward: 0, Value: 1, Done: true},
		{Reward: 2, Value: 3},
	}
	for _, step := range steps {
		step.State = []float64{0}
		step.Action = []float64{0}
		step.LogProb = []float64{0}
		require.NoError(t, s.Store(step))
	}
	s.Bootstrap(4)

	// Episode boundary after the second transition, bootstrap after
	// the third
	d2 := 2 + gamma*4 - 3
	d1 := 0 - 1.0
	d0 := 1 + gamma*1 - 2
	want := []float64{d0 + gamma*lambda*d1, d1, d2}

	advantages, returns := s.gae()
	assert.InDeltaSlice(t, want, advantages, 1e-12)
	assert.InDeltaSlice(t, []float64{want[0] + 2, want[1] + 1, want[2] + 3},
		returns, 1e-12)
}

func TestNormalizeAdvantages(t *testing.T) {
	s := New(2, 1, 0.99, 0.95, 3, NormalizeAdvantages())
	fill(t, s, 50)

	it, err := s.Batches(50)
	require.NoError(t, err)
	b, ok := it.Next()
	require.True(t, ok)

	var mean float64
	for _, a := range b.Advantages {
		mean += a
	}
	assert.InDelta(t, 0, mean/float64(b.Len), 1e-9)
}

func TestStoreShape(t *testing.T) {
	s := New(2, 1, 0.99, 0.95, 1)
	err := s.Store(Transition{
		State:   []float64{1},
		Action:  []float64{1},
		LogProb: []float64{0},
	})
	assert.True(t, errors.Is(err, ErrShape))
	assert.True(t, s.Empty())

	_, err = s.Batches(0)
	assert.Error(t, err)
}
