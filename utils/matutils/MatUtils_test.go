package matutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestVecClip(t *testing.T) {
	v := mat.NewVecDense(4, []float64{-2, 0.5, 3, 1})
	VecClip(v, 0, 1)
	assert.Equal(t, []float64{0, 0.5, 1, 1}, v.RawVector().Data)
}

func TestVecOnes(t *testing.T) {
	assert.Equal(t, []float64{1, 1}, VecOnes(2).RawVector().Data)
}
