package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(3, -1, 1))
	assert.Equal(t, -1.0, Clip(-3, -1, 1))
	assert.Equal(t, 0.25, Clip(0.25, -1, 1))
}

func TestOnes(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, Ones(3))
	assert.Empty(t, Ones(0))
}

func TestAllFinite(t *testing.T) {
	assert.True(t, AllFinite())
	assert.True(t, AllFinite(1, -1e300, 0))
	assert.False(t, AllFinite(1, math.NaN()))
	assert.False(t, AllFinite(math.Inf(-1)))
}
