// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rcppo/golearn/utils/floatutils"
)

// VecClip performs an element-wise clipping of a vector's values such
// that each value is at least min and at most max
func VecClip(a *mat.VecDense, min, max float64) {
	for i := 0; i < a.Len(); i++ {
		a.SetVec(i, floatutils.Clip(a.AtVec(i), min, max))
	}
}

// VecOnes returns a vector of 1.0's
func VecOnes(length int) *mat.VecDense {
	return mat.NewVecDense(length, floatutils.Ones(length))
}
