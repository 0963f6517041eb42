// Package op provides extended Gorgonia graph operations.
//
// Comparisons are turned into 0/1 masks, which Gorgonia does not
// differentiate, so gradients flow only through the selected values.
package op

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Clip clips the value of a node element-wise to [min, max]. Values
// equal to a bound are passed through unchanged, so min == max == x
// returns x.
func Clip(value *G.Node, min, max float64) (retVal *G.Node, err error) {
	if value.Dtype() != G.Float64 {
		return nil, fmt.Errorf("clip: only float64 nodes are supported")
	}
	minNode := G.NewConstant(min, G.WithName("clip_min"))
	maxNode := G.NewConstant(max, G.WithName("clip_max"))

	// Below the minimum
	minMask, err := G.Lt(value, minNode, true)
	if err != nil {
		return nil, err
	}
	minVal, err := G.HadamardProd(minNode, minMask)
	if err != nil {
		return nil, err
	}

	// Within [min, max]
	isMaskGte, err := G.Gte(value, minNode, true)
	if err != nil {
		return nil, err
	}
	isMaskLte, err := G.Lte(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	isMask, err := G.HadamardProd(isMaskGte, isMaskLte)
	if err != nil {
		return nil, err
	}
	isVal, err := G.HadamardProd(value, isMask)
	if err != nil {
		return nil, err
	}

	// Above the maximum
	maxMask, err := G.Gt(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	maxVal, err := G.HadamardProd(maxNode, maxMask)
	if err != nil {
		return nil, err
	}

	sum, err := G.Add(minVal, isVal)
	if err != nil {
		return nil, err
	}
	return G.Add(sum, maxVal)
}

// Min returns the element-wise min value between the nodes. If values
// are equal the first value is returned
func Min(a *G.Node, b *G.Node) (retVal *G.Node, err error) {
	aMask, err := G.Lte(a, b, true)
	if err != nil {
		return nil, err
	}
	aVal, err := G.HadamardProd(a, aMask)
	if err != nil {
		return nil, err
	}

	bMask, err := G.Lt(b, a, true)
	if err != nil {
		return nil, err
	}
	bVal, err := G.HadamardProd(b, bMask)
	if err != nil {
		return nil, err
	}
	return G.Add(aVal, bVal)
}

// WeightedMean returns sum(x ⊙ weights) * scale. With 0/1 weights and
// scale the inverse of the number of ones it is the mean of the
// selected elements of x.
func WeightedMean(x, weights, scale *G.Node) (retVal *G.Node, err error) {
	weighted, err := G.HadamardProd(x, weights)
	if err != nil {
		return nil, err
	}
	sum, err := G.Sum(weighted)
	if err != nil {
		return nil, err
	}
	return G.Mul(sum, scale)
}
