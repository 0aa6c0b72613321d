// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package prior builds the root-size prior distribution the engine
// combines with a family's likelihood vector, either empirically from
// the observed data or from a Poisson model.
package prior

import (
	"fmt"

	"github.com/js-arias/cafego/family"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Vector is a probability distribution over family sizes 0..max. It
// sums to 1 within 1e-9.
type Vector []float64

// Sum returns the total probability mass.
func (v Vector) Sum() float64 { return floats.Sum(v) }

// Empirical builds a histogram-based prior over root sizes 0..max:
// every observed count, across every family and every species column
// in store, is tallied into its bin, each bin is then add-one
// smoothed (Laplace smoothing, so no size is ever given zero prior
// probability), and the result is normalized to sum to 1.
func Empirical(store *family.Store, max int) (Vector, error) {
	if max < 0 {
		return nil, fmt.Errorf("prior: negative max %d", max)
	}
	counts := make([]float64, max+1)
	for i := 0; i < store.Len(); i++ {
		f := store.At(i)
		for _, c := range f.Counts {
			if c < 0 || c > max {
				return nil, fmt.Errorf("prior: observed count %d exceeds max %d", c, max)
			}
			counts[c]++
		}
	}
	for i := range counts {
		counts[i]++
	}
	sum := floats.Sum(counts)
	for i := range counts {
		counts[i] /= sum
	}
	return Vector(counts), nil
}

// Poisson builds a Poisson(lambdaP) prior over root sizes 0..max,
// truncated to the range and renormalized so it sums to 1.
func Poisson(lambdaP float64, max int) (Vector, error) {
	if lambdaP <= 0 {
		return nil, fmt.Errorf("prior: non-positive poisson rate %v", lambdaP)
	}
	if max < 0 {
		return nil, fmt.Errorf("prior: negative max %d", max)
	}
	p := distuv.Poisson{Lambda: lambdaP}
	v := make([]float64, max+1)
	for k := range v {
		v[k] = p.Prob(float64(k))
	}
	sum := floats.Sum(v)
	if sum <= 0 {
		return nil, fmt.Errorf("prior: poisson mass over [0,%d] underflowed to zero", max)
	}
	for i := range v {
		v[i] /= sum
	}
	return Vector(v), nil
}
