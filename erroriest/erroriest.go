// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package erroriest estimates an observation error model from two
// replicate count measures of the same families and species (spec.md
// §4.9's "error estimation"): it builds a pair-count matrix, fits a
// misclassification distribution over signed offsets by minimizing a
// likelihood-style objective driven by package simplex, and can
// materialize the fitted distribution as an errormodel.Model.
package erroriest

import (
	"fmt"
	"math"

	"github.com/js-arias/cafego/errormodel"
	"github.com/js-arias/cafego/simplex"
)

// BuildPairs tallies two aligned replicate count slices (the same
// families and species, measured twice) into a raw [observed1]
// [observed2] count matrix.
func BuildPairs(a, b []int, maxCount int) ([][]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("erroriest: replicate measures have %d and %d observations", len(a), len(b))
	}
	raw := make([][]float64, maxCount+1)
	for i := range raw {
		raw[i] = make([]float64, maxCount+1)
	}
	for idx := range a {
		i, j := a[idx], b[idx]
		if i < 0 || i > maxCount || j < 0 || j > maxCount {
			return nil, fmt.Errorf("erroriest: observation (%d,%d) exceeds max count %d", i, j, maxCount)
		}
		raw[i][j]++
	}
	return raw, nil
}

// FoldPairs turns a raw [i][j] tally into the symmetric pair-count
// matrix the objective sums over. This preserves, rather than fixes,
// the lower-triangle accumulation spec.md §9 documents from the
// original implementation's own "TODO: doesn't seem to work as
// intended" comment: for i != j, both directions' counts are folded
// into pairs[j][i] (j < i), and the mirrored pairs[i][j] is left at
// zero -- it is not read by the objective, which only ever sums over
// i <= j.
func FoldPairs(raw [][]float64) [][]float64 {
	n := len(raw)
	pairs := make([][]float64, n)
	for i := range pairs {
		pairs[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i == j:
				pairs[i][j] = raw[i][j]
			case j < i:
				pairs[j][i] = raw[i][j] + raw[j][i]
			}
		}
	}
	return pairs
}

// Layout describes a misclassification distribution's free parameter
// count, spec.md §4.9's "symmetric with max_diff parameters, or
// asymmetric with 2*max_diff+1".
type Layout struct {
	MaxDiff   int
	Symmetric bool
}

// Len returns the number of free parameters a theta vector must carry.
func (l Layout) Len() int {
	if l.Symmetric {
		return l.MaxDiff
	}
	return 2*l.MaxDiff + 1
}

// Decode expands theta into a full probability mass function over
// signed offsets -MaxDiff..MaxDiff (index d+MaxDiff). A symmetric
// layout mirrors theta[|d|-1] onto both +d and -d and infers the
// center ("epsilon", the no-error residual) as 1 minus twice their
// sum; an asymmetric layout reads every offset, center included,
// straight from theta. Decode does not reject invalid distributions --
// the objective does, treating them as +Inf cost, per spec.md §4.9's
// "enforced by rejection" contract.
func Decode(theta []float64, l Layout) []float64 {
	e := make([]float64, 2*l.MaxDiff+1)
	center := l.MaxDiff
	if l.Symmetric {
		var sum float64
		for d := 1; d <= l.MaxDiff; d++ {
			v := theta[d-1]
			e[center+d] = v
			e[center-d] = v
			sum += v
		}
		e[center] = 1 - 2*sum
		return e
	}
	copy(e, theta)
	return e
}

// Valid reports whether a decoded distribution satisfies spec.md
// §4.9's constraints: every entry non-negative, and non-increasing
// moving away from the center (the "peak") in each direction.
func Valid(e []float64, maxDiff int) bool {
	for _, v := range e {
		if v < 0 {
			return false
		}
	}
	center := maxDiff
	for d := 0; d < maxDiff; d++ {
		if e[center+d+1] > e[center+d] {
			return false
		}
		if e[center-d-1] > e[center-d] {
			return false
		}
	}
	return true
}

// Prob returns P(observe i | true k) under a decoded distribution e:
// the offset d = i-k, clipped to 0 outside [-maxDiff, maxDiff].
func Prob(e []float64, maxDiff, i, k int) float64 {
	d := i - k
	if d < -maxDiff || d > maxDiff {
		return 0
	}
	return e[d+maxDiff]
}

// Score evaluates spec.md §4.9's error-estimation objective for a
// decoded distribution e against a pair-count matrix and a root-size
// prior: -sum_{i<=j} pairs[i][j]*ln(sum_k prior[k]*E[i][k]*E[j][k]),
// adjusted by subtracting ln(1 - sum_k prior[k]*E[0][k]^2).
func Score(pairs [][]float64, prior []float64, e []float64, maxDiff int) float64 {
	maxCount := len(pairs) - 1
	var score float64
	for i := 0; i <= maxCount; i++ {
		for j := i; j <= maxCount; j++ {
			if pairs[i][j] == 0 {
				continue
			}
			var s float64
			for k := 0; k <= maxCount; k++ {
				s += prior[k] * Prob(e, maxDiff, i, k) * Prob(e, maxDiff, j, k)
			}
			if s <= 0 || math.IsNaN(s) {
				return math.Inf(1)
			}
			score -= pairs[i][j] * math.Log(s)
		}
	}
	var e0sq float64
	for k := 0; k <= maxCount; k++ {
		p := Prob(e, maxDiff, 0, k)
		e0sq += prior[k] * p * p
	}
	correction := 1 - e0sq
	if correction <= 0 {
		return math.Inf(1)
	}
	score -= math.Log(correction)
	return score
}

// NewObjective builds the simplex.Objective that decodes theta,
// rejects invalid distributions as +Inf, and otherwise returns Score.
func NewObjective(pairs [][]float64, prior []float64, layout Layout) simplex.Objective {
	return func(theta []float64) float64 {
		for _, v := range theta {
			if v < 0 {
				return math.Inf(1)
			}
		}
		e := Decode(theta, layout)
		if !Valid(e, layout.MaxDiff) {
			return math.Inf(1)
		}
		score := Score(pairs, prior, e, layout.MaxDiff)
		if math.IsNaN(score) {
			return math.Inf(1)
		}
		return score
	}
}

// Run drives the simplex search to the misclassification distribution
// that minimizes Score, returning both the raw search result and the
// decoded distribution (best-so-far, even on a convergence failure).
func Run(pairs [][]float64, prior []float64, layout Layout, theta0 []float64, opts simplex.Options) (*simplex.Result, []float64, error) {
	obj := NewObjective(pairs, prior, layout)
	res, err := simplex.Minimize(obj, theta0, opts)
	if res == nil {
		return nil, nil, err
	}
	return res, Decode(res.X, layout), err
}

// ToModel materializes a decoded misclassification distribution as an
// errormodel.Model spanning true counts 0..maxCount, applying the same
// offset distribution to every row (the distribution is assumed
// shift-invariant, as spec.md §4.9's diff-indexed parameterization
// implies).
func ToModel(e []float64, maxDiff, maxCount int) (*errormodel.Model, error) {
	m := errormodel.New(maxCount, -maxDiff, maxDiff)
	for trueCount := 0; trueCount <= maxCount; trueCount++ {
		if err := m.SetRow(trueCount, e); err != nil {
			return nil, fmt.Errorf("erroriest: row %d: %w", trueCount, err)
		}
	}
	return m, nil
}
