// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package birthdeath implements the single-branch transition-
// probability kernel of a continuous-time birth-death Markov chain on
// gene family sizes.
package birthdeath

import (
	"fmt"
	"math"

	"github.com/js-arias/cafego/logchoose"
	"gonum.org/v1/gonum/floats"
)

// SameAsBirth is the sentinel death rate meaning "mu equals lambda".
// It is kept as a float sentinel -- rather than an explicit option
// type -- only at the package boundary that talks to the matrix cache
// key (spec demands the sentinel -1 be part of the contract); callers
// that want the option-type flavor should use Rate.
const SameAsBirth = -1.0

// Rate is an explicit death-rate option, the re-architected
// replacement for the sentinel-float convention at call sites that do
// not need to share the raw float with the cache key.
type Rate struct {
	SameAsBirth bool
	Value       float64
}

// Resolve turns a Rate into the mu value to use given a lambda.
func (r Rate) Resolve(lambda float64) float64 {
	if r.SameAsBirth {
		return lambda
	}
	return r.Value
}

// minBranch is the threshold below which a branch is treated as
// length zero, to suppress catastrophic cancellation in the closed
// form transition probabilities.
const minBranch = 1e-12

// Matrix is a transition-probability matrix for a single branch.
// Side = maxSize+1; row i, column j holds P(i -> j).
type Matrix struct {
	maxSize int
	rows    [][]float64
}

// NewIdentity returns the identity transition matrix (t = 0 case):
// every family size maps to itself with probability 1.
func NewIdentity(maxSize int) *Matrix {
	m := &Matrix{maxSize: maxSize, rows: make([][]float64, maxSize+1)}
	for i := range m.rows {
		row := make([]float64, maxSize+1)
		row[i] = 1
		m.rows[i] = row
	}
	return m
}

// MaxSize returns the largest family size the matrix covers.
func (m *Matrix) MaxSize() int { return m.maxSize }

// At returns P(i -> j).
func (m *Matrix) At(i, j int) float64 {
	return m.rows[i][j]
}

// Row returns the full row for parent size i. The returned slice must
// not be mutated by the caller.
func (m *Matrix) Row(i int) []float64 {
	return m.rows[i]
}

// RowSumError returns the largest absolute deviation of a row sum
// from 1, across all rows. Used to check the spec.md invariant that
// rows sum to 1 within 1e-9.
func (m *Matrix) RowSumError() float64 {
	var worst float64
	for _, row := range m.rows {
		sum := floats.Sum(row)
		if d := math.Abs(sum - 1); d > worst {
			worst = d
		}
	}
	return worst
}

// Kernel computes a single transition matrix for a branch of length t
// (in the units branch lengths are measured in) and rates lambda
// (birth) and mu (death, or SameAsBirth meaning mu = lambda).
//
// lc is the shared log-binomial-coefficient cache; it may cover a
// smaller range than maxSize, in which case lookups outside its range
// fall back to an uncached lgamma computation.
func Kernel(lc *logchoose.Cache, t, lambda, mu float64, maxSize int) (*Matrix, error) {
	if lambda < 0 {
		return nil, fmt.Errorf("birthdeath: negative lambda %v", lambda)
	}
	if mu == SameAsBirth {
		mu = lambda
	}
	if mu < 0 {
		return nil, fmt.Errorf("birthdeath: negative mu %v", mu)
	}
	if t < 0 {
		return nil, fmt.Errorf("birthdeath: negative branch length %v", t)
	}
	if t < minBranch {
		return NewIdentity(maxSize), nil
	}

	alpha, beta := alphaBeta(t, lambda, mu)

	m := &Matrix{maxSize: maxSize, rows: make([][]float64, maxSize+1)}
	// row 0: extinction is absorbing.
	row0 := make([]float64, maxSize+1)
	row0[0] = 1
	m.rows[0] = row0

	gamma := 1 - alpha - beta
	for i := 1; i <= maxSize; i++ {
		row := make([]float64, maxSize+1)
		for j := 0; j <= maxSize; j++ {
			row[j] = transProb(lc, i, j, alpha, beta, gamma)
		}
		m.rows[i] = row
	}
	return m, nil
}

// alphaBeta computes the auxiliary parameters of the closed-form
// birth-death transition density.
func alphaBeta(t, lambda, mu float64) (alpha, beta float64) {
	if lambda == mu {
		a := lambda * t / (1 + lambda*t)
		return a, a
	}
	ert := math.Exp((lambda - mu) * t)
	denom := lambda*ert - mu
	alpha = mu * (ert - 1) / denom
	beta = lambda * (ert - 1) / denom
	return alpha, beta
}

func transProb(lc *logchoose.Cache, i, j int, alpha, beta, gamma float64) float64 {
	var sum float64
	upper := i
	if j < upper {
		upper = j
	}
	for k := 0; k <= upper; k++ {
		lnBinom := lc.LnChoose(i, k) + lc.LnChoose(i+j-k-1, i-1)
		binom := math.Exp(lnBinom)
		term := binom * math.Pow(alpha, float64(i-k)) * math.Pow(beta, float64(j-k)) * math.Pow(gamma, float64(k))
		sum += term
	}
	return sum
}
