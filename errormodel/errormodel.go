// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package errormodel implements a per-species observation error
// model: a conditional distribution over observed gene counts given
// the true count, used to remap leaf likelihoods before pruning.
package errormodel

import "fmt"

// Model is a single species' (or "all species") error model.
// matrix[i][j] = P(observe i | true j), for i, j in [0, maxCount].
type Model struct {
	maxCount int
	fromDiff int
	toDiff   int
	matrix   [][]float64
}

// New creates an error model for counts up to maxCount, with signed
// observation-offsets ranging over [fromDiff, toDiff]. The matrix is
// filled with the identity distribution (no error) until rows are set
// with SetRow.
func New(maxCount, fromDiff, toDiff int) *Model {
	m := &Model{
		maxCount: maxCount,
		fromDiff: fromDiff,
		toDiff:   toDiff,
		matrix:   make([][]float64, maxCount+1),
	}
	for i := range m.matrix {
		m.matrix[i] = make([]float64, maxCount+1)
	}
	for j := 0; j <= maxCount; j++ {
		m.matrix[j][j] = 1
	}
	return m
}

// MaxCount returns the largest count this model covers.
func (m *Model) MaxCount() int { return m.maxCount }

// DiffRange returns the signed offset range [fromDiff, toDiff] the
// model was built with.
func (m *Model) DiffRange() (from, to int) { return m.fromDiff, m.toDiff }

// SetRow sets the conditional probabilities P(observe true+d | true)
// for a given true count, where probs is indexed by diff position
// (probs[0] corresponds to fromDiff, probs[len(probs)-1] to toDiff).
// Observed positions that fall outside [0, maxCount] are ignored.
func (m *Model) SetRow(trueCount int, probs []float64) error {
	if trueCount < 0 || trueCount > m.maxCount {
		return fmt.Errorf("errormodel: true count %d out of range [0,%d]", trueCount, m.maxCount)
	}
	if len(probs) != m.toDiff-m.fromDiff+1 {
		return fmt.Errorf("errormodel: expected %d probabilities, got %d", m.toDiff-m.fromDiff+1, len(probs))
	}
	for d := m.fromDiff; d <= m.toDiff; d++ {
		obs := trueCount + d
		if obs < 0 || obs > m.maxCount {
			continue
		}
		m.matrix[obs][trueCount] = probs[d-m.fromDiff]
	}
	return nil
}

// InheritRow copies the conditional distribution of trueCount-1 (or
// the nearest earlier explicit row) into trueCount, re-centered on
// the new true count. Used to implement "missing rows inherit the
// previous row's distribution".
func (m *Model) InheritRow(trueCount, from int) error {
	if trueCount < 0 || trueCount > m.maxCount || from < 0 || from > m.maxCount {
		return fmt.Errorf("errormodel: row index out of range [0,%d]", m.maxCount)
	}
	probs := make([]float64, m.toDiff-m.fromDiff+1)
	for d := m.fromDiff; d <= m.toDiff; d++ {
		obs := from + d
		if obs < 0 || obs > m.maxCount {
			continue
		}
		probs[d-m.fromDiff] = m.matrix[obs][from]
	}
	return m.SetRow(trueCount, probs)
}

// ColumnSum returns the sum of column j (the probabilities of every
// observed count given true count j). A valid model has every column
// sum to 1 within 1e-6.
func (m *Model) ColumnSum(j int) float64 {
	var sum float64
	for i := 0; i <= m.maxCount; i++ {
		sum += m.matrix[i][j]
	}
	return sum
}

// Validate checks that every column sums to 1 within 1e-6, as
// spec.md's error-model invariant requires.
func (m *Model) Validate() error {
	const tol = 1e-6
	for j := 0; j <= m.maxCount; j++ {
		sum := m.ColumnSum(j)
		if d := sum - 1; d > tol || d < -tol {
			return fmt.Errorf("errormodel: column %d sums to %v, want 1 (tol %v)", j, sum, tol)
		}
	}
	return nil
}

// Prob returns P(observe i | true j).
func (m *Model) Prob(i, j int) float64 {
	if i < 0 || i > m.maxCount || j < 0 || j > m.maxCount {
		return 0
	}
	return m.matrix[i][j]
}

// LeafProbs implements phylotree.ErrorModel: it returns a slice
// indexed 0..maxSize, where entry s is P(observe c | true s). When
// maxSize exceeds the model's own range, the extra entries are 0 (the
// model makes no claim about true sizes it was not built for).
func (m *Model) LeafProbs(c, maxSize int) []float64 {
	probs := make([]float64, maxSize+1)
	for s := 0; s <= maxSize && s <= m.maxCount; s++ {
		if c <= m.maxCount {
			probs[s] = m.matrix[c][s]
		}
	}
	return probs
}
