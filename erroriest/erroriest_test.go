// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package erroriest_test

import (
	"math"
	"testing"

	"github.com/js-arias/cafego/erroriest"
	"github.com/js-arias/cafego/simplex"
)

func TestBuildPairsTallies(t *testing.T) {
	a := []int{1, 2, 5}
	b := []int{1, 3, 2}
	raw, err := erroriest.BuildPairs(a, b, 5)
	if err != nil {
		t.Fatalf("BuildPairs: %v", err)
	}
	if raw[1][1] != 1 {
		t.Errorf("raw[1][1] = %v, want 1", raw[1][1])
	}
	if raw[2][3] != 1 {
		t.Errorf("raw[2][3] = %v, want 1", raw[2][3])
	}
	if raw[5][2] != 1 {
		t.Errorf("raw[5][2] = %v, want 1", raw[5][2])
	}
}

func TestBuildPairsRejectsMismatchedLength(t *testing.T) {
	if _, err := erroriest.BuildPairs([]int{1, 2}, []int{1}, 5); err == nil {
		t.Fatalf("expected rejection of mismatched replicate lengths")
	}
}

func TestBuildPairsRejectsOutOfRange(t *testing.T) {
	if _, err := erroriest.BuildPairs([]int{10}, []int{0}, 5); err == nil {
		t.Fatalf("expected rejection of an out-of-range observation")
	}
}

// TestFoldPairsPreservesDocumentedAsymmetry locks down the exact,
// deliberately-not-fixed accumulation spec.md §9 documents: both
// directions fold into the j<i cell, and the mirrored i>j cell stays
// zero.
func TestFoldPairsPreservesDocumentedAsymmetry(t *testing.T) {
	raw := [][]float64{
		{0, 0, 0},
		{0, 0, 3},
		{0, 4, 1},
	}
	pairs := erroriest.FoldPairs(raw)
	if pairs[1][2] != 7 {
		t.Errorf("pairs[1][2] = %v, want 7 (3 from raw[1][2] + 4 from raw[2][1])", pairs[1][2])
	}
	if pairs[2][1] != 0 {
		t.Errorf("pairs[2][1] = %v, want 0 (mirrored cell zeroed, not 'fixed')", pairs[2][1])
	}
	if pairs[2][2] != 1 {
		t.Errorf("pairs[2][2] = %v, want 1 (diagonal untouched)", pairs[2][2])
	}
}

func TestLayoutLen(t *testing.T) {
	if got := (erroriest.Layout{MaxDiff: 3, Symmetric: true}).Len(); got != 3 {
		t.Errorf("symmetric Len() = %d, want 3", got)
	}
	if got := (erroriest.Layout{MaxDiff: 3, Symmetric: false}).Len(); got != 7 {
		t.Errorf("asymmetric Len() = %d, want 7", got)
	}
}

func TestDecodeSymmetricMirrorsAndInfersCenter(t *testing.T) {
	l := erroriest.Layout{MaxDiff: 2, Symmetric: true}
	e := erroriest.Decode([]float64{0.1, 0.05}, l)
	if len(e) != 5 {
		t.Fatalf("len(Decode()) = %d, want 5", len(e))
	}
	// index layout: [-2,-1,0,1,2] -> center index 2.
	if e[0] != 0.05 || e[4] != 0.05 {
		t.Errorf("offset +-2 = %v/%v, want 0.05/0.05", e[0], e[4])
	}
	if e[1] != 0.1 || e[3] != 0.1 {
		t.Errorf("offset +-1 = %v/%v, want 0.1/0.1", e[1], e[3])
	}
	if math.Abs(e[2]-0.7) > 1e-9 {
		t.Errorf("center (epsilon) = %v, want 0.7", e[2])
	}
}

func TestValidRejectsNonMonotone(t *testing.T) {
	l := erroriest.Layout{MaxDiff: 2, Symmetric: true}
	e := erroriest.Decode([]float64{0.05, 0.1}, l) // increasing away from center: invalid
	if erroriest.Valid(e, l.MaxDiff) {
		t.Fatalf("expected rejection of a non-monotone distribution")
	}
}

func TestValidAcceptsMonotoneDecreasing(t *testing.T) {
	l := erroriest.Layout{MaxDiff: 2, Symmetric: true}
	e := erroriest.Decode([]float64{0.1, 0.05}, l)
	if !erroriest.Valid(e, l.MaxDiff) {
		t.Fatalf("expected a monotone-decreasing distribution to be valid")
	}
}

func TestObjectiveRejectsNegativeTheta(t *testing.T) {
	pairs := [][]float64{{1, 0}, {0, 1}}
	prior := []float64{0.5, 0.5}
	obj := erroriest.NewObjective(pairs, prior, erroriest.Layout{MaxDiff: 1, Symmetric: true})
	if f := obj([]float64{-0.1}); !math.IsInf(f, 1) {
		t.Errorf("objective(-theta) = %v, want +Inf", f)
	}
}

func TestObjectiveFiniteForValidTheta(t *testing.T) {
	maxCount := 4
	a := []int{0, 1, 2, 3, 4, 2, 1}
	b := []int{0, 1, 2, 3, 4, 3, 2}
	raw, err := erroriest.BuildPairs(a, b, maxCount)
	if err != nil {
		t.Fatalf("BuildPairs: %v", err)
	}
	pairs := erroriest.FoldPairs(raw)
	prior := []float64{0.2, 0.2, 0.2, 0.2, 0.2}

	obj := erroriest.NewObjective(pairs, prior, erroriest.Layout{MaxDiff: 1, Symmetric: true})
	f := obj([]float64{0.05})
	if math.IsInf(f, 0) || math.IsNaN(f) {
		t.Fatalf("objective(valid theta) = %v, want finite", f)
	}
}

func TestRunReturnsUsableDistribution(t *testing.T) {
	maxCount := 4
	a := []int{0, 1, 2, 3, 4, 2, 1}
	b := []int{0, 1, 2, 3, 4, 3, 2}
	raw, err := erroriest.BuildPairs(a, b, maxCount)
	if err != nil {
		t.Fatalf("BuildPairs: %v", err)
	}
	pairs := erroriest.FoldPairs(raw)
	prior := []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	layout := erroriest.Layout{MaxDiff: 1, Symmetric: true}

	opts := simplex.Options{TolX: 1e-9, TolF: 1e-12, MaxIter: 100, MaxRuns: 5}
	res, e, err := erroriest.Run(pairs, prior, layout, []float64{0.05}, opts)
	if res == nil {
		t.Fatalf("Run: got nil result, err = %v", err)
	}
	if len(e) != 3 {
		t.Fatalf("len(decoded) = %d, want 3", len(e))
	}
	if !erroriest.Valid(e, layout.MaxDiff) {
		t.Errorf("Run produced an invalid distribution: %v", e)
	}
}

func TestToModelBuildsValidatingModel(t *testing.T) {
	l := erroriest.Layout{MaxDiff: 1, Symmetric: true}
	e := erroriest.Decode([]float64{0.1}, l)
	m, err := erroriest.ToModel(e, l.MaxDiff, 6)
	if err != nil {
		t.Fatalf("ToModel: %v", err)
	}
	// an interior column (not touching the [0,maxCount] boundary) sums to 1.
	if got := m.ColumnSum(3); math.Abs(got-1) > 1e-9 {
		t.Errorf("ColumnSum(3) = %v, want 1", got)
	}
}
