// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package likelihood_test

import (
	"math"
	"testing"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/likelihood"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
)

func buildScenario3(t *testing.T) (*phylotree.Tree, *family.Store, family.Range) {
	t.Helper()
	tr, err := phylotree.ParseNewick("scenario3", "((A:1,B:1):1,(C:1,D:1):1);")
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	for _, n := range tr.Nodes() {
		if tr.IsRoot(n.ID) {
			continue
		}
		n.Lambda = 0.01
		n.Mu = birthdeath.SameAsBirth
	}

	rng := family.Range{Min: 0, Max: 15, RootMin: 0, RootMax: 15}
	lc := logchoose.New(2 * rng.Max)
	cache := matrixcache.New(lc, rng.Max)
	if err := tr.ApplyMatrices(cache); err != nil {
		t.Fatalf("ApplyMatrices: %v", err)
	}

	store := family.NewStore([]string{"A", "B", "C", "D"})
	if err := store.Add(&family.Family{ID: "FAM0001", Counts: []int{5, 10, 2, 6}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return tr, store, rng
}

func TestEvaluateScenario3(t *testing.T) {
	tr, store, rng := buildScenario3(t)
	l, err := likelihood.Evaluate(tr, store, store.Get("FAM0001"), rng)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := []float64{0, 1.42e-13, 2.88e-9, 4.12e-7, 6.74e-7}
	for r, w := range want {
		got := l[r]
		abs := math.Abs(got - w)
		rel := abs
		if w != 0 {
			rel = abs / math.Abs(w)
		}
		if abs > 1e-13 && rel > 0.10 {
			t.Errorf("L[%d] = %v, want %v (within 1e-13 abs or 10%% rel)", r, got, w)
		}
	}
}

func TestEvaluateCountOutOfRange(t *testing.T) {
	tr, store, rng := buildScenario3(t)
	store.Get("FAM0001").Counts[0] = rng.Max + 1
	if _, err := likelihood.Evaluate(tr, store, store.Get("FAM0001"), rng); err == nil {
		t.Fatalf("expected CountOutOfRange error")
	}
}

func TestEvaluateMatrixMissing(t *testing.T) {
	tr, store, rng := buildScenario3(t)
	// Reset one non-root node's matrix to simulate a caller that
	// forgot to call ApplyMatrices.
	for _, n := range tr.Nodes() {
		if !tr.IsRoot(n.ID) {
			n.Matrix = nil
			break
		}
	}
	if _, err := likelihood.Evaluate(tr, store, store.Get("FAM0001"), rng); err == nil {
		t.Fatalf("expected MatrixMissing error")
	}
}

func TestEvaluateAllDeterministicOrder(t *testing.T) {
	tr, store, rng := buildScenario3(t)
	if err := store.Add(&family.Family{ID: "FAM0002", Counts: []int{1, 1, 1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results := likelihood.EvaluateAll(tr, store, rng, 4)
	if len(results) != store.Len() {
		t.Fatalf("len(results) = %d, want %d", len(results), store.Len())
	}
	for i, r := range results {
		if r.Family != store.At(i) {
			t.Errorf("results[%d].Family = %v, want %v (family-index order)", i, r.Family, store.At(i))
		}
		if r.Err != nil {
			t.Errorf("results[%d].Err = %v", i, r.Err)
		}
	}
}

// bruteForce enumerates every ancestral size assignment on a small
// tree directly, bypassing the pruning recursion, as a cross-check
// against Evaluate for tiny trees.
func bruteForce(tr *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range) []float64 {
	out := make([]float64, rng.RootMax-rng.RootMin+1)
	nodes := tr.Nodes()
	assign := make([]int, len(nodes))

	internal := []int{}
	for _, n := range nodes {
		if !n.IsLeafNode {
			internal = append(internal, n.ID)
		}
	}

	var rec func(k int)
	rec = func(k int) {
		if k == len(internal) {
			p := 1.0
			for _, n := range nodes {
				if tr.IsRoot(n.ID) {
					continue
				}
				parentSize := assign[n.Parent]
				var childSize int
				if n.IsLeafNode {
					childSize = store.CountAt(fam, n.Name)
				} else {
					childSize = assign[n.ID]
				}
				p *= n.Matrix.At(parentSize, childSize)
			}
			r := assign[tr.Root()]
			if r >= rng.RootMin && r <= rng.RootMax {
				out[r-rng.RootMin] += p
			}
			return
		}
		id := internal[k]
		for s := 0; s <= rng.Max; s++ {
			assign[id] = s
			rec(k + 1)
		}
	}
	rec(0)
	return out
}

func TestEvaluateMatchesBruteForce(t *testing.T) {
	tr, err := phylotree.ParseNewick("tiny", "((A:1,B:1):1,C:1);")
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	for _, n := range tr.Nodes() {
		if tr.IsRoot(n.ID) {
			continue
		}
		n.Lambda = 0.05
		n.Mu = birthdeath.SameAsBirth
	}
	rng := family.Range{Min: 0, Max: 5, RootMin: 0, RootMax: 5}
	lc := logchoose.New(2 * rng.Max)
	cache := matrixcache.New(lc, rng.Max)
	if err := tr.ApplyMatrices(cache); err != nil {
		t.Fatalf("ApplyMatrices: %v", err)
	}

	store := family.NewStore([]string{"A", "B", "C"})
	fam := &family.Family{ID: "FAM0001", Counts: []int{2, 3, 1}}
	if err := store.Add(fam); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := likelihood.Evaluate(tr, store, fam, rng)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := bruteForce(tr, store, fam, rng)
	for r := range want {
		if math.Abs(got[r]-want[r]) > 1e-9 {
			t.Errorf("L[%d] = %v, want %v (brute force)", r, got[r], want[r])
		}
	}
}
