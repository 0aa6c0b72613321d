// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package simulate implements spec.md §4.8's forward-simulation
// primitive (ancestral sizes sampled from each node's own transition
// matrix row, starting at a chosen root size) and the likelihood-ratio
// test driver of §6's lhtest command, including the branch-length
// multiplier rule of §8 scenario 6.
package simulate

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/likelihood"
	"github.com/js-arias/cafego/phylotree"
	"gonum.org/v1/gonum/stat/distuv"
)

// Simulate draws one ancestral realization of family sizes, starting
// at the root with size root, by sampling every other node's size from
// its own transition matrix row indexed by its parent's sampled size
// (the tree must already carry matrices, see phylotree.Tree.
// ApplyMatrices). It returns the resulting leaf counts keyed by
// species name.
func Simulate(t *phylotree.Tree, root int, rng *rand.Rand) (map[string]int, error) {
	sizes := make(map[int]int, len(t.Nodes()))
	sizes[t.Root()] = root
	leaves := make(map[string]int)

	var walkErr error
	var visit func(id int)
	visit = func(id int) {
		if walkErr != nil {
			return
		}
		n := t.Node(id)
		if !t.IsRoot(id) {
			if n.Matrix == nil {
				walkErr = &likelihood.MatrixMissing{NodeID: id}
				return
			}
			parentSize := sizes[t.Parent(id)]
			sizes[id] = sampleFromRow(n.Matrix.Row(parentSize), rng)
		}
		if n.IsLeafNode {
			leaves[n.Name] = sizes[id]
			return
		}
		for _, c := range t.Children(id) {
			visit(c)
		}
	}
	visit(t.Root())
	if walkErr != nil {
		return nil, walkErr
	}
	return leaves, nil
}

// sampleFromRow draws a size from a discrete distribution given by a
// transition matrix row, by inverse-CDF sampling.
func sampleFromRow(row []float64, rng *rand.Rand) int {
	u := rng.Float64()
	var cum float64
	for i, p := range row {
		cum += p
		if u <= cum {
			return i
		}
	}
	return len(row) - 1
}

// ConditionalDistribution builds the null distribution of simulated
// family likelihoods conditioned on the root having size root: it
// draws n forward simulations, evaluates each simulated leaf pattern's
// likelihood at that same root size, and returns the n likelihoods in
// ascending order, spec.md §4.8's "sorted vector of simulated
// likelihoods is the null distribution for that root size".
func ConditionalDistribution(t *phylotree.Tree, store *family.Store, rng family.Range, root, n int, rnd *rand.Rand) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("simulate: non-positive sample count %d", n)
	}
	idx := root - rng.RootMin
	if idx < 0 || idx > rng.RootMax-rng.RootMin {
		return nil, fmt.Errorf("simulate: root size %d outside range [%d,%d]", root, rng.RootMin, rng.RootMax)
	}

	species := store.Species()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		leaves, err := Simulate(t, root, rnd)
		if err != nil {
			return nil, err
		}
		counts := make([]int, len(species))
		for j, sp := range species {
			counts[j] = leaves[sp]
		}
		fam := &family.Family{ID: "simulated", Counts: counts}
		l, err := likelihood.Evaluate(t, store, fam, rng)
		if err != nil {
			return nil, err
		}
		out[i] = l[idx]
	}
	sort.Float64s(out)
	return out, nil
}

// PValue reports the fraction of a sorted conditional distribution
// that is at least as extreme as (no greater than) an observed
// likelihood, spec.md §4.8's family p-value: "p = (count of CD[r]
// entries <= L_obs) / N".
func PValue(sorted []float64, observed float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	count := 0
	for _, v := range sorted {
		if v <= observed {
			count++
		}
	}
	return float64(count) / float64(len(sorted))
}

// FamilyPValue combines per-root-size p-values into the overall family
// p-value spec.md §4.8 defines as "the maximum across the
// posterior-weighted root sizes": only root sizes with positive
// posterior mass are considered.
func FamilyPValue(observed, posterior []float64, conditional map[int][]float64, rootMin int) float64 {
	var max float64
	for r, cd := range conditional {
		idx := r - rootMin
		if idx < 0 || idx >= len(observed) || idx >= len(posterior) {
			continue
		}
		if posterior[idx] <= 0 {
			continue
		}
		if p := PValue(cd, observed[idx]); p > max {
			max = p
		}
	}
	return max
}

// ScaleBranchLength applies spec.md §8 scenario 6's likelihood-ratio
// branch-length update rule: a branch whose taxon group is positive
// (an explicitly rate-grouped branch) is stretched by multiplier;
// every other branch (unassigned, TaxonGroup == phylotree.NoGroup, or
// a non-positive group id) is left unchanged.
func ScaleBranchLength(n *phylotree.Node, multiplier float64) {
	if n.TaxonGroup > 0 {
		n.BranchLength *= multiplier
	}
}

// ScaleTree applies ScaleBranchLength to every non-root node of t.
func ScaleTree(t *phylotree.Tree, multiplier float64) {
	for _, n := range t.Nodes() {
		if t.IsRoot(n.ID) {
			continue
		}
		ScaleBranchLength(n, multiplier)
	}
}

// LRTResult is the outcome of a likelihood-ratio test between a
// restricted ("null") and a general ("full") model.
type LRTResult struct {
	Statistic float64
	DF        int
	PValue    float64
}

// LikelihoodRatioTest compares a null model's and a full model's
// maximized log-likelihoods using df additional free parameters in the
// full model: statistic = 2*(logLFull - logLNull), asymptotically
// chi-squared with df degrees of freedom under the null.
func LikelihoodRatioTest(logLNull, logLFull float64, df int) (LRTResult, error) {
	if df < 1 {
		return LRTResult{}, fmt.Errorf("simulate: likelihood-ratio test needs at least 1 degree of freedom, got %d", df)
	}
	stat := 2 * (logLFull - logLNull)
	if stat < 0 {
		stat = 0
	}
	chi := distuv.ChiSquared{K: float64(df)}
	return LRTResult{
		Statistic: stat,
		DF:        df,
		PValue:    1 - chi.CDF(stat),
	}, nil
}
