// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package estimate is the parameter driver of spec.md §4.5: it decodes
// a flat parameter vector theta into per-rate-group (lambda, mu),
// optional per-group latent-cluster lambdas and cluster weights (the
// "lambda tree" scheme), applies the decoded rates to a tree, and
// builds the scalar objective (-sum ln P(family)) that package simplex
// drives to a minimum.
package estimate

import (
	"fmt"
	"math"
	"sync"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/cluster"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/likelihood"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/prior"
	"github.com/js-arias/cafego/simplex"
)

// Layout describes how a flat parameter vector theta is decoded.
// Every non-root node's TaxonGroup (assigned by the lambda tree,
// spec.md's "tree isomorphic to the phylogeny whose node labels
// partition branches into rate groups") indexes into the per-group
// arrays; nodes with phylotree.NoGroup fall back to group 0.
type Layout struct {
	// NumGroups is the number of distinct rate groups (at least 1).
	NumGroups int

	// EstimateMu, when true, makes mu a free parameter per group
	// instead of the birthdeath.SameAsBirth sentinel.
	EstimateMu bool

	// NumClusters enables the clustered variant when > 1: each group
	// gets NumClusters-1 additional free lambda values (cluster 0 is
	// the group's base lambda), plus NumClusters-1 free simplex
	// weights (the last weight is inferred, see cluster.Weights).
	NumClusters int

	// FixCluster0 forces cluster 0's lambda to 0 (extinction-only)
	// rather than leaving it as the group's free base lambda.
	FixCluster0 bool
}

// Len returns the number of free parameters a theta vector must carry
// for this layout.
func (l Layout) Len() int {
	n := l.NumGroups
	if l.EstimateMu {
		n += l.NumGroups
	}
	if l.NumClusters > 1 {
		n += l.NumGroups * (l.NumClusters - 1)
		n += l.NumClusters - 1
	}
	return n
}

// Rates is theta decoded into per-group (and, when clustering,
// per-group-per-cluster) rates.
type Rates struct {
	Lambda  []float64   // length NumGroups
	Mu      []float64   // length NumGroups
	Cluster [][]float64 // [group][cluster]; nil when not clustering
	Weights []float64   // length NumClusters; nil when not clustering
}

// Decode turns theta into Rates according to layout. It does not
// reject negative rates -- the objective does that, treating them as
// +Inf cost per spec.md §4.5 step 1.
func Decode(theta []float64, layout Layout) (Rates, error) {
	if layout.NumGroups < 1 {
		return Rates{}, fmt.Errorf("estimate: layout must have at least one rate group")
	}
	if len(theta) != layout.Len() {
		return Rates{}, fmt.Errorf("estimate: theta has %d entries, want %d", len(theta), layout.Len())
	}

	r := Rates{Lambda: append([]float64(nil), theta[:layout.NumGroups]...)}
	pos := layout.NumGroups

	if layout.EstimateMu {
		r.Mu = append([]float64(nil), theta[pos:pos+layout.NumGroups]...)
		pos += layout.NumGroups
	} else {
		r.Mu = make([]float64, layout.NumGroups)
		for i := range r.Mu {
			r.Mu[i] = birthdeath.SameAsBirth
		}
	}

	if layout.NumClusters > 1 {
		r.Cluster = make([][]float64, layout.NumGroups)
		for g := 0; g < layout.NumGroups; g++ {
			row := make([]float64, layout.NumClusters)
			row[0] = r.Lambda[g]
			for k := 1; k < layout.NumClusters; k++ {
				row[k] = theta[pos]
				pos++
			}
			if layout.FixCluster0 {
				row[0] = 0
			}
			r.Cluster[g] = row
		}
		free := append([]float64(nil), theta[pos:pos+layout.NumClusters-1]...)
		pos += layout.NumClusters - 1
		w, err := cluster.Weights(free)
		if err != nil {
			return Rates{}, err
		}
		r.Weights = w
	}
	return r, nil
}

// groupOf returns the rate-group index to use for a node, falling
// back to group 0 for nodes the lambda tree left unassigned.
func groupOf(n *phylotree.Node, numGroups int) int {
	g := n.TaxonGroup
	if g == phylotree.NoGroup || g < 0 || g >= numGroups {
		return 0
	}
	return g
}

// Apply sets every non-root node's Lambda/Mu from r (indexed by the
// node's rate group) and refreshes the tree's transition matrices
// through cache. When r carries cluster rates, it also fills each
// node's ClusterMatrices.
func Apply(t *phylotree.Tree, cache *matrixcache.Cache, r Rates) error {
	for _, n := range t.Nodes() {
		if t.IsRoot(n.ID) {
			continue
		}
		g := groupOf(n, len(r.Lambda))
		n.Lambda = r.Lambda[g]
		n.Mu = r.Mu[g]
	}
	if err := t.ApplyMatrices(cache); err != nil {
		return err
	}
	if r.Cluster == nil {
		return nil
	}
	for _, n := range t.Nodes() {
		if t.IsRoot(n.ID) {
			continue
		}
		g := groupOf(n, len(r.Cluster))
		row := r.Cluster[g]
		n.ClusterMatrices = make([]*birthdeath.Matrix, len(row))
		for k, lambda := range row {
			m, err := cache.Get(n.BranchLength, lambda, n.Mu)
			if err != nil {
				return fmt.Errorf("estimate: node %d cluster %d: %w", n.ID, k, err)
			}
			n.ClusterMatrices[k] = m
		}
	}
	return nil
}

// hasNegativeRate reports whether any decoded rate is negative, the
// rejection spec.md §4.5 step 1 requires.
func hasNegativeRate(r Rates) bool {
	for _, v := range r.Lambda {
		if v < 0 {
			return true
		}
	}
	for _, v := range r.Mu {
		if v != birthdeath.SameAsBirth && v < 0 {
			return true
		}
	}
	for _, row := range r.Cluster {
		for _, v := range row {
			if v < 0 {
				return true
			}
		}
	}
	return false
}

// NewObjective builds the scalar cost function spec.md §4.5 describes:
// decode theta, reject negative rates, apply to tree, evaluate every
// family (optionally in parallel across numWorkers goroutines), and
// return -sum ln P(family). Any decode failure, negative rate, or
// non-finite joint likelihood is reported as +Inf.
func NewObjective(t *phylotree.Tree, store *family.Store, cache *matrixcache.Cache, pr prior.Vector, rng family.Range, layout Layout, numWorkers int) simplex.Objective {
	return func(theta []float64) float64 {
		r, err := Decode(theta, layout)
		if err != nil {
			return math.Inf(1)
		}
		if hasNegativeRate(r) {
			return math.Inf(1)
		}
		if err := Apply(t, cache, r); err != nil {
			return math.Inf(1)
		}

		var total float64
		if r.Weights == nil {
			results := likelihood.EvaluateAll(t, store, rng, numWorkers)
			sum, err := likelihood.SumLogLikelihood(results, pr, rng.RootMin)
			if err != nil || math.IsInf(sum, 0) || math.IsNaN(sum) {
				return math.Inf(1)
			}
			total = sum
		} else {
			sum, ok := clusteredLogLikelihood(t, store, pr, rng, r.Weights, numWorkers)
			if !ok {
				return math.Inf(1)
			}
			total = sum
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return math.Inf(1)
		}
		return -total
	}
}

// clusteredLogLikelihood sums ln P(family) across every family using
// the clustered evaluation (cluster.EvaluateFamily), in family-index
// order, on a bounded worker pool -- the same concurrency shape as
// likelihood.EvaluateAll.
func clusteredLogLikelihood(t *phylotree.Tree, store *family.Store, pr prior.Vector, rng family.Range, weights []float64, numWorkers int) (float64, bool) {
	n := store.Len()
	logs := make([]float64, n)
	ok := make([]bool, n)

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	workers := numWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			fam := store.At(i)
			l, err := cluster.EvaluateFamily(t, store, fam, rng, weights)
			if err != nil {
				continue
			}
			var joint float64
			for k, v := range l {
				joint += v * pr[rng.RootMin+k]
			}
			if joint <= 0 || math.IsNaN(joint) || math.IsInf(joint, 0) {
				continue
			}
			logs[i] = math.Log(joint)
			ok[i] = true
		}
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var total float64
	for i := 0; i < n; i++ {
		if !ok[i] {
			return 0, false
		}
		total += logs[i]
	}
	return total, true
}

// Run drives the simplex search to the MLE of theta, starting from
// theta0, and returns both the raw search result and its decoded
// rates. A *bdkind.ConvergenceFailure from the search is passed
// through, with the best-so-far rates still populated, per spec.md §7.
func Run(t *phylotree.Tree, store *family.Store, cache *matrixcache.Cache, pr prior.Vector, rng family.Range, layout Layout, theta0 []float64, opts simplex.Options, numWorkers int) (*simplex.Result, Rates, error) {
	obj := NewObjective(t, store, cache, pr, rng, layout, numWorkers)
	res, err := simplex.Minimize(obj, theta0, opts)
	if res == nil {
		return nil, Rates{}, err
	}
	r, decErr := Decode(res.X, layout)
	if decErr != nil {
		return res, Rates{}, decErr
	}
	return res, r, err
}
