// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package likelihood implements the Felsenstein pruning algorithm over
// a birth-death tree: a bottom-up, postorder computation of
// P(observed leaf counts | root size = r) for every root size r in a
// family's size range.
//
// The concurrency shape -- a bounded worker pool reading from a
// channel, synchronized with a sync.WaitGroup -- follows
// js-arias/phygeo's pruning package (pixLike/initChan); here the unit
// of work is a whole family rather than a single pixel, since a
// family's own pruning pass is cheap and does not itself need to
// fan out.
package likelihood

import (
	"fmt"
	"math"
	"sync"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/phylotree"
)

// MatrixMissing is returned when a non-root node's transition matrix
// has not been set (the caller forgot to call Tree.ApplyMatrices).
type MatrixMissing struct {
	NodeID int
}

func (e *MatrixMissing) Error() string {
	return fmt.Sprintf("likelihood: node %d has no transition matrix", e.NodeID)
}

// CountOutOfRange is returned when a leaf's observed count exceeds
// the family size range's Max.
type CountOutOfRange struct {
	Species string
	Count   int
	Max     int
}

func (e *CountOutOfRange) Error() string {
	return fmt.Sprintf("likelihood: species %q count %d exceeds max %d", e.Species, e.Count, e.Max)
}

// matrixOf selects which transition matrix a node contributes for a
// given evaluation; it lets Evaluate and the clustered variant share
// one traversal implementation.
type matrixOf func(n *phylotree.Node) (*birthdeath.Matrix, error)

func singleMatrix(n *phylotree.Node) (*birthdeath.Matrix, error) {
	if n.Matrix == nil {
		return nil, &MatrixMissing{NodeID: n.ID}
	}
	return n.Matrix, nil
}

func clusterMatrix(k int) matrixOf {
	return func(n *phylotree.Node) (*birthdeath.Matrix, error) {
		if k >= len(n.ClusterMatrices) || n.ClusterMatrices[k] == nil {
			return nil, &MatrixMissing{NodeID: n.ID}
		}
		return n.ClusterMatrices[k], nil
	}
}

// Evaluate runs the pruning algorithm for one family over a tree
// whose non-root nodes already carry a transition matrix (see
// phylotree.Tree.ApplyMatrices), returning the root-size likelihood
// vector L[r] for r in rng.RootMin..rng.RootMax.
//
// store is used to look up each leaf's observed count for fam by
// species name; counts are never written back onto the tree's nodes,
// so the same tree can be evaluated for many families concurrently.
func Evaluate(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range) ([]float64, error) {
	return evaluate(t, store, fam, rng, singleMatrix)
}

// EvaluateCluster is the clustered-rate variant of Evaluate: it runs
// the same pruning pass but selects the k-th transition matrix on
// every node (see phylotree.Tree.ApplyClusterMatrices), producing one
// root-size vector per latent rate category. A caller combines the K
// per-category vectors with the category weights from a simplex fit
// (see package cluster) to get the family's marginal likelihood.
func EvaluateCluster(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range, k int) ([]float64, error) {
	return evaluate(t, store, fam, rng, clusterMatrix(k))
}

func evaluate(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range, m matrixOf) ([]float64, error) {
	return evaluateFrom(t, store, fam, t.Root(), rng, m)
}

// evaluateFrom runs the same pruning pass as evaluate, but rooted at
// rootID rather than the tree's actual root: only rootID's descendants
// are visited, and rootID itself is treated as the root for the
// purpose of restricting its output vector to rng.RootMin..RootMax.
// This is what lets EvaluateSubtree evaluate one clade independently of
// the rest of the tree, for the posterior package's branch
// (cut-p-value) test.
func evaluateFrom(t *phylotree.Tree, store *family.Store, fam *family.Family, rootID int, rng family.Range, m matrixOf) ([]float64, error) {
	scratch := make(map[int][]float64, len(t.Nodes()))

	var walkErr error
	var visit func(id int)
	visit = func(id int) {
		if walkErr != nil {
			return
		}
		n := t.Node(id)
		if n.IsLeafNode {
			vec, err := leafVector(t, store, fam, n, rng)
			if err != nil {
				walkErr = err
				return
			}
			scratch[id] = vec
			return
		}
		for _, cid := range t.Children(id) {
			visit(cid)
		}
		vec, err := internalVector(t, n, rng, m, scratch, id == rootID)
		if err != nil {
			walkErr = err
			return
		}
		scratch[id] = vec
	}
	visit(rootID)
	if walkErr != nil {
		return nil, walkErr
	}

	full := scratch[rootID]
	out := make([]float64, rng.RootMax-rng.RootMin+1)
	copy(out, full[rng.RootMin:rng.RootMax+1])
	return out, nil
}

// LeafVector returns the leaf likelihood vector a species' observed
// count (or error-model distribution) produces, exported so other
// packages needing the same per-leaf handling -- e.g. package
// posterior's Viterbi reconstruction -- do not have to duplicate it.
func LeafVector(t *phylotree.Tree, store *family.Store, fam *family.Family, n *phylotree.Node, rng family.Range) ([]float64, error) {
	return leafVector(t, store, fam, n, rng)
}

// EvaluateSubtree runs the pruning algorithm over only the clade
// rooted at id, as if id were the root of its own independent tree:
// id's own branch to its actual parent is ignored. Used to compute
// independent conditional distributions on each side of a cut branch,
// see package posterior's CutPValue.
func EvaluateSubtree(t *phylotree.Tree, store *family.Store, fam *family.Family, id int, rng family.Range) ([]float64, error) {
	return evaluateFrom(t, store, fam, id, rng, singleMatrix)
}

func leafVector(t *phylotree.Tree, store *family.Store, fam *family.Family, n *phylotree.Node, rng family.Range) ([]float64, error) {
	c := store.CountAt(fam, n.Name)
	if c < 0 {
		return nil, fmt.Errorf("likelihood: species %q not found in family store", n.Name)
	}
	if c > rng.Max {
		return nil, &CountOutOfRange{Species: n.Name, Count: c, Max: rng.Max}
	}
	if n.Error != nil {
		return n.Error.LeafProbs(c, rng.Max), nil
	}
	vec := make([]float64, rng.Max+1)
	vec[c] = 1
	return vec, nil
}

func internalVector(t *phylotree.Tree, n *phylotree.Node, rng family.Range, m matrixOf, scratch map[int][]float64, isRoot bool) ([]float64, error) {
	lo, hi := 0, rng.Max
	if isRoot {
		lo, hi = rng.RootMin, rng.RootMax
	}

	out := make([]float64, rng.Max+1)
	for s := lo; s <= hi; s++ {
		out[s] = 1
	}

	for _, cid := range t.Children(n.ID) {
		child := t.Node(cid)
		mat, err := m(child)
		if err != nil {
			return nil, err
		}
		childVec := scratch[cid]
		for s := lo; s <= hi; s++ {
			var sum float64
			row := mat.Row(s)
			for sp := 0; sp <= rng.Max && sp < len(childVec); sp++ {
				sum += row[sp] * childVec[sp]
			}
			out[s] *= sum
		}
	}
	return out, nil
}

// Result pairs a family with its root-size likelihood vector, or the
// error produced while evaluating it.
type Result struct {
	Family *family.Family
	L      []float64
	Err    error
}

// EvaluateAll evaluates every family in store against tree, using a
// bounded pool of numWorkers goroutines. Results are returned in
// family-index order regardless of completion order, so that a
// caller summing log-likelihoods gets a deterministic reduction.
func EvaluateAll(t *phylotree.Tree, store *family.Store, rng family.Range, numWorkers int) []Result {
	if numWorkers < 1 {
		numWorkers = 1
	}
	n := store.Len()
	results := make([]Result, n)

	type job struct {
		idx int
		fam *family.Family
	}
	jobs := make(chan job, n)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			l, err := Evaluate(t, store, j.fam, rng)
			results[j.idx] = Result{Family: j.fam, L: l, Err: err}
		}
	}

	workers := numWorkers
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for i := 0; i < n; i++ {
		jobs <- job{idx: i, fam: store.At(i)}
	}
	close(jobs)
	wg.Wait()

	return results
}

// SumLogLikelihood combines each family's root-size likelihood vector
// with a prior over root sizes into a joint probability, and sums the
// logs in results' order. Since EvaluateAll fills results by family
// index, passing it straight through gives a deterministic reduction.
// A non-finite joint (e.g. every L[r] is 0) is reported via a
// negative-infinity total, which the objective treats as +Inf cost.
func SumLogLikelihood(results []Result, prior []float64, rootMin int) (float64, error) {
	var total float64
	for _, r := range results {
		if r.Err != nil {
			return math.Inf(-1), r.Err
		}
		var joint float64
		for i, l := range r.L {
			joint += l * prior[rootMin+i]
		}
		if joint <= 0 || math.IsNaN(joint) || math.IsInf(joint, 0) {
			return math.Inf(-1), nil
		}
		total += math.Log(joint)
	}
	return total, nil
}
