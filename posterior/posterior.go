// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package posterior implements spec.md §4.8's post-search reporting
// layer: the posterior distribution over root sizes, family p-values
// (via Monte-Carlo conditional distributions built by package
// simulate), per-branch "cut" p-values, and Viterbi maximum-a-
// posteriori ancestral size reconstruction.
package posterior

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/likelihood"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/simulate"
)

// Posterior computes posterior[r] ∝ L[r]*prior[r], normalized to sum
// to 1, spec.md §4.8's "posterior at root" definition.
func Posterior(l, pr []float64, rootMin int) ([]float64, error) {
	post := make([]float64, len(l))
	var sum float64
	for i, v := range l {
		p := v * pr[rootMin+i]
		post[i] = p
		sum += p
	}
	if sum <= 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("posterior: likelihood*prior underflowed to zero")
	}
	for i := range post {
		post[i] /= sum
	}
	return post, nil
}

// FamilyResult bundles one family's observed likelihood vector,
// normalized posterior, and overall p-value.
type FamilyResult struct {
	L         []float64
	Posterior []float64
	PValue    float64
}

// Evaluate computes the full posterior-layer result for one family:
// its likelihood vector, posterior over root sizes, and the p-value
// from Monte-Carlo conditional distributions built with n samples per
// root size with positive posterior mass.
func Evaluate(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range, pr []float64, n int, rnd *rand.Rand) (*FamilyResult, error) {
	l, err := likelihood.Evaluate(t, store, fam, rng)
	if err != nil {
		return nil, err
	}
	post, err := Posterior(l, pr, rng.RootMin)
	if err != nil {
		return nil, err
	}
	conditional := make(map[int][]float64)
	for i, p := range post {
		if p <= 0 {
			continue
		}
		r := rng.RootMin + i
		cd, err := simulate.ConditionalDistribution(t, store, rng, r, n, rnd)
		if err != nil {
			return nil, err
		}
		conditional[r] = cd
	}
	pval := simulate.FamilyPValue(l, post, conditional, rng.RootMin)
	return &FamilyResult{L: l, Posterior: post, PValue: pval}, nil
}

// MAP is one family's maximum-a-posteriori ancestral size
// reconstruction: the size assigned to every node, and the log of the
// joint probability the reconstruction achieves.
type MAP struct {
	Size    map[int]int
	LogProb float64
}

// mapNode is the per-node scratch Viterbi needs: the best joint value
// achievable for each candidate size, and, for internal nodes, which
// child size achieved it (aligned with phylotree.Tree.Children order).
type mapNode struct {
	val  []float64
	back map[int][]int
}

// ViterbiMAP computes spec.md §4.8's "at each internal node, the child
// transition-row that maximizes the joint likelihood" reconstruction:
// a max-product pass structurally identical to package likelihood's
// pruning sum-product, but tracking the maximizing child size at every
// node instead of summing over it.
func ViterbiMAP(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range) (*MAP, error) {
	nodes := make(map[int]*mapNode, len(t.Nodes()))

	var walkErr error
	var visit func(id int)
	visit = func(id int) {
		if walkErr != nil {
			return
		}
		n := t.Node(id)
		if n.IsLeafNode {
			vec, err := likelihood.LeafVector(t, store, fam, n, rng)
			if err != nil {
				walkErr = err
				return
			}
			nodes[id] = &mapNode{val: vec}
			return
		}
		for _, cid := range t.Children(id) {
			visit(cid)
			if walkErr != nil {
				return
			}
		}

		isRoot := t.IsRoot(id)
		lo, hi := 0, rng.Max
		if isRoot {
			lo, hi = rng.RootMin, rng.RootMax
		}
		children := t.Children(id)
		val := make([]float64, rng.Max+1)
		back := make(map[int][]int, hi-lo+1)
		for s := lo; s <= hi; s++ {
			prod := 1.0
			bestChild := make([]int, len(children))
			for ci, cid := range children {
				child := t.Node(cid)
				if child.Matrix == nil {
					walkErr = &likelihood.MatrixMissing{NodeID: cid}
					return
				}
				row := child.Matrix.Row(s)
				childVal := nodes[cid].val
				var best float64
				var bestS int
				for sp := 0; sp <= rng.Max && sp < len(childVal); sp++ {
					v := row[sp] * childVal[sp]
					if v > best {
						best = v
						bestS = sp
					}
				}
				prod *= best
				bestChild[ci] = bestS
			}
			val[s] = prod
			back[s] = bestChild
		}
		nodes[id] = &mapNode{val: val, back: back}
	}
	visit(t.Root())
	if walkErr != nil {
		return nil, walkErr
	}

	root := nodes[t.Root()]
	bestR, bestVal := rng.RootMin, 0.0
	for r := rng.RootMin; r <= rng.RootMax; r++ {
		if root.val[r] > bestVal {
			bestVal = root.val[r]
			bestR = r
		}
	}
	if bestVal <= 0 {
		return nil, fmt.Errorf("posterior: Viterbi reconstruction found no feasible ancestral assignment")
	}

	sizes := make(map[int]int, len(t.Nodes()))
	sizes[t.Root()] = bestR
	var assign func(id, size int)
	assign = func(id, size int) {
		node := nodes[id]
		for ci, cid := range t.Children(id) {
			childSize := node.back[size][ci]
			sizes[cid] = childSize
			if !t.IsTerm(cid) {
				assign(cid, childSize)
			}
		}
	}
	assign(t.Root(), bestR)

	return &MAP{Size: sizes, LogProb: math.Log(bestVal)}, nil
}

// CutPValue computes spec.md §4.8's branch p-value for the branch
// above node id: the tree is split into the clade rooted at id and the
// rest of the tree (with id's own subtree replaced by an uninformative
// tip, since the branch connecting them is the one being tested), an
// independent conditional distribution is built for each side, and the
// reported p-value is the probability of observing a pair at least as
// extreme as the two sides' actual likelihoods.
func CutPValue(t *phylotree.Tree, store *family.Store, fam *family.Family, id int, rng family.Range, n int, rnd *rand.Rand) (float64, error) {
	if t.IsRoot(id) {
		return 0, fmt.Errorf("posterior: cannot cut the branch above the root")
	}

	cladeL, err := likelihood.EvaluateSubtree(t, store, fam, id, rng)
	if err != nil {
		return 0, err
	}
	restL, err := restOfTreeLikelihood(t, store, fam, id, rng)
	if err != nil {
		return 0, err
	}

	var obsClade, obsRest float64
	for _, v := range cladeL {
		obsClade += v
	}
	for _, v := range restL {
		obsRest += v
	}

	var maxP float64
	for r := rng.RootMin; r <= rng.RootMax; r++ {
		cd, err := simulate.ConditionalDistribution(t, store, rng, r, n, rnd)
		if err != nil {
			return 0, err
		}
		pClade := simulate.PValue(cd, obsClade)
		pRest := simulate.PValue(cd, obsRest)
		p := pClade * pRest
		if p > maxP {
			maxP = p
		}
	}
	return maxP, nil
}

// restOfTreeLikelihood evaluates the whole tree's likelihood vector
// while treating id's clade as an uninformative tip (a stand-in leaf
// whose vector is uniformly 1 over its size range), isolating the
// contribution of everything on the other side of the branch above id.
func restOfTreeLikelihood(t *phylotree.Tree, store *family.Store, fam *family.Family, id int, rng family.Range) ([]float64, error) {
	uniform := make([]float64, rng.Max+1)
	for i := range uniform {
		uniform[i] = 1
	}
	return evaluateWithOverride(t, store, fam, id, uniform, rng)
}

// evaluateWithOverride runs the pruning pass over the whole tree, but
// substitutes override for the leaf/subtree vector it would otherwise
// compute at node overrideID.
func evaluateWithOverride(t *phylotree.Tree, store *family.Store, fam *family.Family, overrideID int, override []float64, rng family.Range) ([]float64, error) {
	scratch := make(map[int][]float64, len(t.Nodes()))
	var walkErr error
	var visit func(id int)
	visit = func(id int) {
		if walkErr != nil {
			return
		}
		if id == overrideID {
			scratch[id] = override
			return
		}
		n := t.Node(id)
		if n.IsLeafNode {
			vec, err := likelihood.LeafVector(t, store, fam, n, rng)
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

		isRoot := t.IsRoot(id)
		lo, hi := 0, rng.Max
		if isRoot {
			lo, hi = rng.RootMin, rng.RootMax
		}
		out := make([]float64, rng.Max+1)
		for s := lo; s <= hi; s++ {
			out[s] = 1
		}
		for _, cid := range t.Children(id) {
			child := t.Node(cid)
			if child.Matrix == nil {
				walkErr = &likelihood.MatrixMissing{NodeID: cid}
				return
			}
			childVec := scratch[cid]
			for s := lo; s <= hi; s++ {
				var sum float64
				row := child.Matrix.Row(s)
				for sp := 0; sp <= rng.Max && sp < len(childVec); sp++ {
					sum += row[sp] * childVec[sp]
				}
				out[s] *= sum
			}
		}
		scratch[id] = out
	}
	visit(t.Root())
	if walkErr != nil {
		return nil, walkErr
	}
	full := scratch[t.Root()]
	out := make([]float64, rng.RootMax-rng.RootMin+1)
	copy(out, full[rng.RootMin:rng.RootMax+1])
	return out, nil
}
