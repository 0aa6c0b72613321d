// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package cluster implements the latent-rate-cluster decode step of
// spec.md §4.4/§4.5: K discretized categories of a Gamma(alpha,alpha)
// distribution (mean 1) scale a branch's birth rate into K classes,
// and a K-simplex weight vector (only K-1 of which are free parameters,
// the last inferred) combines their likelihood vectors.
//
// The discretization follows js-arias/phygeo's cats package
// (Gamma/LogNormal category values via a distuv Quantile), applied
// here to birth-rate classes instead of diffusion-rate classes.
package cluster

import (
	"fmt"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/likelihood"
	"github.com/js-arias/cafego/phylotree"
	"gonum.org/v1/gonum/stat/distuv"
)

// Categories discretizes a Gamma(alpha, alpha) distribution (mean 1,
// shape and rate both alpha) into NumCat equal-probability rate
// multipliers.
type Categories struct {
	Alpha  float64
	NumCat int
}

// Values returns the NumCat category multipliers, one per cluster,
// evaluated at the midpoint of each equal-probability slice of the
// distribution, the same scheme as js-arias/phygeo/cats.getCats.
func (c Categories) Values() ([]float64, error) {
	if c.Alpha <= 0 {
		return nil, fmt.Errorf("cluster: non-positive gamma shape %v", c.Alpha)
	}
	if c.NumCat < 1 {
		return nil, fmt.Errorf("cluster: non-positive category count %d", c.NumCat)
	}
	g := distuv.Gamma{Alpha: c.Alpha, Beta: c.Alpha}
	cats := make([]float64, c.NumCat)
	for i := range cats {
		p := (float64(i) + 0.5) / float64(c.NumCat)
		cats[i] = g.Quantile(p)
	}
	return cats, nil
}

// Weights expands a vector of K-1 free simplex weights into a
// K-length weight vector summing to 1, inferring the last entry as
// spec.md §4.5 requires ("K−1 simplex weights" with "the last weight
// inferred").
func Weights(free []float64) ([]float64, error) {
	w := make([]float64, len(free)+1)
	var sum float64
	for i, f := range free {
		if f < 0 {
			return nil, fmt.Errorf("cluster: negative weight %v", f)
		}
		w[i] = f
		sum += f
	}
	if sum > 1+1e-9 {
		return nil, fmt.Errorf("cluster: free weights sum to %v, exceeding 1", sum)
	}
	last := 1 - sum
	if last < 0 {
		last = 0
	}
	w[len(free)] = last
	return w, nil
}

// matrixSource is the narrow view of a matrixcache.Cache that
// ApplyMatrices needs.
type matrixSource interface {
	Get(t, lambda, mu float64) (*birthdeath.Matrix, error)
}

// ApplyMatrices scales every non-root node's own decoded Lambda by
// each category value and stores the resulting per-cluster matrices
// on phylotree.Node.ClusterMatrices. Unlike phylotree.Tree.
// ApplyClusterMatrices (which applies one shared lambda list to every
// node), this scales each node's own rate, so a tree whose branches
// were partitioned into more than one taxon group by the lambda tree
// still gets per-node-correct clustered matrices.
//
// When fixCluster0 is set, the first cluster's rate is forced to 0
// (the "extinction-only cluster" option of spec.md §4.5).
func ApplyMatrices(t *phylotree.Tree, cache matrixSource, cats []float64, fixCluster0 bool) error {
	for _, n := range t.Nodes() {
		if t.IsRoot(n.ID) {
			continue
		}
		n.ClusterMatrices = make([]*birthdeath.Matrix, len(cats))
		for k, c := range cats {
			lambda := n.Lambda * c
			if fixCluster0 && k == 0 {
				lambda = 0
			}
			m, err := cache.Get(n.BranchLength, lambda, n.Mu)
			if err != nil {
				return fmt.Errorf("cluster: node %d cluster %d: %w", n.ID, k, err)
			}
			n.ClusterMatrices[k] = m
		}
	}
	return nil
}

// EvaluateFamily runs the clustered pruning pass for one family across
// every latent rate category (likelihood.EvaluateCluster) and combines
// the K root-size vectors with the category weights, as spec.md §4.4's
// clustered variant describes ("the root produces K vectors combined
// by a K-simplex weight vector").
func EvaluateFamily(t *phylotree.Tree, store *family.Store, fam *family.Family, rng family.Range, weights []float64) ([]float64, error) {
	out := make([]float64, rng.RootMax-rng.RootMin+1)
	for k, w := range weights {
		l, err := likelihood.EvaluateCluster(t, store, fam, rng, k)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			continue
		}
		for i, v := range l {
			out[i] += w * v
		}
	}
	return out, nil
}
