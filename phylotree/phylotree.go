// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package phylotree implements a rooted phylogenetic tree whose nodes
// carry the per-branch attributes the birth-death inference engine
// needs: a taxon-group id used to partition rate parameters, a
// transition-matrix reference borrowed from a matrixcache.Cache, and
// an optional error-model reference.
//
// The traversal shape (Children/Parent/IsRoot/IsTerm/Root/Nodes, and a
// postorder-construction pass) follows the same contract
// js-arias/phygeo's pruning and diffusion packages use against
// js-arias/timetree; the concrete type differs because our trees carry
// undated branch lengths and rate-group ids that a dated divergence
// tree has no use for.
package phylotree

import (
	"fmt"

	"github.com/js-arias/cafego/birthdeath"
)

// NoGroup is the taxon-group id of a node that has not been assigned
// to a rate-partition group.
const NoGroup = -1

// ErrorModel is the narrow interface a leaf's error-model reference
// must satisfy: the probability of the leaf's observed count under
// each possible true size.
type ErrorModel interface {
	// LeafProbs returns a slice indexed 0..maxSize where entry s is
	// P(observe c | true size s).
	LeafProbs(c, maxSize int) []float64
}

// Node is a node of a phylogenetic tree. Leaves carry a species name;
// internal nodes do not. ObservedCount is -1 on trees built by New or
// ParseNewick; the likelihood engine reads observed counts from a
// family.Store, not from this field.
type Node struct {
	ID           int
	Name         string // only meaningful for leaves
	BranchLength float64
	TaxonGroup   int
	Parent       int // -1 for the root
	Children     []int
	IsLeafNode   bool

	ObservedCount int // only meaningful for leaves
	Error         ErrorModel

	// Lambda and Mu are the per-node rates, decoded from a parameter
	// vector by the estimate package. Unused on the root.
	Lambda, Mu float64

	// Matrix is the transition matrix for the branch above this
	// node, borrowed (not owned) from a matrixcache.Cache. Unused on
	// the root.
	Matrix *birthdeath.Matrix

	// ClusterMatrices holds one borrowed transition matrix per
	// latent rate cluster, in cluster order, when clustering is
	// enabled.
	ClusterMatrices []*birthdeath.Matrix
}

// Tree is a rooted phylogenetic tree.
type Tree struct {
	name  string
	nodes []*Node
	root  int
}

// New creates an empty tree with the given name. Nodes are added with
// AddNode.
func New(name string) *Tree {
	return &Tree{name: name, root: -1}
}

// Name returns the tree's name.
func (t *Tree) Name() string { return t.name }

// AddNode appends a new node and returns its id. parent must be -1
// for the first node added (the root) and a valid existing id
// otherwise.
func (t *Tree) AddNode(parent int, name string, branchLength float64) (*Node, error) {
	id := len(t.nodes)
	n := &Node{
		ID:            id,
		Name:          name,
		BranchLength:  branchLength,
		TaxonGroup:    NoGroup,
		Parent:        parent,
		ObservedCount: -1,
	}
	if parent == -1 {
		if t.root != -1 {
			return nil, fmt.Errorf("phylotree: tree %q already has a root", t.name)
		}
		t.root = id
	} else {
		if parent < 0 || parent >= len(t.nodes) {
			return nil, fmt.Errorf("phylotree: invalid parent id %d", parent)
		}
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
		t.nodes[parent].IsLeafNode = false
	}
	n.IsLeafNode = true
	t.nodes = append(t.nodes, n)
	return n, nil
}

// Root returns the id of the root node.
func (t *Tree) Root() int { return t.root }

// Node returns the node with the given id.
func (t *Tree) Node(id int) *Node { return t.nodes[id] }

// Nodes returns every node in the tree, indexed by id.
func (t *Tree) Nodes() []*Node { return t.nodes }

// Children returns the ids of the children of a node.
func (t *Tree) Children(id int) []int { return t.nodes[id].Children }

// Parent returns the id of the parent of a node, or -1 for the root.
func (t *Tree) Parent(id int) int { return t.nodes[id].Parent }

// IsRoot reports whether id is the root of the tree.
func (t *Tree) IsRoot(id int) bool { return id == t.root }

// IsTerm reports whether id is a leaf (terminal) node.
func (t *Tree) IsTerm(id int) bool { return t.nodes[id].IsLeafNode }

// Leaves returns the ids of every leaf node, in id order.
func (t *Tree) Leaves() []int {
	var leaves []int
	for _, n := range t.nodes {
		if n.IsLeafNode {
			leaves = append(leaves, n.ID)
		}
	}
	return leaves
}

// Taxa returns the species names of every leaf, in id order.
func (t *Tree) Taxa() []string {
	var names []string
	for _, n := range t.nodes {
		if n.IsLeafNode {
			names = append(names, n.Name)
		}
	}
	return names
}

// Postorder visits every node in postorder (children left-to-right,
// then self), the fixed order spec.md's traversal-visitor guidance
// requires.
func (t *Tree) Postorder(visit func(id int)) {
	var walk func(id int)
	walk = func(id int) {
		for _, c := range t.nodes[id].Children {
			walk(c)
		}
		visit(id)
	}
	if t.root != -1 {
		walk(t.root)
	}
}

// DistanceFromRoot returns the sum of branch lengths from the root to
// the given node.
func (t *Tree) DistanceFromRoot(id int) float64 {
	var d float64
	for id != t.root {
		n := t.nodes[id]
		d += n.BranchLength
		id = n.Parent
	}
	return d
}

// IsUltrametric reports whether every leaf is the same distance from
// the root, within a small tolerance.
func (t *Tree) IsUltrametric() bool {
	const tol = 1e-9
	var want float64
	first := true
	for _, id := range t.Leaves() {
		d := t.DistanceFromRoot(id)
		if first {
			want = d
			first = false
			continue
		}
		if diff := d - want; diff > tol || diff < -tol {
			return false
		}
	}
	return true
}

// SetTaxonGroup sets the taxon-group id used to partition this node's
// branch into a rate group.
func (n *Node) SetTaxonGroup(g int) { n.TaxonGroup = g }

// matrixSource is the narrow view of a matrixcache.Cache that
// ApplyMatrices needs, so this package does not have to import
// matrixcache (which would otherwise be the only reason to do so).
type matrixSource interface {
	Get(t, lambda, mu float64) (*birthdeath.Matrix, error)
}

// ApplyMatrices sets every non-root node's Matrix field to the
// matrix cache's entry for (branch length, node.Lambda, node.Mu),
// computing it on a cache miss. It must be called before any
// likelihood evaluation.
func (t *Tree) ApplyMatrices(cache matrixSource) error {
	for _, n := range t.nodes {
		if n.ID == t.root {
			continue
		}
		m, err := cache.Get(n.BranchLength, n.Lambda, n.Mu)
		if err != nil {
			return fmt.Errorf("phylotree: node %d: %w", n.ID, err)
		}
		n.Matrix = m
	}
	return nil
}

// ApplyClusterMatrices is the clustered-variant equivalent of
// ApplyMatrices: for each node it fills ClusterMatrices[k] using the
// k-th cluster's lambda value (mu stays shared across clusters).
func (t *Tree) ApplyClusterMatrices(cache matrixSource, clusterLambdas []float64) error {
	for _, n := range t.nodes {
		if n.ID == t.root {
			continue
		}
		n.ClusterMatrices = make([]*birthdeath.Matrix, len(clusterLambdas))
		for k, lambda := range clusterLambdas {
			m, err := cache.Get(n.BranchLength, lambda, n.Mu)
			if err != nil {
				return fmt.Errorf("phylotree: node %d cluster %d: %w", n.ID, k, err)
			}
			n.ClusterMatrices[k] = m
		}
	}
	return nil
}
