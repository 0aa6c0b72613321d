// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package family implements the indexed collection of gene families
// used as the unit of evaluation in the likelihood engine, along with
// the species-to-tree-leaf index needed to fix counts into leaves.
package family

import "fmt"

// Range is a family size range: all per-size probability vectors are
// indexed 0..Max; root-size vectors are indexed RootMin..RootMax.
type Range struct {
	Min, Max           int
	RootMin, RootMax   int
}

// Validate checks the invariants spec.md §3 requires of a Range.
func (r Range) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("family: range min %d must be >= 0", r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("family: range min %d exceeds max %d", r.Min, r.Max)
	}
	if r.RootMin < r.Min {
		return fmt.Errorf("family: root min %d below min %d", r.RootMin, r.Min)
	}
	// Note: spec.md allows RootMax to exceed Max by a safety margin,
	// to leave room for an error model to explain an observed
	// maximum as an over-count of a smaller true size.
	if r.RootMin > r.RootMax {
		return fmt.Errorf("family: root min %d exceeds root max %d", r.RootMin, r.RootMax)
	}
	return nil
}

// Family is a single gene family: an identifier, an optional
// description, and an integer vector of observed counts, one per
// species column in its source file.
type Family struct {
	ID     string
	Desc   string
	Counts []int // indexed the same as Store.Species()
}

// Store is an indexed collection of families, owning them until the
// store itself is discarded. Families are never mutated except by
// reindexing to a different species order.
type Store struct {
	species []string
	colOf   map[string]int
	families []*Family
	idOf    map[string]int
}

// NewStore creates an empty store for the given species columns, in
// the order they should appear in every family's Counts slice.
func NewStore(species []string) *Store {
	s := &Store{
		species: species,
		colOf:    make(map[string]int, len(species)),
		idOf:     make(map[string]int),
	}
	for i, sp := range species {
		s.colOf[sp] = i
	}
	return s
}

// Species returns the species columns, in index order.
func (s *Store) Species() []string { return s.species }

// Column returns the column index of a species, or -1 if absent.
func (s *Store) Column(species string) int {
	if i, ok := s.colOf[species]; ok {
		return i
	}
	return -1
}

// Add adds a family to the store. It returns an error if the family's
// Counts length does not match the number of species columns, or if
// the family ID is already present.
func (s *Store) Add(f *Family) error {
	if len(f.Counts) != len(s.species) {
		return fmt.Errorf("family: %q has %d counts, want %d", f.ID, len(f.Counts), len(s.species))
	}
	if _, ok := s.idOf[f.ID]; ok {
		return fmt.Errorf("family: duplicate family id %q", f.ID)
	}
	s.idOf[f.ID] = len(s.families)
	s.families = append(s.families, f)
	return nil
}

// Len returns the number of families in the store.
func (s *Store) Len() int { return len(s.families) }

// At returns the i-th family, in insertion order. Iterating with At
// in order is how the likelihood engine guarantees deterministic
// family-index-ordered reductions.
func (s *Store) At(i int) *Family { return s.families[i] }

// Get returns the family with the given id, or nil if absent.
func (s *Store) Get(id string) *Family {
	i, ok := s.idOf[id]
	if !ok {
		return nil
	}
	return s.families[i]
}

// CountAt returns the observed count for a species in a family, or -1
// if the species is not one of the store's columns.
func (s *Store) CountAt(f *Family, species string) int {
	col := s.Column(species)
	if col < 0 {
		return -1
	}
	return f.Counts[col]
}

// Bounds computes a Range that covers every observed count in the
// store. Max and RootMax are both extended by a safety margin beyond
// the observed maximum, to leave room for an error model that can
// explain an observed maximum as a slight over-count of a smaller true
// size; extending Max as well keeps RootMax within the 0..Max vectors
// and matrices the likelihood engine works with.
func (s *Store) Bounds(safetyMargin int) Range {
	max := 0
	for _, f := range s.families {
		for _, c := range f.Counts {
			if c > max {
				max = c
			}
		}
	}
	if safetyMargin < 0 {
		safetyMargin = 0
	}
	return Range{Min: 0, Max: max + safetyMargin, RootMin: 0, RootMax: max + safetyMargin}
}
