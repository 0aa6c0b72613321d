// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package matrixcache implements a keyed cache of birth-death
// transition matrices, shared read-mostly across the likelihood
// engine's concurrent family evaluations.
package matrixcache

import (
	"math"
	"sync"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/logchoose"
)

// Key identifies a transition matrix by its branch length (truncated
// to an integer), birth rate, and death rate.
//
// The truncation is both a performance shortcut and a silent
// rounding: callers must tolerate matrix sharing for branch lengths
// that differ by less than one time unit. This is a contract, not a
// bug -- see spec.md's matrix cache key invariant.
type Key struct {
	T      int64
	Lambda float64
	Mu     float64
}

// NewKey builds a cache key from a raw branch length, truncating it
// to an integer as the cache's sharing contract requires.
func NewKey(t, lambda, mu float64) Key {
	return Key{
		T:      int64(math.Floor(t)),
		Lambda: lambda,
		Mu:     mu,
	}
}

// Cache is a keyed, append-only cache of transition matrices. At most
// one matrix is stored per key; entries survive until a full Reset.
type Cache struct {
	mu      sync.Mutex
	lc      *logchoose.Cache
	maxSize int
	entries map[Key]*birthdeath.Matrix
}

// New creates a cache for family sizes up to maxSize, using lc as the
// shared log-binomial-coefficient table.
func New(lc *logchoose.Cache, maxSize int) *Cache {
	return &Cache{
		lc:      lc,
		maxSize: maxSize,
		entries: make(map[Key]*birthdeath.Matrix),
	}
}

// MaxSize returns the family-size bound matrices in this cache are
// sized for.
func (c *Cache) MaxSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSize
}

// Get returns the transition matrix for a branch of length t and
// rates (lambda, mu), computing and inserting it on a cache miss.
// Inserts are serialized; concurrent reads of already-cached matrices
// do not block each other beyond the lock needed to look up the map
// entry.
func (c *Cache) Get(t, lambda, mu float64) (*birthdeath.Matrix, error) {
	key := NewKey(t, lambda, mu)

	c.mu.Lock()
	if m, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	maxSize := c.maxSize
	c.mu.Unlock()

	m, err := birthdeath.Kernel(c.lc, t, lambda, mu, maxSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// another goroutine might have inserted the same key meanwhile;
	// keep whichever was inserted first so the "at most one matrix
	// per key" invariant holds.
	if existing, ok := c.entries[key]; ok {
		m = existing
	} else {
		c.entries[key] = m
	}
	c.mu.Unlock()

	return m, nil
}

// Reset drops all cached entries and resizes future insertions to a
// new family-size bound. Callers must join all workers using the
// cache before calling Reset, as the cache's trees hold non-owning
// references that become invalid once their matrix is evicted.
func (c *Cache) Reset(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.entries = make(map[Key]*birthdeath.Matrix)
}

// Len returns the number of matrices currently cached, mostly useful
// for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
