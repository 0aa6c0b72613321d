// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package logchoose implements a cache of the log of the binomial
// coefficient, ln C(n,k), used by the birth-death transition kernel.
package logchoose

import "math"

// Cache is a precomputed table of ln C(n,k) for 0 <= k <= n <= max.
// It is read-only after New returns.
type Cache struct {
	max   int
	table [][]float64
}

// New builds a cache of ln C(n,k) for 0 <= k <= n <= max.
func New(max int) *Cache {
	if max < 0 {
		max = 0
	}
	c := &Cache{
		max:   max,
		table: make([][]float64, max+1),
	}
	for n := 0; n <= max; n++ {
		row := make([]float64, n+1)
		for k := 0; k <= n; k++ {
			row[k] = lnChoose(n, k)
		}
		c.table[n] = row
	}
	return c
}

// Max returns the largest n for which the table has a precomputed row.
func (c *Cache) Max() int {
	return c.max
}

// LnChoose returns ln C(n,k). Lookups inside the cached range are
// served from the table; lookups outside it are computed on demand
// from lgamma without being cached, as the cache's size is fixed at
// construction.
func (c *Cache) LnChoose(n, k int) float64 {
	if n < 0 || k < 0 || k > n {
		return math.Inf(-1)
	}
	if n <= c.max {
		return c.table[n][k]
	}
	return lnChoose(n, k)
}

func lnChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	if k == 0 || k == n {
		return 0
	}
	ln1, _ := math.Lgamma(float64(n + 1))
	ln2, _ := math.Lgamma(float64(k + 1))
	ln3, _ := math.Lgamma(float64(n - k + 1))
	return ln1 - ln2 - ln3
}
