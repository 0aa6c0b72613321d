// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package matrixcache_test

import (
	"sync"
	"testing"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
)

func TestGetCollapsesFractionalBranchLengths(t *testing.T) {
	lc := logchoose.New(20)
	c := matrixcache.New(lc, 15)

	m1, err := c.Get(68.0, 0.01, birthdeath.SameAsBirth)
	if err != nil {
		t.Fatalf("Get(68.0): %v", err)
	}
	m2, err := c.Get(68.7, 0.01, birthdeath.SameAsBirth)
	if err != nil {
		t.Fatalf("Get(68.7): %v", err)
	}
	if m1 != m2 {
		t.Errorf("Get(68.0) and Get(68.7) returned different matrices, want the same pointer")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetDistinctKeys(t *testing.T) {
	lc := logchoose.New(20)
	c := matrixcache.New(lc, 15)

	if _, err := c.Get(68.0, 0.01, birthdeath.SameAsBirth); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(69.0, 0.01, birthdeath.SameAsBirth); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(68.0, 0.02, birthdeath.SameAsBirth); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestResetClearsEntries(t *testing.T) {
	lc := logchoose.New(20)
	c := matrixcache.New(lc, 15)

	if _, err := c.Get(68.0, 0.01, birthdeath.SameAsBirth); err != nil {
		t.Fatal(err)
	}
	c.Reset(20)
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
	if c.MaxSize() != 20 {
		t.Errorf("MaxSize() after Reset = %d, want 20", c.MaxSize())
	}
}

func TestGetConcurrent(t *testing.T) {
	lc := logchoose.New(20)
	c := matrixcache.New(lc, 15)

	var wg sync.WaitGroup
	results := make([]*birthdeath.Matrix, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := c.Get(10.0, 0.03, birthdeath.SameAsBirth)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = m
		}(i)
	}
	wg.Wait()

	first := results[0]
	for i, m := range results {
		if m != first {
			t.Errorf("result[%d] differs from result[0], want a single shared matrix", i)
		}
	}
}
