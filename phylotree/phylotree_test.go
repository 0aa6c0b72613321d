// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package phylotree_test

import (
	"math"
	"testing"

	"github.com/js-arias/cafego/phylotree"
)

// Scenario 1 of spec.md §8. The original text gives "dog:9", which
// cannot be reconciled with its own "is_ultrametric <- true" claim
// (it would require dog's root distance to equal 93, the other tips'
// distance); we read it as an elided "dog:93".
const scenario1Newick = "(((chimp:6,human:6):81,(mouse:17,rat:17):70):6,dog:93);"

func TestDistanceFromRootAndUltrametric(t *testing.T) {
	tr, err := phylotree.ParseNewick("scenario1", scenario1Newick)
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}

	byName := make(map[string]int)
	for _, id := range tr.Leaves() {
		byName[tr.Node(id).Name] = id
	}

	tests := []struct {
		name string
		want float64
	}{
		{"chimp", 93},
		{"human", 93},
		{"mouse", 93},
		{"rat", 93},
		{"dog", 93},
	}
	for _, test := range tests {
		id, ok := byName[test.name]
		if !ok {
			t.Fatalf("taxon %q not found", test.name)
		}
		if got := tr.DistanceFromRoot(id); math.Abs(got-test.want) > 1e-9 {
			t.Errorf("DistanceFromRoot(%s) = %v, want %v", test.name, got, test.want)
		}
	}

	if !tr.IsUltrametric() {
		t.Errorf("IsUltrametric() = false, want true")
	}
}

func TestIsUltrametricFalseVariation(t *testing.T) {
	const variant = "(((chimp:6,human:6):81,(mouse:17,rat:17):70):6,dog:92);"
	tr, err := phylotree.ParseNewick("variant", variant)
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	if tr.IsUltrametric() {
		t.Errorf("IsUltrametric() = true, want false for dog:92")
	}
}

func TestNewickRoundTrip(t *testing.T) {
	const src = "((A:1,B:1):1,(C:1,D:1):1);"
	tr, err := phylotree.ParseNewick("t", src)
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	out := tr.Newick()
	tr2, err := phylotree.ParseNewick("t2", out)
	if err != nil {
		t.Fatalf("ParseNewick(round-trip): %v", err)
	}
	if len(tr2.Nodes()) != len(tr.Nodes()) {
		t.Fatalf("round trip node count = %d, want %d", len(tr2.Nodes()), len(tr.Nodes()))
	}
	if tr2.Newick() != out {
		t.Errorf("round trip mismatch: %q != %q", tr2.Newick(), out)
	}
}

func TestTaxonGroupBrackets(t *testing.T) {
	const src = "(chimp:6[1],human:6[1]):9[0];"
	tr, err := phylotree.ParseNewick("t", src)
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	for _, id := range tr.Leaves() {
		n := tr.Node(id)
		if n.TaxonGroup != 1 {
			t.Errorf("node %q group = %d, want 1", n.Name, n.TaxonGroup)
		}
	}
	root := tr.Node(tr.Root())
	if root.TaxonGroup != 0 {
		t.Errorf("root group = %d, want 0", root.TaxonGroup)
	}
}

func TestPostorderVisitsChildrenBeforeSelf(t *testing.T) {
	const src = "((A:1,B:1):1,C:1);"
	tr, err := phylotree.ParseNewick("t", src)
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	var order []int
	tr.Postorder(func(id int) { order = append(order, id) })
	if order[len(order)-1] != tr.Root() {
		t.Errorf("last visited node = %d, want root %d", order[len(order)-1], tr.Root())
	}
	seen := make(map[int]bool)
	for _, id := range order {
		for _, c := range tr.Children(id) {
			if !seen[c] {
				t.Errorf("node %d visited before child %d", id, c)
			}
		}
		seen[id] = true
	}
}
