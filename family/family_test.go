// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package family_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/js-arias/cafego/family"
)

const sampleFamilies = "Desc\tFamily ID\tA\tB\tC\tD\n" +
	"first family\tFAM0001\t5\t10\t2\t6\n" +
	"second family\tFAM0002\t1\t1\t1\t1\n"

func TestReadTSV(t *testing.T) {
	s, err := family.ReadTSV(strings.NewReader(sampleFamilies))
	if err != nil {
		t.Fatalf("ReadTSV: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	wantSpecies := []string{"A", "B", "C", "D"}
	if len(s.Species()) != len(wantSpecies) {
		t.Fatalf("Species() = %v, want %v", s.Species(), wantSpecies)
	}
	f := s.Get("FAM0001")
	if f == nil {
		t.Fatalf("Get(FAM0001) = nil")
	}
	if f.Counts[s.Column("B")] != 10 {
		t.Errorf("count for B in FAM0001 = %d, want 10", f.Counts[s.Column("B")])
	}
}

func TestReadTSVRejectsDuplicateID(t *testing.T) {
	bad := "Desc\tFamily ID\tA\n" +
		"x\tFAM0001\t1\n" +
		"y\tFAM0001\t2\n"
	if _, err := family.ReadTSV(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected rejection of duplicate family id")
	}
}

func TestWriteTSVRoundTrip(t *testing.T) {
	s, err := family.ReadTSV(strings.NewReader(sampleFamilies))
	if err != nil {
		t.Fatalf("ReadTSV: %v", err)
	}
	var buf bytes.Buffer
	if err := s.WriteTSV(&buf); err != nil {
		t.Fatalf("WriteTSV: %v", err)
	}
	s2, err := family.ReadTSV(&buf)
	if err != nil {
		t.Fatalf("ReadTSV(round-trip): %v", err)
	}
	if s2.Len() != s.Len() {
		t.Fatalf("round trip Len() = %d, want %d", s2.Len(), s.Len())
	}
	for i := 0; i < s.Len(); i++ {
		a, b := s.At(i), s2.At(i)
		if a.ID != b.ID || a.Desc != b.Desc {
			t.Errorf("family %d = %+v, want %+v", i, b, a)
		}
	}
}

func TestBounds(t *testing.T) {
	s, err := family.ReadTSV(strings.NewReader(sampleFamilies))
	if err != nil {
		t.Fatalf("ReadTSV: %v", err)
	}
	r := s.Bounds(0)
	if r.Max != 10 {
		t.Errorf("Bounds().Max = %d, want 10", r.Max)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
