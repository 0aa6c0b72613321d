// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package errormodel_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/js-arias/cafego/errormodel"
)

// maxcnt is comfortably larger than the diff window so that an
// inherited row never needs to clip probability mass at a boundary
// (which would break the column-sum-to-1 invariant). Rows 1 and 3 are
// missing and must inherit from rows 0 and 2 respectively.
const sampleFile = `maxcnt: 4
cntdiff	-1	0	1
0	0.0	0.9	0.1
2	0.05	0.9	0.05
4	0.1	0.9	0.0
`

func TestReadInheritsMissingRows(t *testing.T) {
	m, err := errormodel.Read(strings.NewReader(sampleFile))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.MaxCount() != 4 {
		t.Fatalf("MaxCount() = %d, want 4", m.MaxCount())
	}
	// true count 1 inherits row 0's shape, re-centered: P(0|1)=0,
	// P(1|1)=0.9, P(2|1)=0.1.
	if got := m.Prob(0, 1); math.Abs(got-0) > 1e-9 {
		t.Errorf("Prob(0,1) = %v, want 0", got)
	}
	if got := m.Prob(1, 1); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("Prob(1,1) = %v, want 0.9", got)
	}
	if got := m.Prob(2, 1); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("Prob(2,1) = %v, want 0.1", got)
	}
	// true count 3 inherits row 2's shape, re-centered.
	if got := m.Prob(2, 3); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("Prob(2,3) = %v, want 0.05", got)
	}
	if got := m.Prob(3, 3); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("Prob(3,3) = %v, want 0.9", got)
	}
	if got := m.Prob(4, 3); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("Prob(4,3) = %v, want 0.05", got)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestColumnSumRejection(t *testing.T) {
	bad := `maxcnt: 1
cntdiff	0	1
0	0.5	0.4
1	0.0	1.0
`
	_, err := errormodel.Read(strings.NewReader(bad))
	if err == nil {
		t.Fatalf("expected rejection of a column that does not sum to 1")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m, err := errormodel.Read(strings.NewReader(sampleFile))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m2, err := errormodel.Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read(round-trip): %v", err)
	}
	for j := 0; j <= m.MaxCount(); j++ {
		for i := 0; i <= m.MaxCount(); i++ {
			if math.Abs(m.Prob(i, j)-m2.Prob(i, j)) > 1e-9 {
				t.Errorf("Prob(%d,%d) = %v, want %v", i, j, m2.Prob(i, j), m.Prob(i, j))
			}
		}
	}

	// canonicalization: writing again must be byte-identical, since
	// every row is now explicit.
	var buf2 bytes.Buffer
	if err := m2.Write(&buf2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != buf2.String() {
		t.Errorf("second write differs from first:\n%s\n---\n%s", buf.String(), buf2.String())
	}
}

func TestLeafProbs(t *testing.T) {
	m, err := errormodel.Read(strings.NewReader(sampleFile))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// P(observe 2 | true s) for s=0..4.
	probs := m.LeafProbs(2, 4)
	if len(probs) != 5 {
		t.Fatalf("len(LeafProbs) = %d, want 5", len(probs))
	}
	want := []float64{0, 0.1, 0.9, 0.05, 0}
	for s, w := range want {
		if math.Abs(probs[s]-w) > 1e-9 {
			t.Errorf("LeafProbs(2,4)[%d] = %v, want %v", s, probs[s], w)
		}
	}
}
