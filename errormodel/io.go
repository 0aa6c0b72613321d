// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package errormodel

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Read reads an error model from the file format described in
// spec.md §4.9:
//
//	maxcnt: 10
//	cntdiff	-1	0	1
//	0	0.0	0.95	0.05
//	1	0.02	0.93	0.05
//	...
//
// Rows for true counts that are absent from the file inherit the
// previous row's distribution, re-centered on the new true count.
func Read(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	nextLine := func() (string, bool) {
		for sc.Scan() {
			line++
			l := strings.TrimSpace(sc.Text())
			if l == "" || strings.HasPrefix(l, "#") {
				continue
			}
			return l, true
		}
		return "", false
	}

	header, ok := nextLine()
	if !ok {
		return nil, fmt.Errorf("errormodel: empty file")
	}
	const prefix = "maxcnt:"
	if !strings.HasPrefix(strings.ToLower(header), prefix) {
		return nil, fmt.Errorf("errormodel: line %d: expecting %q header", line, "maxcnt:")
	}
	maxCount, err := strconv.Atoi(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return nil, fmt.Errorf("errormodel: line %d: invalid maxcnt value: %v", line, err)
	}

	diffLine, ok := nextLine()
	if !ok {
		return nil, fmt.Errorf("errormodel: expecting cntdiff row")
	}
	fields := strings.Fields(diffLine)
	if len(fields) < 2 || strings.ToLower(fields[0]) != "cntdiff" {
		return nil, fmt.Errorf("errormodel: line %d: expecting cntdiff row", line)
	}
	diffs := make([]int, len(fields)-1)
	for i, f := range fields[1:] {
		d, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("errormodel: line %d: invalid diff value %q: %v", line, f, err)
		}
		diffs[i] = d
	}
	sort.Ints(diffs)
	fromDiff, toDiff := diffs[0], diffs[len(diffs)-1]
	if toDiff-fromDiff+1 != len(diffs) {
		return nil, fmt.Errorf("errormodel: line %d: cntdiff values must be contiguous", line)
	}

	m := New(maxCount, fromDiff, toDiff)
	explicit := make(map[int]bool)
	for {
		row, ok := nextLine()
		if !ok {
			break
		}
		fields := strings.Fields(row)
		if len(fields) != len(diffs)+1 {
			return nil, fmt.Errorf("errormodel: line %d: expecting %d fields, got %d", line, len(diffs)+1, len(fields))
		}
		trueCount, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("errormodel: line %d: invalid true count %q: %v", line, fields[0], err)
		}
		probs := make([]float64, len(diffs))
		for i, f := range fields[1:] {
			p, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("errormodel: line %d: invalid probability %q: %v", line, f, err)
			}
			probs[i] = p
		}
		if err := m.SetRow(trueCount, probs); err != nil {
			return nil, fmt.Errorf("errormodel: line %d: %v", line, err)
		}
		explicit[trueCount] = true
	}

	// fill gaps by inheriting the previous explicit row.
	last := -1
	for j := 0; j <= maxCount; j++ {
		if explicit[j] {
			last = j
			continue
		}
		if last == -1 {
			return nil, fmt.Errorf("errormodel: no row given for true count %d, and no previous row to inherit from", j)
		}
		if err := m.InheritRow(j, last); err != nil {
			return nil, fmt.Errorf("errormodel: inheriting row %d from %d: %v", j, last, err)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Write writes the error model in the format Read accepts. Every row
// 0..maxCount is written explicitly, canonicalizing any model built
// with inherited rows.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "maxcnt: %d\n", m.maxCount)
	fmt.Fprintf(bw, "cntdiff")
	for d := m.fromDiff; d <= m.toDiff; d++ {
		fmt.Fprintf(bw, "\t%d", d)
	}
	fmt.Fprintf(bw, "\n")
	for j := 0; j <= m.maxCount; j++ {
		fmt.Fprintf(bw, "%d", j)
		for d := m.fromDiff; d <= m.toDiff; d++ {
			obs := j + d
			p := 0.0
			if obs >= 0 && obs <= m.maxCount {
				p = m.matrix[obs][j]
			}
			fmt.Fprintf(bw, "\t%s", strconv.FormatFloat(p, 'g', -1, 64))
		}
		fmt.Fprintf(bw, "\n")
	}
	return bw.Flush()
}
