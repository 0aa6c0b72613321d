// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package family

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadTSV reads a family count file in the format described by
// spec.md §6:
//
//	Desc	Family ID	species1	...	speciesK
//	some description	FAM0001	3	0	1	...
//
// The returned Store is indexed by the species columns in the order
// they appear in the header, following the same encoding/csv,
// Comma='\t' idiom used throughout the js-arias/phygeo TSV readers.
func ReadTSV(r io.Reader) (*Store, error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'
	tsv.FieldsPerRecord = -1

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("family: while reading header: %v", err)
	}
	if len(head) < 3 {
		return nil, fmt.Errorf("family: header must have at least 3 fields: Desc, Family ID, and one species")
	}
	if !strings.EqualFold(strings.TrimSpace(head[0]), "desc") {
		return nil, fmt.Errorf("family: expecting field %q, got %q", "Desc", head[0])
	}
	if !strings.EqualFold(strings.TrimSpace(head[1]), "family id") {
		return nil, fmt.Errorf("family: expecting field %q, got %q", "Family ID", head[1])
	}
	species := make([]string, len(head)-2)
	for i, h := range head[2:] {
		species[i] = strings.TrimSpace(h)
	}

	s := NewStore(species)
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("family: on row %d: %v", ln, err)
		}
		if len(row) != len(head) {
			return nil, fmt.Errorf("family: on row %d: expecting %d fields, got %d", ln, len(head), len(row))
		}

		f := &Family{
			Desc:   row[0],
			ID:     row[1],
			Counts: make([]int, len(species)),
		}
		for i, v := range row[2:] {
			c, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("family: on row %d: invalid count %q for species %q: %v", ln, v, species[i], err)
			}
			if c < 0 {
				return nil, fmt.Errorf("family: on row %d: negative count %d for species %q", ln, c, species[i])
			}
			f.Counts[i] = c
		}
		if err := s.Add(f); err != nil {
			return nil, fmt.Errorf("family: on row %d: %v", ln, err)
		}
	}
	return s, nil
}

// WriteTSV writes the store back in the format ReadTSV accepts.
func (s *Store) WriteTSV(w io.Writer) error {
	tsv := csv.NewWriter(w)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	header := append([]string{"Desc", "Family ID"}, s.species...)
	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("family: while writing header: %v", err)
	}
	for _, f := range s.families {
		row := make([]string, 0, len(f.Counts)+2)
		row = append(row, f.Desc, f.ID)
		for _, c := range f.Counts {
			row = append(row, strconv.Itoa(c))
		}
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("family: while writing row for %q: %v", f.ID, err)
		}
	}
	tsv.Flush()
	return tsv.Error()
}
