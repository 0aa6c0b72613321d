// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package project implements reading and writing of cafego project
// files: a tab-delimited manifest that records the paths of the
// datasets a cafego session works with (tree, family counts, error
// model, replicate measures, fitted rates, reports), following the
// same TSV "dataset path" layout js-arias/phygeo's project package
// uses.
package project

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"
)

// Dataset is a keyword identifying the kind of file a path refers to.
type Dataset string

// Valid dataset types.
const (
	// Tree is the Newick phylogenetic tree.
	Tree Dataset = "tree"

	// Families is the gene-family count file.
	Families Dataset = "families"

	// ErrorModel is the species-to-error-model-file manifest (see
	// Project.ErrorAssignment).
	ErrorModel Dataset = "errormodel"

	// Replicate1 and Replicate2 are the two replicate count files
	// used by erroriest to estimate an error model.
	Replicate1 Dataset = "replicate1"
	Replicate2 Dataset = "replicate2"

	// Report is the output path for the persisted text report.
	Report Dataset = "report"

	// Rates is the fitted birth/death rates file written by the
	// estimate command and read back by report, simulate, and lhtest.
	Rates Dataset = "rates"
)

// Project is a collection of dataset paths making up one cafego
// analysis session.
type Project struct {
	name  string
	paths map[Dataset]string
}

// New creates a new, empty project.
func New() *Project {
	return &Project{paths: make(map[Dataset]string)}
}

var header = []string{
	"dataset",
	"path",
}

// Read reads a project file from a TSV file. The file must contain a
// "dataset" and a "path" column; an example:
//
//	# cafego project
//	dataset	path
//	tree	primates.nwk
//	families	primates-counts.tsv
//	errormodel	primates-error.tsv
func Read(name string) (*Project, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tsv := csv.NewReader(f)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(h)] = i
	}
	for _, h := range header {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("on file %q: expecting field %q", name, h)
		}
	}

	p := New()
	p.name = name
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}
		set := Dataset(row[fields["dataset"]])
		path := row[fields["path"]]
		p.paths[set] = path
	}
	return p, nil
}

// Add sets the path for a dataset, returning its previous value. An
// empty path removes the dataset.
func (p *Project) Add(set Dataset, path string) string {
	prev := p.paths[set]
	if path == "" {
		delete(p.paths, set)
		return prev
	}
	p.paths[set] = path
	return prev
}

// Path returns the path recorded for a dataset, or "" if unset.
func (p *Project) Path(set Dataset) string {
	return p.paths[set]
}

// Sets returns the datasets defined on a project, sorted.
func (p *Project) Sets() []Dataset {
	var sets []Dataset
	for s := range p.paths {
		sets = append(sets, s)
	}
	slices.Sort(sets)
	return sets
}

// SetName sets the project's file name, used by Write.
func (p *Project) SetName(name string) { p.name = name }

// Write writes the project to its file name.
func (p *Project) Write() (err error) {
	f, err := os.Create(p.name)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# cafego project\n")
	fmt.Fprintf(bw, "# saved on: %s\n", time.Now().Format(time.RFC3339))
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", p.name, err)
	}
	for _, s := range p.Sets() {
		if err := tsv.Write([]string{string(s), p.paths[s]}); err != nil {
			return fmt.Errorf("on file %q: %v", p.name, err)
		}
	}
	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", p.name, err)
	}
	return bw.Flush()
}
