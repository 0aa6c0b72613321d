// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package project

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/js-arias/cafego/errormodel"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/phylotree"
)

// Tree reads and parses the project's tree dataset.
func (p *Project) Tree() (*phylotree.Tree, error) {
	name := p.Path(Tree)
	if name == "" {
		return nil, fmt.Errorf("project: no tree defined in project %q", p.name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	t, err := phylotree.ParseNewick(id, string(data))
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return t, nil
}

// Families reads and parses the project's family count dataset.
func (p *Project) Families() (*family.Store, error) {
	return p.readFamilies(Families)
}

// Replicate1 and Replicate2 read the two replicate family count
// datasets used by errmodel estimate to fit an observation error
// model from a pair of repeated counts of the same families.
func (p *Project) Replicate1() (*family.Store, error) { return p.readFamilies(Replicate1) }
func (p *Project) Replicate2() (*family.Store, error) { return p.readFamilies(Replicate2) }

func (p *Project) readFamilies(set Dataset) (*family.Store, error) {
	name := p.Path(set)
	if name == "" {
		return nil, fmt.Errorf("project: no %s defined in project %q", set, p.name)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := family.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return s, nil
}

// ErrorAssignment returns the species-to-error-model-file manifest
// recorded as the project's error-model dataset. The key "all" is the
// default model applied to every species without its own entry. An
// undefined dataset returns an empty, non-nil map.
func (p *Project) ErrorAssignment() (map[string]string, error) {
	name := p.Path(ErrorModel)
	m := make(map[string]string)
	if name == "" {
		return m, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tsv := csv.NewReader(f)
	tsv.Comma = '\t'
	tsv.Comment = '#'
	if _, err := tsv.Read(); err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}
		if len(row) != 2 {
			return nil, fmt.Errorf("on file %q: on row %d: want 2 fields, got %d", name, ln, len(row))
		}
		m[row[0]] = row[1]
	}
	return m, nil
}

// WriteErrorAssignment persists a species-to-error-model-file manifest
// to name. It does not touch any project; callers record the file with
// Add(ErrorModel, name).
func WriteErrorAssignment(name string, m map[string]string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	tsv := csv.NewWriter(f)
	tsv.Comma = '\t'
	tsv.UseCRLF = true
	if err := tsv.Write([]string{"species", "path"}); err != nil {
		return fmt.Errorf("on file %q: %v", name, err)
	}
	species := make([]string, 0, len(m))
	for sp := range m {
		species = append(species, sp)
	}
	slices.Sort(species)
	for _, sp := range species {
		if err := tsv.Write([]string{sp, m[sp]}); err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
	}
	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: %v", name, err)
	}
	return nil
}

// AttachErrorModels reads the project's error-model manifest and sets
// the Error field of every matching leaf in t: the "all" entry, if
// present, is applied to every leaf first, then species-specific
// entries override it. A project with no error-model dataset leaves
// the tree untouched.
func (p *Project) AttachErrorModels(t *phylotree.Tree) error {
	m, err := p.ErrorAssignment()
	if err != nil {
		return err
	}
	if len(m) == 0 {
		return nil
	}

	models := make(map[string]*errormodel.Model, len(m))
	for sp, path := range m {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		em, err := errormodel.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("on file %q: %v", path, err)
		}
		models[sp] = em
	}

	if all, ok := models["all"]; ok {
		for _, n := range t.Nodes() {
			if n.IsLeafNode {
				n.Error = all
			}
		}
	}
	for sp, em := range models {
		if sp == "all" {
			continue
		}
		for _, n := range t.Nodes() {
			if n.IsLeafNode && n.Name == sp {
				n.Error = em
			}
		}
	}
	return nil
}
