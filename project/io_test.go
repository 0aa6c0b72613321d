// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/js-arias/cafego/errormodel"
	"github.com/js-arias/cafego/project"
)

const sampleTree = `(a:1,(b:1,c:1):1[1]);`

const sampleCounts = `Desc	Family ID	a	b	c
f1	fam1	1	2	3
`

const sampleModel = `maxcnt: 2
cntdiff	-1	0	1
0	0.0	0.9	0.1
2	0.1	0.9	0.0
`

func writeFile(t testing.TB, dir, name, data string) string {
	t.Helper()
	name = filepath.Join(dir, name)
	if err := os.WriteFile(name, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return name
}

func TestProjectTree(t *testing.T) {
	dir := t.TempDir()
	name := writeFile(t, dir, "t.nwk", sampleTree)

	p := project.New()
	p.Add(project.Tree, name)

	tree, err := p.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	want := []string{"a", "b", "c"}
	got := tree.Taxa()
	if len(got) != len(want) {
		t.Fatalf("Taxa() = %v, want %v", got, want)
	}
}

func TestProjectTreeUndefined(t *testing.T) {
	p := project.New()
	if _, err := p.Tree(); err == nil {
		t.Fatalf("expected error when no tree is defined")
	}
}

func TestProjectFamilies(t *testing.T) {
	dir := t.TempDir()
	name := writeFile(t, dir, "counts.tsv", sampleCounts)

	p := project.New()
	p.Add(project.Families, name)

	s, err := p.Families()
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if f := s.Get("fam1"); f == nil {
		t.Fatalf("Get(fam1) = nil")
	}
}

func TestProjectReplicates(t *testing.T) {
	dir := t.TempDir()
	n1 := writeFile(t, dir, "r1.tsv", sampleCounts)
	n2 := writeFile(t, dir, "r2.tsv", sampleCounts)

	p := project.New()
	p.Add(project.Replicate1, n1)
	p.Add(project.Replicate2, n2)

	if _, err := p.Replicate1(); err != nil {
		t.Errorf("Replicate1: %v", err)
	}
	if _, err := p.Replicate2(); err != nil {
		t.Errorf("Replicate2: %v", err)
	}
}

func TestErrorAssignmentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "assign.tsv")
	m := map[string]string{
		"all": "all-model.tsv",
		"a":   "a-model.tsv",
	}
	if err := project.WriteErrorAssignment(manifest, m); err != nil {
		t.Fatalf("WriteErrorAssignment: %v", err)
	}

	p := project.New()
	p.Add(project.ErrorModel, manifest)

	got, err := p.ErrorAssignment()
	if err != nil {
		t.Fatalf("ErrorAssignment: %v", err)
	}
	if len(got) != len(m) {
		t.Fatalf("ErrorAssignment() = %v, want %v", got, m)
	}
	for sp, path := range m {
		if got[sp] != path {
			t.Errorf("ErrorAssignment()[%q] = %q, want %q", sp, got[sp], path)
		}
	}
}

func TestErrorAssignmentUndefined(t *testing.T) {
	p := project.New()
	m, err := p.ErrorAssignment()
	if err != nil {
		t.Fatalf("ErrorAssignment: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("ErrorAssignment() = %v, want empty", m)
	}
}

func TestAttachErrorModels(t *testing.T) {
	dir := t.TempDir()
	treeName := writeFile(t, dir, "t.nwk", sampleTree)
	allModel := writeFile(t, dir, "all.tsv", sampleModel)
	bModel := writeFile(t, dir, "b.tsv", sampleModel)
	manifest := filepath.Join(dir, "assign.tsv")

	if err := project.WriteErrorAssignment(manifest, map[string]string{
		"all": allModel,
		"b":   bModel,
	}); err != nil {
		t.Fatalf("WriteErrorAssignment: %v", err)
	}

	p := project.New()
	p.Add(project.Tree, treeName)
	p.Add(project.ErrorModel, manifest)

	tree, err := p.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if err := p.AttachErrorModels(tree); err != nil {
		t.Fatalf("AttachErrorModels: %v", err)
	}

	var withModel int
	for _, n := range tree.Nodes() {
		if !n.IsLeafNode {
			continue
		}
		if n.Error == nil {
			t.Errorf("leaf %q has no error model attached", n.Name)
			continue
		}
		withModel++
	}
	if withModel != 3 {
		t.Fatalf("%d leaves have an error model, want 3", withModel)
	}

	f, err := os.Open(bModel)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	want, err := errormodel.Read(f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// AttachErrorModels reads its own copy of every file, so leaf b's
	// model is a different pointer from want; it must match want's
	// content and must not be the "all" model shared by leaf a.
	leafModel := make(map[string]any)
	for _, n := range tree.Nodes() {
		if n.IsLeafNode {
			leafModel[n.Name] = n.Error
		}
	}
	if got, ok := leafModel["b"].(*errormodel.Model); !ok || got == leafModel["a"] || got.MaxCount() != want.MaxCount() {
		t.Errorf("leaf %q did not get the species-specific model override", "b")
	}
}

func TestAttachErrorModelsNoneDefined(t *testing.T) {
	dir := t.TempDir()
	treeName := writeFile(t, dir, "t.nwk", sampleTree)

	p := project.New()
	p.Add(project.Tree, treeName)
	tree, err := p.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if err := p.AttachErrorModels(tree); err != nil {
		t.Fatalf("AttachErrorModels: %v", err)
	}
	for _, n := range tree.Nodes() {
		if n.IsLeafNode && n.Error != nil {
			t.Errorf("leaf %q unexpectedly has an error model", n.Name)
		}
	}
}
