// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package load implements the load-families command: it registers a
// gene family count file as a cafego project's family store, checking
// its species names against the project's tree, if one is defined.
package load

import (
	"fmt"
	"os"

	"github.com/js-arias/cafego/bdkind"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "load <project-file> <family-file>",
	Short: "load gene family counts into a project",
	Long: `
Command load (also known as load-families) reads a tab-delimited gene
family count file -- header "Desc\tFamily ID\tspecies1\t...\tspeciesK",
one row per family -- and registers it as the family store of a cafego
project.

If the project already has a tree defined, every species column of the
family file must name a leaf of that tree; otherwise the command
reports an inconsistency and leaves the project unchanged.
	`,
	Run: run,
}

func run(c *command.Command, args []string) error {
	if len(args) < 2 {
		return c.UsageError("expecting project file and family file")
	}
	p, err := project.Read(args[0])
	if err != nil {
		return &bdkind.IoError{Path: args[0], Err: err}
	}

	name := args[1]
	f, err := os.Open(name)
	if err != nil {
		return &bdkind.IoError{Path: name, Err: err}
	}
	store, err := family.ReadTSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("on file %q: %v", name, err)
	}

	if tf := p.Path(project.Tree); tf != "" {
		t, err := p.Tree()
		if err != nil {
			return err
		}
		leaves := make(map[string]bool, len(t.Taxa()))
		for _, tx := range t.Taxa() {
			leaves[tx] = true
		}
		for _, sp := range store.Species() {
			if !leaves[sp] {
				return &bdkind.Inconsistent{What: fmt.Sprintf("species %q in family file is not a leaf of the project tree", sp)}
			}
		}
	}

	p.Add(project.Families, name)
	if err := p.Write(); err != nil {
		return err
	}
	return nil
}
