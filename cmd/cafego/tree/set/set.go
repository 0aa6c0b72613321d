// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package set implements the set-tree command: it registers a Newick
// tree file as a cafego project's phylogeny.
package set

import (
	"errors"
	"fmt"
	"os"

	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: "set <project-file> <newick-file>",
	Short: "set the phylogenetic tree of a project",
	Long: `
Command set (also known as set-tree) reads a phylogenetic tree in
parenthetical (Newick) format, with branch lengths and optional
bracketed taxon-group ids -- e.g. "(chimp:6[1],human:6[1]):2[0];" -- and
registers it as the tree of a cafego project.

The first argument is the project file. If it does not exist, a new
project will be created. The second argument is the path of the
Newick tree file.
	`,
	Run: run,
}

func run(c *command.Command, args []string) error {
	if len(args) < 2 {
		return c.UsageError("expecting project file and newick file")
	}
	p, err := openProject(args[0])
	if err != nil {
		return err
	}

	name := args[1]
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	if _, err := phylotree.ParseNewick(name, string(data)); err != nil {
		return fmt.Errorf("on file %q: %v", name, err)
	}

	p.Add(project.Tree, name)
	if err := p.Write(); err != nil {
		return err
	}
	return nil
}

func openProject(name string) (*project.Project, error) {
	p, err := project.Read(name)
	if errors.Is(err, os.ErrNotExist) {
		p := project.New()
		p.SetName(name)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open project %q: %v", name, err)
	}
	return p, nil
}
