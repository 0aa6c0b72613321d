// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package set implements the set-error-model command: it attaches an
// error-model file to one species, or to every species ("all"), of a
// cafego project.
package set

import (
	"fmt"
	"os"

	"github.com/js-arias/cafego/errormodel"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `set [--species <name>|--all] [--detach]
	<project-file> [<model-file>]`,
	Short: "attach an observation error model to one or all species",
	Long: `
Command set (also known as set-error-model) reads an error-model file
-- header "maxcnt: N", a "cntdiff" row of signed offsets, then one row
per true count -- validates it (every column must sum to 1 within
1e-6), and attaches it to a species, or to every species when --all is
used.

Use --detach to remove a previously attached model from the named
species (or "all") instead of attaching a new one; in that case
<model-file> must be omitted.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var species string
var all bool
var detach bool

func setFlags(c *command.Command) {
	c.Flags().StringVar(&species, "species", "", "")
	c.Flags().BoolVar(&all, "all", false, "")
	c.Flags().BoolVar(&detach, "detach", false, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}
	if species == "" && !all {
		return c.UsageError("expecting --species <name> or --all")
	}
	key := species
	if all {
		key = "all"
	}

	p, err := project.Read(args[0])
	if err != nil {
		return err
	}
	manifest, err := p.ErrorAssignment()
	if err != nil {
		return err
	}

	if detach {
		delete(manifest, key)
	} else {
		if len(args) < 2 {
			return c.UsageError("expecting model file")
		}
		name := args[1]
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		m, err := errormodel.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
		manifest[key] = name
	}

	manifestFile := p.Path(project.ErrorModel)
	if manifestFile == "" {
		manifestFile = "error-assignment.tsv"
	}
	if err := project.WriteErrorAssignment(manifestFile, manifest); err != nil {
		return err
	}
	p.Add(project.ErrorModel, manifestFile)
	if err := p.Write(); err != nil {
		return err
	}
	return nil
}
