// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package estimate implements the error-model estimation command: it
// fits a misclassification distribution from two replicate gene family
// count measures of the same species, and writes the fitted model.
package estimate

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/js-arias/cafego/bdkind"
	"github.com/js-arias/cafego/errormodel"
	"github.com/js-arias/cafego/erroriest"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/prior"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/cafego/simplex"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `estimate [--maxdiff <int>] [--symmetric]
	[--maxiter <int>] [--maxruns <int>] [--seed <int>]
	[--species <name>|--all] [--out <file>]
	<project-file> [<replicate1-file> <replicate2-file>]`,
	Short: "estimate an error model from two replicate count files",
	Long: `
Command estimate (as in "errmodel estimate") fits an observation error
model from two replicate gene family count files measuring the same
families and species: it builds a symmetric pair-count matrix and
drives a simplex search to the misclassification distribution (a
single parameter vector shared by every species and true count) that
minimizes the error-estimation objective.

If the replicate files are omitted, the project's own replicate1 and
replicate2 datasets are used; either way, both files are (re)registered
on the project.

When --species or --all is given, the fitted model is also attached to
the named species (or every species) the same way "errmodel set" does.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var maxDiff int
var symmetric bool
var maxIter int
var maxRuns int
var seed int64
var species string
var all bool
var outFile string

func setFlags(c *command.Command) {
	c.Flags().IntVar(&maxDiff, "maxdiff", 3, "")
	c.Flags().BoolVar(&symmetric, "symmetric", true, "")
	c.Flags().IntVar(&maxIter, "maxiter", 500, "")
	c.Flags().IntVar(&maxRuns, "maxruns", 100, "")
	c.Flags().Int64Var(&seed, "seed", 1, "")
	c.Flags().StringVar(&species, "species", "", "")
	c.Flags().BoolVar(&all, "all", false, "")
	c.Flags().StringVar(&outFile, "out", "errormodel-fit.tsv", "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}
	p, err := project.Read(args[0])
	if err != nil {
		return err
	}

	rep1 := p.Path(project.Replicate1)
	rep2 := p.Path(project.Replicate2)
	if len(args) >= 3 {
		rep1, rep2 = args[1], args[2]
	}
	if rep1 == "" || rep2 == "" {
		return c.UsageError("expecting two replicate count files")
	}
	p.Add(project.Replicate1, rep1)
	p.Add(project.Replicate2, rep2)

	store1, err := readStore(rep1)
	if err != nil {
		return err
	}
	store2, err := readStore(rep2)
	if err != nil {
		return err
	}

	a, b, maxCount, err := alignCounts(store1, store2)
	if err != nil {
		return err
	}

	raw, err := erroriest.BuildPairs(a, b, maxCount)
	if err != nil {
		return err
	}
	pairs := erroriest.FoldPairs(raw)

	pr, err := prior.Empirical(store1, maxCount)
	if err != nil {
		return err
	}

	layout := erroriest.Layout{MaxDiff: maxDiff, Symmetric: symmetric}
	theta0 := make([]float64, layout.Len())
	for i := range theta0 {
		theta0[i] = 0.05
	}
	opts := simplex.Options{
		TolX:    1e-6,
		TolF:    1e-6,
		MaxIter: maxIter,
		MaxRuns: maxRuns,
		Rand:    rand.New(rand.NewSource(seed)),
	}

	_, e, err := erroriest.Run(pairs, pr, layout, theta0, opts)
	var conv *bdkind.ConvergenceFailure
	if err != nil && !errors.As(err, &conv) {
		return err
	}

	model, mErr := erroriest.ToModel(e, maxDiff, maxCount)
	if mErr != nil {
		return mErr
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	wErr := model.Write(out)
	out.Close()
	if wErr != nil {
		return wErr
	}

	if species != "" || all {
		key := species
		if all {
			key = "all"
		}
		manifest, mfErr := p.ErrorAssignment()
		if mfErr != nil {
			return mfErr
		}
		manifest[key] = outFile
		manifestFile := p.Path(project.ErrorModel)
		if manifestFile == "" {
			manifestFile = "error-assignment.tsv"
		}
		if wErr := project.WriteErrorAssignment(manifestFile, manifest); wErr != nil {
			return wErr
		}
		p.Add(project.ErrorModel, manifestFile)
	}

	if err := p.Write(); err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout(), "fitted error model written to %q\n", outFile)
	if conv != nil {
		fmt.Fprintf(c.Stdout(), "warning: %v (using best-so-far fit)\n", conv)
	}
	return nil
}

func readStore(name string) (*family.Store, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, &bdkind.IoError{Path: name, Err: err}
	}
	defer f.Close()
	s, err := family.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return s, nil
}

// alignCounts pairs up every (family, species) observation present in
// both stores into two parallel count slices, and reports the largest
// count seen across either replicate.
func alignCounts(store1, store2 *family.Store) (a, b []int, maxCount int, err error) {
	species := store1.Species()
	if len(species) != len(store2.Species()) {
		return nil, nil, 0, &bdkind.Inconsistent{What: "replicate files do not share the same species columns"}
	}
	for i, sp := range species {
		if store2.Species()[i] != sp {
			return nil, nil, 0, &bdkind.Inconsistent{What: fmt.Sprintf("species column %d differs between replicate files (%q vs %q)", i, sp, store2.Species()[i])}
		}
	}

	for i := 0; i < store1.Len(); i++ {
		f1 := store1.At(i)
		f2 := store2.Get(f1.ID)
		if f2 == nil {
			return nil, nil, 0, &bdkind.Inconsistent{What: fmt.Sprintf("family %q is not present in the second replicate file", f1.ID)}
		}
		for _, sp := range species {
			c1 := store1.CountAt(f1, sp)
			c2 := store2.CountAt(f2, sp)
			a = append(a, c1)
			b = append(b, c2)
			if c1 > maxCount {
				maxCount = c1
			}
			if c2 > maxCount {
				maxCount = c2
			}
		}
	}
	return a, b, maxCount, nil
}
