// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package estimate implements the "estimate lambda" command: it fits
// the birth (and, optionally, death) rates of a cafego project's
// family-size model by maximum likelihood.
package estimate

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/js-arias/cafego/bdkind"
	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/estimate"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/prior"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/cafego/simplex"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `estimate [-mu] [-k <int>] [-fix0] [--safety <int>]
	[--poisson <float>] [--maxiter <int>] [--maxruns <int>]
	[--seed <int>] [--workers <int>] [--out <file>]
	<project-file>`,
	Short: "estimate birth and death rates by maximum likelihood",
	Long: `
Command estimate (the "estimate lambda" command) reads
a project's tree and family counts, decodes the tree's taxon-group
partition into rate groups, and drives a simplex search to the
parameter vector that maximizes the family-size model's likelihood.

By default, death is tied to birth (the "SameAsBirth" sentinel); use
-mu to estimate it as a free parameter per rate group. Use -k to fit
K latent rate clusters per group instead of a single rate, and -fix0
to force the first cluster's rate to zero (an extinction-only class).

The root-size prior defaults to the empirical distribution of observed
counts; use --poisson <rate> to use a Poisson prior instead.

Fitted rates are written to --out (default "rates.tsv") and registered
as the project's rates dataset, for use by "report", "simulate", and
"lhtest".
	`,
	SetFlags: setFlags,
	Run:      run,
}

var estimateMu bool
var numClusters int
var fixCluster0 bool
var safety int
var poissonRate float64
var maxIter int
var maxRuns int
var seed int64
var workers int
var outFile string

func setFlags(c *command.Command) {
	c.Flags().BoolVar(&estimateMu, "mu", false, "")
	c.Flags().IntVar(&numClusters, "k", 1, "")
	c.Flags().BoolVar(&fixCluster0, "fix0", false, "")
	c.Flags().IntVar(&safety, "safety", 2, "")
	c.Flags().Float64Var(&poissonRate, "poisson", 0, "")
	c.Flags().IntVar(&maxIter, "maxiter", 500, "")
	c.Flags().IntVar(&maxRuns, "maxruns", 100, "")
	c.Flags().Int64Var(&seed, "seed", 1, "")
	c.Flags().IntVar(&workers, "workers", 4, "")
	c.Flags().StringVar(&outFile, "out", "rates.tsv", "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}
	p, err := project.Read(args[0])
	if err != nil {
		return err
	}
	t, err := p.Tree()
	if err != nil {
		return err
	}
	store, err := p.Families()
	if err != nil {
		return err
	}
	if err := p.AttachErrorModels(t); err != nil {
		return err
	}

	rng := store.Bounds(safety)
	if err := rng.Validate(); err != nil {
		return err
	}

	lc := logchoose.New(2 * rng.Max)
	cache := matrixcache.New(lc, rng.Max)

	var pr prior.Vector
	if poissonRate > 0 {
		pr, err = prior.Poisson(poissonRate, rng.Max)
	} else {
		pr, err = prior.Empirical(store, rng.Max)
	}
	if err != nil {
		return err
	}

	layout := estimate.Layout{
		NumGroups:   numRateGroups(t),
		EstimateMu:  estimateMu,
		NumClusters: numClusters,
		FixCluster0: fixCluster0,
	}
	theta0 := initialTheta(layout)
	opts := simplex.Options{
		TolX:    1e-6,
		TolF:    1e-6,
		MaxIter: maxIter,
		MaxRuns: maxRuns,
		Rand:    rand.New(rand.NewSource(seed)),
	}

	_, rates, err := estimate.Run(t, store, cache, pr, rng, layout, theta0, opts, workers)
	var conv *bdkind.ConvergenceFailure
	if err != nil && !errors.As(err, &conv) {
		return err
	}

	if err := writeRates(outFile, rates); err != nil {
		return err
	}
	p.Add(project.Rates, outFile)
	if err := p.Write(); err != nil {
		return err
	}

	fmt.Fprintf(c.Stdout(), "rates written to %q\n", outFile)
	if conv != nil {
		fmt.Fprintf(c.Stdout(), "warning: %v (using best-so-far rates)\n", conv)
	}
	return nil
}

// numRateGroups returns one more than the largest positive TaxonGroup
// id found on t, or 1 when no node carries a group assignment.
func numRateGroups(t *phylotree.Tree) int {
	n := 1
	for _, node := range t.Nodes() {
		if node.TaxonGroup+1 > n {
			n = node.TaxonGroup + 1
		}
	}
	return n
}

// initialTheta builds a starting point with small positive lambdas
// (and, when estimated, mus), and an even cluster-weight split.
func initialTheta(layout estimate.Layout) []float64 {
	theta := make([]float64, layout.Len())
	for i := 0; i < layout.NumGroups; i++ {
		theta[i] = 0.1
	}
	pos := layout.NumGroups
	if layout.EstimateMu {
		for i := 0; i < layout.NumGroups; i++ {
			theta[pos+i] = 0.05
		}
		pos += layout.NumGroups
	}
	if layout.NumClusters > 1 {
		for i := 0; i < layout.NumGroups*(layout.NumClusters-1); i++ {
			theta[pos+i] = 0.2
		}
		pos += layout.NumGroups * (layout.NumClusters - 1)
		for i := 0; i < layout.NumClusters-1; i++ {
			theta[pos+i] = 1.0 / float64(layout.NumClusters)
		}
	}
	return theta
}

// writeRates persists the base (non-clustered) per-group rates as a
// small tab-delimited file: group, lambda, mu, with mu written as the
// literal "same" when it is the SameAsBirth sentinel. This is a
// command-level convenience format, not a core package's concern: it
// only needs to round-trip through "report", "simulate", and "lhtest".
func writeRates(name string, r estimate.Rates) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "group\tlambda\tmu\r\n")
	for g := range r.Lambda {
		mu := "same"
		if r.Mu[g] != birthdeath.SameAsBirth {
			mu = strconv.FormatFloat(r.Mu[g], 'g', -1, 64)
		}
		fmt.Fprintf(f, "%d\t%s\t%s\r\n", g, strconv.FormatFloat(r.Lambda[g], 'g', -1, 64), mu)
	}
	return nil
}
