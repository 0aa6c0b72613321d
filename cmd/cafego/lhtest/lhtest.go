// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package lhtest implements the lhtest command: a likelihood-ratio
// test between a single-rate-group ("null") model and the project
// tree's own rate-group partition ("full" model).
package lhtest

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/js-arias/cafego/bdkind"
	"github.com/js-arias/cafego/estimate"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/prior"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/cafego/simplex"
	"github.com/js-arias/cafego/simulate"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `lhtest [-mu] [--multiplier <float>] [--safety <int>]
	[--maxiter <int>] [--maxruns <int>] [--seed <int>]
	[--workers <int>] <project-file>`,
	Short: "likelihood-ratio test of rate-group partitioning",
	Long: `
Command lhtest fits a restricted "null" model with a single, shared
rate group, and the project tree's own "full" rate-group partition,
and reports the likelihood-ratio test statistic between them.

When --multiplier is given (and not 1), every branch with a positive
taxon-group id is stretched by that factor before the full model is
fit (branches in group 0 or with no group are unchanged), a way
to probe sensitivity to the calibration of grouped branches.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var estimateMu bool
var multiplier float64
var safety int
var maxIter int
var maxRuns int
var seed int64
var workers int

func setFlags(c *command.Command) {
	c.Flags().BoolVar(&estimateMu, "mu", false, "")
	c.Flags().Float64Var(&multiplier, "multiplier", 1, "")
	c.Flags().IntVar(&safety, "safety", 2, "")
	c.Flags().IntVar(&maxIter, "maxiter", 500, "")
	c.Flags().IntVar(&maxRuns, "maxruns", 100, "")
	c.Flags().Int64Var(&seed, "seed", 1, "")
	c.Flags().IntVar(&workers, "workers", 4, "")
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
	pr, err := prior.Empirical(store, rng.Max)
	if err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(seed))
	opts := simplex.Options{TolX: 1e-6, TolF: 1e-6, MaxIter: maxIter, MaxRuns: maxRuns, Rand: rnd}

	nullLayout := estimate.Layout{NumGroups: 1, EstimateMu: estimateMu}
	nullRes, err := fit(t, store, cache, pr, rng, nullLayout, opts)
	if err != nil {
		return err
	}

	full := numRateGroups(t)
	if multiplier != 1 {
		simulate.ScaleTree(t, multiplier)
	}
	fullLayout := estimate.Layout{NumGroups: full, EstimateMu: estimateMu}
	fullRes, err := fit(t, store, cache, pr, rng, fullLayout, opts)
	if err != nil {
		return err
	}

	df := fullLayout.Len() - nullLayout.Len()
	if df < 1 {
		return fmt.Errorf("lhtest: full model has no additional free parameters over the null model")
	}
	logLNull := -nullRes.F
	logLFull := -fullRes.F
	lrt, err := simulate.LikelihoodRatioTest(logLNull, logLFull, df)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Stdout(), "null logL\t%.6f\n", logLNull)
	fmt.Fprintf(c.Stdout(), "full logL\t%.6f\n", logLFull)
	fmt.Fprintf(c.Stdout(), "statistic\t%.6f\n", lrt.Statistic)
	fmt.Fprintf(c.Stdout(), "df\t%d\n", lrt.DF)
	fmt.Fprintf(c.Stdout(), "pvalue\t%.6f\n", lrt.PValue)
	return nil
}

// fit drives one restart-aware search, reporting a convergence failure
// as a warning -- keeping the best-so-far parameters rather than
// discarding the fit -- instead of aborting the whole test.
func fit(t *phylotree.Tree, store *family.Store, cache *matrixcache.Cache, pr prior.Vector, rng family.Range, layout estimate.Layout, opts simplex.Options) (*simplex.Result, error) {
	theta0 := initialTheta(layout)
	res, _, err := estimate.Run(t, store, cache, pr, rng, layout, theta0, opts, workers)
	var conv *bdkind.ConvergenceFailure
	if err != nil && !errors.As(err, &conv) {
		return nil, err
	}
	return res, nil
}

func initialTheta(layout estimate.Layout) []float64 {
	theta := make([]float64, layout.Len())
	for i := 0; i < layout.NumGroups; i++ {
		theta[i] = 0.1
	}
	if layout.EstimateMu {
		for i := 0; i < layout.NumGroups; i++ {
			theta[layout.NumGroups+i] = 0.05
		}
	}
	return theta
}

func numRateGroups(t *phylotree.Tree) int {
	n := 1
	for _, node := range t.Nodes() {
		if node.TaxonGroup+1 > n {
			n = node.TaxonGroup + 1
		}
	}
	return n
}
