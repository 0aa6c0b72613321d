// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package report implements the report command: it evaluates every
// family against a project's fitted rates and writes a text report of
// per-family p-values, per-node MAP ancestral sizes, and the MLE
// parameters used.
package report

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/posterior"
	"github.com/js-arias/cafego/prior"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `report [--cut] [--n <int>] [--seed <int>]
	[--safety <int>] [--out <file>] <project-file>`,
	Short: "report per-family p-values and MAP ancestral sizes",
	Long: `
Command report reads a project's tree, family counts, and previously
fitted rates (see "estimate"), then evaluates every family's posterior
over root sizes, its Monte-Carlo p-value, and its Viterbi maximum-a-
posteriori ancestral size reconstruction, and writes a text report
listing per-family p-value, per-node MAP sizes, and the MLE parameters
used.

Use --cut to also report, for every internal branch of every family,
the branch p-value computed by splitting the tree at that branch
(expensive: it runs a fresh set of conditional-distribution
simulations per branch per family).

The report is written to --out, defaulting to the project's own report
dataset, or "report.txt" if none is defined.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var cut bool
var samples int
var seed int64
var safety int
var outFile string

func setFlags(c *command.Command) {
	c.Flags().BoolVar(&cut, "cut", false, "")
	c.Flags().IntVar(&samples, "n", 200, "")
	c.Flags().Int64Var(&seed, "seed", 1, "")
	c.Flags().IntVar(&safety, "safety", 2, "")
	c.Flags().StringVar(&outFile, "out", "", "")
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

	ratesFile := p.Path(project.Rates)
	if ratesFile == "" {
		return c.UsageError("project has no fitted rates: run \"estimate\" first")
	}
	lambda, mu, err := readRates(ratesFile)
	if err != nil {
		return err
	}
	applyRates(t, lambda, mu)

	rng := store.Bounds(safety)
	if err := rng.Validate(); err != nil {
		return err
	}

	lc := logchoose.New(2 * rng.Max)
	cache := matrixcache.New(lc, rng.Max)
	if err := t.ApplyMatrices(cache); err != nil {
		return err
	}

	pr, err := prior.Empirical(store, rng.Max)
	if err != nil {
		return err
	}

	name := outFile
	if name == "" {
		name = p.Path(project.Report)
	}
	if name == "" {
		name = "report.txt"
	}
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()
	bw := bufio.NewWriter(out)

	fmt.Fprintf(bw, "# cafego report\n")
	fmt.Fprintf(bw, "# generated on: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(bw, "# rates file: %s\n", ratesFile)
	for g := range lambda {
		fmt.Fprintf(bw, "# group %d: lambda=%v mu=%v\n", g, lambda[g], mu[g])
	}
	fmt.Fprintf(bw, "\n")

	rnd := rand.New(rand.NewSource(seed))
	for i := 0; i < store.Len(); i++ {
		fam := store.At(i)
		res, err := posterior.Evaluate(t, store, fam, rng, pr, samples, rnd)
		if err != nil {
			return fmt.Errorf("family %q: %w", fam.ID, err)
		}
		m, err := posterior.ViterbiMAP(t, store, fam, rng)
		if err != nil {
			return fmt.Errorf("family %q: %w", fam.ID, err)
		}

		fmt.Fprintf(bw, "family\t%s\tpvalue\t%.6f\n", fam.ID, res.PValue)
		fmt.Fprintf(bw, "map")
		for _, n := range t.Nodes() {
			fmt.Fprintf(bw, "\t%d:%d", n.ID, m.Size[n.ID])
		}
		fmt.Fprintf(bw, "\n")

		if cut {
			fmt.Fprintf(bw, "cut")
			for _, n := range t.Nodes() {
				if t.IsRoot(n.ID) || n.IsLeafNode {
					continue
				}
				cutP, err := posterior.CutPValue(t, store, fam, n.ID, rng, samples, rnd)
				if err != nil {
					return fmt.Errorf("family %q, node %d: %w", fam.ID, n.ID, err)
				}
				fmt.Fprintf(bw, "\t%d:%.6f", n.ID, cutP)
			}
			fmt.Fprintf(bw, "\n")
		}
	}
	return bw.Flush()
}

// readRates reads the tab-delimited "group\tlambda\tmu" file written
// by the estimate command, with "mu" either a number or the literal
// "same" for the SameAsBirth sentinel.
func readRates(name string) (lambda, mu []float64, err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(string(data), "\n")
	for ln, line := range lines {
		line = strings.TrimRight(line, "\r")
		if ln == 0 || line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, nil, fmt.Errorf("on file %q: line %d: want 3 fields, got %d", name, ln+1, len(fields))
		}
		l, pErr := strconv.ParseFloat(fields[1], 64)
		if pErr != nil {
			return nil, nil, fmt.Errorf("on file %q: line %d: lambda: %v", name, ln+1, pErr)
		}
		var m float64
		if fields[2] == "same" {
			m = birthdeath.SameAsBirth
		} else {
			m, pErr = strconv.ParseFloat(fields[2], 64)
			if pErr != nil {
				return nil, nil, fmt.Errorf("on file %q: line %d: mu: %v", name, ln+1, pErr)
			}
		}
		lambda = append(lambda, l)
		mu = append(mu, m)
	}
	if len(lambda) == 0 {
		return nil, nil, fmt.Errorf("on file %q: no rate rows found", name)
	}
	return lambda, mu, nil
}

func applyRates(t *phylotree.Tree, lambda, mu []float64) {
	for _, n := range t.Nodes() {
		if t.IsRoot(n.ID) {
			continue
		}
		g := n.TaxonGroup
		if g < 0 || g >= len(lambda) {
			g = 0
		}
		n.Lambda = lambda[g]
		n.Mu = mu[g]
	}
}
