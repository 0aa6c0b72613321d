// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package simulate implements the "simulate n=..." command: it draws
// forward simulations of family sizes from a project's tree and fitted
// rates, starting at a chosen root size, and writes them as a family
// count file.
package simulate

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/js-arias/cafego/birthdeath"
	"github.com/js-arias/cafego/family"
	"github.com/js-arias/cafego/logchoose"
	"github.com/js-arias/cafego/matrixcache"
	"github.com/js-arias/cafego/phylotree"
	"github.com/js-arias/cafego/project"
	"github.com/js-arias/cafego/simulate"
	"github.com/js-arias/command"
)

var Command = &command.Command{
	Usage: `simulate [--root <int>] [--max <int>] [--seed <int>]
	[--out <file>] <project-file> n=<int>`,
	Short: "simulate gene family counts under the fitted model",
	Long: `
Command simulate draws n forward simulations of family sizes from a
project's tree and fitted rates (see "estimate"), starting at the
given root size (--root, default 2), and writes them as a tab-delimited
family count file, the same format "families load" reads.

The second argument takes the form n=<int>, naming the simulation
count.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var root int
var maxCount int
var seed int64
var outFile string

func setFlags(c *command.Command) {
	c.Flags().IntVar(&root, "root", 2, "")
	c.Flags().IntVar(&maxCount, "max", 50, "")
	c.Flags().Int64Var(&seed, "seed", 1, "")
	c.Flags().StringVar(&outFile, "out", "simulated.tsv", "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 2 {
		return c.UsageError("expecting project file and n=<int>")
	}
	n, err := parseN(args[1])
	if err != nil {
		return c.UsageError(err.Error())
	}

	p, err := project.Read(args[0])
	if err != nil {
		return err
	}
	t, err := p.Tree()
	if err != nil {
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

	lc := logchoose.New(2 * maxCount)
	cache := matrixcache.New(lc, maxCount)
	if err := t.ApplyMatrices(cache); err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(seed))
	species := t.Taxa()
	store := family.NewStore(species)
	for i := 0; i < n; i++ {
		leaves, err := simulate.Simulate(t, root, rnd)
		if err != nil {
			return err
		}
		counts := make([]int, len(species))
		for j, sp := range species {
			counts[j] = leaves[sp]
		}
		fam := &family.Family{
			ID:     fmt.Sprintf("sim%04d", i+1),
			Desc:   "simulated family",
			Counts: counts,
		}
		if err := store.Add(fam); err != nil {
			return err
		}
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	wErr := store.WriteTSV(out)
	out.Close()
	if wErr != nil {
		return wErr
	}
	fmt.Fprintf(c.Stdout(), "%d simulated families written to %q\n", n, outFile)
	return nil
}

func parseN(arg string) (int, error) {
	if !strings.HasPrefix(arg, "n=") {
		return 0, fmt.Errorf("expecting an argument of the form n=<int>, got %q", arg)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "n="))
	if err != nil {
		return 0, fmt.Errorf("invalid n=<int> argument: %v", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("n must be positive, got %d", n)
	}
	return n, nil
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
