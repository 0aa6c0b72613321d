// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package simplex wraps gonum's derivative-free Nelder-Mead minimizer
// behind the restart contract of spec.md §4.6: an initial simplex
// built from the caller's point, standard reflection/expansion/
// contraction/shrink coefficients, and repeated restarts from
// randomized starting points up to a run budget, keeping the best
// score and stopping early once two successive runs agree within a
// function-value tolerance.
package simplex

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/js-arias/cafego/bdkind"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Objective is the scalar cost function the search drives to a
// minimum. It must return +Inf (never panic or return NaN) on any
// invalid or numerically degenerate parameter vector, per spec.md
// §4.4/§4.5's numerical policy.
type Objective func(x []float64) float64

// Options configures a restart-aware Nelder-Mead search.
type Options struct {
	// TolX and TolF are the simplex-diameter and function-spread
	// tolerances spec.md §4.6 names. Convergence across restarts is
	// declared once two successive runs' best points and scores both
	// land within these tolerances of each other.
	TolX, TolF float64

	// MaxIter bounds each individual Nelder-Mead run's major
	// iterations.
	MaxIter int

	// MaxRuns bounds the number of restarts; spec.md §4.6 defaults
	// this to 100.
	MaxRuns int

	// Rand supplies randomness for restart perturbations. A nil value
	// uses a new source seeded with 1, so the search is deterministic
	// either way; callers that want a different sequence supply their
	// own.
	Rand *rand.Rand
}

// Result is the best point found across every restart.
type Result struct {
	X         []float64
	F         float64
	Runs      int
	Converged bool
}

// Minimize runs Nelder-Mead from x0 with the standard coefficients
// (reflection 1, expansion 2, contraction 0.5, shrink 0.5), then
// restarts from points perturbed around the best-so-far point, up to
// opts.MaxRuns times. If the run budget is exhausted without two
// successive runs agreeing within tolerance, Minimize returns the
// best-so-far result alongside a *bdkind.ConvergenceFailure, per
// spec.md §7's policy of reporting non-convergence without discarding
// the search's progress.
func Minimize(obj Objective, x0 []float64, opts Options) (*Result, error) {
	if len(x0) == 0 {
		return nil, fmt.Errorf("simplex: empty starting point")
	}
	maxRuns := opts.MaxRuns
	if maxRuns < 1 {
		maxRuns = 100
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	p := optimize.Problem{Func: func(x []float64) float64 { return obj(x) }}
	method := &optimize.NelderMead{
		Reflection:  1,
		Expansion:   2,
		Contraction: 0.5,
		Shrink:      0.5,
	}
	settings := &optimize.Settings{MajorIterations: opts.MaxIter}

	best := &Result{X: append([]float64(nil), x0...), F: math.Inf(1)}
	start := append([]float64(nil), x0...)

	var prevX []float64
	var prevF float64
	havePrev := false

	for run := 0; run < maxRuns; run++ {
		res, err := optimize.Minimize(p, start, settings, method)
		f := math.Inf(1)
		var x []float64
		if res != nil {
			f = res.F
			x = res.X
		} else if err != nil {
			return nil, fmt.Errorf("simplex: run %d: %w", run, err)
		}

		best.Runs++
		if f < best.F {
			best.F = f
			best.X = append([]float64(nil), x...)
		}

		if havePrev && agrees(x, f, prevX, prevF, opts.TolX, opts.TolF) {
			best.Converged = true
			return best, nil
		}
		prevX, prevF, havePrev = x, f, true
		start = perturb(best.X, rng)
	}

	return best, &bdkind.ConvergenceFailure{Iterations: best.Runs}
}

func agrees(x []float64, f float64, prevX []float64, prevF float64, tolX, tolF float64) bool {
	if math.Abs(f-prevF) >= tolF {
		return false
	}
	if len(x) != len(prevX) {
		return false
	}
	diff := make([]float64, len(x))
	for i := range x {
		diff[i] = x[i] - prevX[i]
	}
	return floats.Norm(diff, 2) < tolX
}

// perturb builds a new starting point to seed a restart by offsetting
// every coordinate at once by a random amount of up to 10% of its own
// magnitude (or up to 0.1 for a zero coordinate).
func perturb(x []float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		scale := math.Abs(v)
		if scale == 0 {
			scale = 1
		}
		out[i] = v + (rng.Float64()*2-1)*0.1*scale
	}
	return out
}
