// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify drives a solver through every possible input, or a
// random sample of them, and reports worst-case comparison counts.
//
// Each input is a 0/1 array with exactly three ones; the solver sees it
// only through a counting comparator. Inputs are fanned out over a pool
// of workers with errgroup.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/threeones/services/finder/executor"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

// maxFailures bounds the failures kept in a Report.
const maxFailures = 10

// ErrNilSolver is returned by Run without a solver.
var ErrNilSolver = errors.New("nil solver")

// Solver is anything that finds three ones through a comparator. Both
// *executor.Executor and *heuristic.Solver qualify.
type Solver interface {
	N() int
	Solve(ctx context.Context, compare executor.Comparator) (executor.Solution, error)
}

// Options controls a verification run.
type Options struct {
	// Name labels the solver in the report and metrics.
	Name string

	// Workers is the number of concurrent solvers. Zero means GOMAXPROCS.
	Workers int

	// Sample, when positive, checks that many random inputs instead of
	// all C(n, 3).
	Sample int

	// Seed makes sampled runs reproducible.
	Seed uint64

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Failure is one input the solver got wrong.
type Failure struct {
	Ones  [position.Target]int `json:"ones"`
	Got   [position.Target]int `json:"got"`
	Error string               `json:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	Solver         string               `json:"solver"`
	N              int                  `json:"n"`
	Cases          int                  `json:"cases"`
	MaxComparisons int                  `json:"max_comparisons"`
	Worst          [position.Target]int `json:"worst"`
	Histogram      map[int]int          `json:"histogram"`
	Failed         int                  `json:"failed"`
	Failures       []Failure            `json:"failures,omitempty"`
	Duration       time.Duration        `json:"duration"`

	solved bool
}

// OK reports whether every case was solved correctly.
func (r Report) OK() bool {
	return r.Failed == 0
}

// Mean returns the average comparison count.
func (r Report) Mean() float64 {
	if r.Cases == 0 {
		return 0
	}
	total := 0
	for k, v := range r.Histogram {
		total += k * v
	}
	return float64(total) / float64(r.Cases)
}

// Counts returns the histogram keys in ascending order.
func (r Report) Counts() []int {
	return slices.Sorted(maps.Keys(r.Histogram))
}

func (r *Report) add(ones [position.Target]int, comparisons int, sol executor.Solution, err error) {
	r.Cases++
	if err != nil || sol.Ones != ones {
		r.Failed++
		if len(r.Failures) < maxFailures {
			f := Failure{Ones: ones, Got: sol.Ones}
			if err != nil {
				f.Error = err.Error()
			}
			r.Failures = append(r.Failures, f)
		}
		return
	}
	r.Histogram[comparisons]++
	if !r.solved || comparisons > r.MaxComparisons || (comparisons == r.MaxComparisons && less(ones, r.Worst)) {
		r.MaxComparisons = comparisons
		r.Worst = ones
		r.solved = true
	}
}

func (r *Report) merge(o Report) {
	r.Cases += o.Cases
	r.Failed += o.Failed
	for k, v := range o.Histogram {
		r.Histogram[k] += v
	}
	for _, f := range o.Failures {
		if len(r.Failures) < maxFailures {
			r.Failures = append(r.Failures, f)
		}
	}
	if o.solved && (!r.solved || o.MaxComparisons > r.MaxComparisons ||
		(o.MaxComparisons == r.MaxComparisons && less(o.Worst, r.Worst))) {
		r.MaxComparisons = o.MaxComparisons
		r.Worst = o.Worst
		r.solved = true
	}
}

func less(a, b [position.Target]int) bool {
	return slices.Compare(a[:], b[:]) < 0
}

// Run checks s against every input (or a sample) and reports the result.
//
// Inputs:
//
//	ctx - Cancels the run; workers stop between cases.
//	s - The solver under test.
//	opts - Worker count, sampling and instrumentation.
//
// Outputs:
//
//	Report - Counts, worst case, histogram and failures. Wrong answers are
//	reported, not returned as errors.
//	error - ErrNilSolver or the context error.
//
// Thread Safety: s must support concurrent Solve calls.
func Run(ctx context.Context, s Solver, opts Options) (Report, error) {
	if s == nil {
		return Report{}, ErrNilSolver
	}
	n := s.N()
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cases := make(chan [position.Target]int, 4*workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(cases)
		emit := func(c [position.Target]int) bool {
			select {
			case cases <- c:
				return true
			case <-gctx.Done():
				return false
			}
		}
		if opts.Sample > 0 {
			sample(n, opts.Sample, opts.Seed, emit)
		} else {
			enumerate(n, emit)
		}
		return gctx.Err()
	})

	var mu sync.Mutex
	total := Report{Solver: opts.Name, N: n, Histogram: make(map[int]int)}
	for range workers {
		g.Go(func() error {
			local := Report{Histogram: make(map[int]int)}
			values := make([]int, n)
			for ones := range cases {
				for _, i := range ones {
					values[i] = 1
				}
				comparisons := 0
				compare := func(i, j int) int {
					comparisons++
					return values[i] - values[j]
				}
				sol, err := s.Solve(gctx, compare)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				local.add(ones, comparisons, sol, err)
				for _, i := range ones {
					values[i] = 0
				}
			}
			opts.Metrics.RecordVerifyCases(gctx, opts.Name, local.Cases-local.Failed, false)
			opts.Metrics.RecordVerifyCases(gctx, opts.Name, local.Failed, true)
			mu.Lock()
			total.merge(local)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, fmt.Errorf("verify %s n=%d: %w", opts.Name, n, err)
	}
	total.Duration = time.Since(start)
	logger.Info("verification finished",
		slog.String("solver", opts.Name),
		slog.Int("n", n),
		slog.Int("cases", total.Cases),
		slog.Int("max_comparisons", total.MaxComparisons),
		slog.Int("failed", total.Failed),
		slog.Duration("duration", total.Duration),
	)
	return total, nil
}

// enumerate yields every 3-subset of 0..n-1 in lexicographic order.
func enumerate(n int, yield func([position.Target]int) bool) {
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				if !yield([position.Target]int{a, b, c}) {
					return
				}
			}
		}
	}
}

// sample yields count random sorted 3-subsets of 0..n-1.
func sample(n, count int, seed uint64, yield func([position.Target]int) bool) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for range count {
		var pick [position.Target]int
		for k := range pick {
			v := rng.IntN(n)
			for slices.Contains(pick[:k], v) {
				v = rng.IntN(n)
			}
			pick[k] = v
		}
		slices.Sort(pick[:])
		if !yield(pick) {
			return
		}
	}
}

// Choose returns C(n, 3), the number of distinct inputs.
func Choose(n int) int {
	if n < position.Target {
		return 0
	}
	return n * (n - 1) * (n - 2) / 6
}
