// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs the decision table against a live comparator.
//
// A Partition tracks which elements have been proven equal and which are
// confirmed 0 or 1. Each step reduces the partition to a position, looks
// it up in the table and issues the comparison the table names, until the
// table reports the position terminal.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/table"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

var (
	// ErrNilComparator is returned when Solve is given no comparator.
	ErrNilComparator = errors.New("nil comparator")

	// ErrSizeMismatch is returned when an input's length differs from the
	// table's instance size.
	ErrSizeMismatch = errors.New("input size does not match table")

	// ErrNilTable is returned by New without a table.
	ErrNilTable = errors.New("nil decision table")
)

// Comparator compares the hidden values at positions i and j. Only the
// sign of the result is used.
type Comparator func(i, j int) int

// Step records one issued comparison.
type Step struct {
	Position   position.Position `json:"position"`
	Comparison string            `json:"comparison"`
	Left       int               `json:"left"`
	Right      int               `json:"right"`
	Result     int               `json:"result"`
}

// Solution is the outcome of one executor run.
type Solution struct {
	Ones        [position.Target]int `json:"ones"`
	Comparisons int                  `json:"comparisons"`
	Steps       []Step               `json:"steps,omitempty"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Each step is logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records solves on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSteps makes Solve keep the full list of steps in each Solution.
func WithSteps() Option {
	return func(e *Executor) {
		e.keepSteps = true
	}
}

// Executor drives one decision table. It holds no per-run state, so one
// Executor may serve any number of concurrent Solve calls.
type Executor struct {
	table     *table.Table
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	keepSteps bool
}

// New creates an executor over tbl.
func New(tbl *table.Table, opts ...Option) (*Executor, error) {
	if tbl == nil {
		return nil, ErrNilTable
	}
	e := &Executor{
		table:  tbl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// N returns the instance size the executor solves.
func (e *Executor) N() int {
	return e.table.N()
}

// Solve finds the three ones using compare.
//
// Description:
//
//	Starts from n singleton classes and repeats: derive the position, look
//	it up, and either read off the answer (terminal entry) or issue the
//	prescribed comparison between representatives of two distinct classes.
//
// Inputs:
//
//	ctx - Checked between comparisons.
//	compare - The comparator. Must describe an input with exactly three ones.
//
// Outputs:
//
//	Solution - The three indices in ascending order and the comparison count.
//	error - ErrNilComparator, ErrInconsistent if answers contradict each
//	other, or the context error.
//
// Thread Safety: Safe for concurrent use; each call owns its partition.
//
// Panics if the table prescribes a redundant comparison or a comparison
// that leaves the position unchanged.
func (e *Executor) Solve(ctx context.Context, compare Comparator) (Solution, error) {
	if compare == nil {
		return Solution{}, ErrNilComparator
	}
	n := e.table.N()
	ctx, span := telemetry.StartSpan(ctx, "Executor.Solve", trace.WithAttributes(attribute.Int("n", n)))
	defer span.End()

	sol, err := e.run(ctx, n, compare)
	if errors.Is(err, ErrInconsistent) {
		e.metrics.RecordInconsistent(ctx, n)
	}
	e.metrics.RecordSolve(ctx, n, sol.Comparisons, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return sol, err
	}
	span.SetAttributes(attribute.Int("comparisons", sol.Comparisons))
	e.logger.Debug("solved",
		slog.Int("n", n),
		slog.Any("ones", sol.Ones),
		slog.Int("comparisons", sol.Comparisons),
	)
	return sol, nil
}

func (e *Executor) run(ctx context.Context, n int, compare Comparator) (Solution, error) {
	part := NewPartition(n)
	var sol Solution
	for {
		if err := ctx.Err(); err != nil {
			return sol, fmt.Errorf("solve cancelled after %d comparisons: %w", sol.Comparisons, err)
		}
		pos := part.Signature()
		entry, ok := e.table.Lookup(pos)
		if !ok {
			// Only contradictory answers lead off the table.
			return sol, fmt.Errorf("%w: reached unreachable position %s", ErrInconsistent, pos)
		}
		if entry.Terminal() {
			sol.Ones = part.Solution(entry.Witness)
			return sol, nil
		}

		c := catalogue.Get(entry.Comparison)
		i, j := part.Representatives(c)
		if part.Same(i, j) {
			panic(fmt.Sprintf("executor: %s at %s picked %d and %d from one class", c.Name, pos, i, j))
		}
		result := sign(compare(i, j))
		sol.Comparisons++
		if e.keepSteps {
			sol.Steps = append(sol.Steps, Step{Position: pos, Comparison: c.Name, Left: i, Right: j, Result: result})
		}
		e.logger.Debug("comparison",
			slog.String("position", pos.String()),
			slog.String("comparison", c.Name),
			slog.Int("left", i),
			slog.Int("right", j),
			slog.Int("result", result),
		)

		if err := part.Register(i, j, result); err != nil {
			return sol, err
		}
		if next := part.Signature(); next == pos {
			panic(fmt.Sprintf("executor: %s with result %d left position %s unchanged", c.Name, result, pos))
		}
	}
}

// SolveValues solves an explicit 0/1 input, using it as the comparator.
func (e *Executor) SolveValues(ctx context.Context, values []int) (Solution, error) {
	if len(values) != e.table.N() {
		return Solution{}, fmt.Errorf("%w: got %d values, table has n=%d", ErrSizeMismatch, len(values), e.table.N())
	}
	return e.Solve(ctx, ValuesComparator(values))
}

// ValuesComparator compares entries of values.
func ValuesComparator(values []int) Comparator {
	return func(i, j int) int {
		return sign(values[i] - values[j])
	}
}

// FindThreeOnes builds a table for n elements with fresh caches and
// returns the indices of the three ones in ascending order.
func FindThreeOnes(n int, compare Comparator) ([position.Target]int, error) {
	if compare == nil {
		return [position.Target]int{}, ErrNilComparator
	}
	ctx := context.Background()
	tbl, _, err := table.Build(ctx, n)
	if err != nil {
		return [position.Target]int{}, fmt.Errorf("build table: %w", err)
	}
	e, err := New(tbl)
	if err != nil {
		return [position.Target]int{}, err
	}
	sol, err := e.Solve(ctx, compare)
	if err != nil {
		return [position.Target]int{}, err
	}
	return sol.Ones, nil
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}
