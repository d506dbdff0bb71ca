// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package heuristic is a hand-written, table-free procedure for finding
// the three ones. It serves as a baseline for the decision table.
//
// Elements are laid out as pairs followed by triples. Comparing each
// group's members against its first member exposes every group that holds
// both values. Whatever ones remain hidden sit in a single all-ones group,
// found by comparing first members of the candidate groups two at a time.
package heuristic

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AleutianAI/threeones/services/finder/executor"
	"github.com/AleutianAI/threeones/services/finder/graph"
	"github.com/AleutianAI/threeones/services/finder/position"
)

// Layout is the grouping of n elements: Pairs pairs, then Triples triples.
type Layout struct {
	Pairs   int `json:"pairs"`
	Triples int `json:"triples"`
}

// LayoutFor groups n elements. About three fifths go into triples, and
// the rest, an even count, into pairs; 100 elements make 20 of each.
func LayoutFor(n int) (Layout, error) {
	if n < position.Target || n > position.MaxN {
		return Layout{}, fmt.Errorf("%w: %d", graph.ErrInvalidSize, n)
	}
	if n == position.Target {
		return Layout{Triples: 1}, nil
	}
	triples := n / 5
	rest := n - 3*triples
	if rest%2 != 0 {
		triples--
		rest += 3
	}
	return Layout{Pairs: rest / 2, Triples: triples}, nil
}

// Groups returns the element indices of each pair and each triple.
func (l Layout) Groups() (pairs, triples [][]int) {
	next := 0
	take := func(k int) []int {
		g := make([]int, k)
		for i := range g {
			g[i] = next
			next++
		}
		return g
	}
	for range l.Pairs {
		pairs = append(pairs, take(2))
	}
	for range l.Triples {
		triples = append(triples, take(3))
	}
	return pairs, triples
}

// Solver runs the procedure for one instance size.
type Solver struct {
	n      int
	layout Layout
	logger *slog.Logger
}

// New creates a solver for n elements.
func New(n int, logger *slog.Logger) (*Solver, error) {
	layout, err := LayoutFor(n)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{n: n, layout: layout, logger: logger}, nil
}

// N returns the instance size.
func (s *Solver) N() int {
	return s.n
}

// Layout returns the grouping the solver uses.
func (s *Solver) Layout() Layout {
	return s.layout
}

// Solve finds the three ones. It returns executor.ErrInconsistent when the
// answers do not describe exactly three ones.
func (s *Solver) Solve(ctx context.Context, compare executor.Comparator) (executor.Solution, error) {
	if compare == nil {
		return executor.Solution{}, executor.ErrNilComparator
	}
	var sol executor.Solution
	counted := func(i, j int) int {
		sol.Comparisons++
		return compare(i, j)
	}

	pairs, triples := s.layout.Groups()
	found := mixed(counted, pairs)
	found = append(found, mixed(counted, triples)...)
	if err := ctx.Err(); err != nil {
		return sol, err
	}

	var candidates [][]int
	switch len(found) {
	case 3:
	case 0:
		// One triple is all ones.
		candidates = triples
	case 1:
		// A pair other than the one holding the lone find is all ones.
		for _, g := range pairs {
			if !slices.Contains(g, found[0]) {
				candidates = append(candidates, g)
			}
		}
	default:
		return sol, fmt.Errorf("%w: %d ones in mixed groups", executor.ErrInconsistent, len(found))
	}

	if candidates != nil {
		g, err := allOnes(counted, candidates)
		if err != nil {
			return sol, err
		}
		found = append(found, g...)
	}
	if len(found) != position.Target {
		return sol, fmt.Errorf("%w: found %d ones", executor.ErrInconsistent, len(found))
	}
	slices.Sort(found)
	sol.Ones = [position.Target]int(found)
	s.logger.Debug("heuristic solved", slog.Int("n", s.n), slog.Any("ones", sol.Ones), slog.Int("comparisons", sol.Comparisons))
	return sol, nil
}

// mixed compares every member of each group with the group's first
// member and returns the ones of groups holding both values.
func mixed(compare executor.Comparator, groups [][]int) []int {
	var ones []int
	for _, g := range groups {
		first := g[0]
		var smaller, larger []int
		equal := []int{first}
		for _, j := range g[1:] {
			switch r := compare(j, first); {
			case r < 0:
				smaller = append(smaller, j)
			case r > 0:
				larger = append(larger, j)
			default:
				equal = append(equal, j)
			}
		}
		switch {
		case len(smaller) > 0:
			ones = append(ones, equal...)
		case len(larger) > 0:
			ones = append(ones, larger...)
		}
	}
	return ones
}

// allOnes finds the all-ones group among candidates, every other
// candidate being all zeros.
func allOnes(compare executor.Comparator, candidates [][]int) ([]int, error) {
	firsts := make([][]int, 0, (len(candidates)+1)/2)
	for k := 0; k < len(candidates); k += 2 {
		chunk := []int{candidates[k][0]}
		if k+1 < len(candidates) {
			chunk = append(chunk, candidates[k+1][0])
		}
		firsts = append(firsts, chunk)
	}
	hits := mixed(compare, firsts)
	if len(hits) > 0 {
		for _, g := range candidates {
			if g[0] == hits[0] {
				return g, nil
			}
		}
	}
	if len(candidates)%2 == 1 {
		return candidates[len(candidates)-1], nil
	}
	return nil, fmt.Errorf("%w: no all-ones group", executor.ErrInconsistent)
}
