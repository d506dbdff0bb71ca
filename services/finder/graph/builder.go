// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/oracle"
	"github.com/AleutianAI/threeones/services/finder/position"
)

// cancelCheckInterval is how many worklist iterations run between context
// checks.
const cancelCheckInterval = 4096

// Option configures a Builder.
type Option func(*Builder)

// WithOracle shares an existing oracle cache with the builder.
func WithOracle(o *oracle.Oracle) Option {
	return func(b *Builder) {
		b.oracle = o
	}
}

// WithLogger sets the logger for build progress. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// Builder constructs decision graphs.
//
// Thread Safety: A Builder is NOT safe for concurrent use; its oracle cache
// is unsynchronised. The Graph it returns is immutable and may be shared.
type Builder struct {
	oracle *oracle.Oracle
	logger *slog.Logger
}

// NewBuilder creates a Builder with a fresh oracle unless one is supplied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.oracle == nil {
		b.oracle = oracle.New()
	}
	return b
}

// Oracle returns the builder's consistency oracle.
func (b *Builder) Oracle() *oracle.Oracle {
	return b.oracle
}

type frame struct {
	pos      position.Position
	expanded bool
}

// Build computes the decision graph for n elements.
//
// Description:
//
//	Runs a depth-first post-order traversal over legal positions using an
//	explicit worklist, so depth is bounded by memory rather than by the
//	goroutine stack. Every child is evaluated before its parent because
//	the graph is acyclic.
//
// Inputs:
//
//	ctx - Cancellation is checked periodically.
//	n - Number of elements, within [position.Target, position.MaxN].
//
// Outputs:
//
//	*Graph - The complete graph.
//	error - ErrInvalidSize, or the context error on cancellation.
//
// Panics if a legal non-terminal position has no comparison with a legal
// outcome; that means the catalogue or pruning is incomplete.
func (b *Builder) Build(ctx context.Context, n int) (*Graph, error) {
	if n < position.Target || n > position.MaxN {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	began := time.Now()

	g := &Graph{
		n:     n,
		index: make(map[position.Position]NodeID),
	}
	start := position.Start(n)
	stack := []frame{{pos: start}}

	for iter := 0; len(stack) > 0; iter++ {
		if iter%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("build cancelled after %d nodes: %w", len(g.nodes), err)
			}
		}

		top := len(stack) - 1
		pos := stack[top].pos
		if _, done := g.index[pos]; done {
			stack = stack[:top]
			continue
		}

		if b.oracle.Determined(pos) {
			stack = stack[:top]
			b.addTerminal(g, pos)
			continue
		}

		if !stack[top].expanded {
			stack[top].expanded = true
			for _, c := range catalogue.All() {
				if !c.Applicable(pos) {
					continue
				}
				for _, o := range c.Outcomes {
					next := pos.Add(o.Delta)
					if _, done := g.index[next]; done || !b.oracle.Legal(next) {
						continue
					}
					stack = append(stack, frame{pos: next})
				}
			}
			continue
		}

		stack = stack[:top]
		b.addDecision(g, pos)
	}

	g.start = g.index[start]
	g.stats.Value = g.nodes[g.start].Value
	g.stats.Duration = time.Since(began)

	if b.logger != nil {
		ostats := b.oracle.Stats()
		b.logger.Info("decision graph built",
			slog.Int("n", n),
			slog.Int("nodes", g.stats.Nodes),
			slog.Int("terminals", g.stats.Terminals),
			slog.Int("edges", g.stats.Edges),
			slog.Int("value", g.stats.Value),
			slog.Int("oracle_entries", ostats.CountEntries+ostats.WitnessEntries),
			slog.Duration("duration", g.stats.Duration),
		)
	}
	return g, nil
}

func (b *Builder) addTerminal(g *Graph, pos position.Position) {
	witness, ok := b.oracle.Assignment(pos)
	if !ok {
		panic(fmt.Sprintf("graph: determined position %s has no witness", pos))
	}
	g.index[pos] = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		Position: pos,
		Terminal: true,
		Witness:  witness,
	})
	g.stats.Nodes++
	g.stats.Terminals++
}

// addDecision evaluates a non-terminal position whose legal children are
// all in the arena.
func (b *Builder) addDecision(g *Graph, pos position.Position) {
	var edges []ComparisonEdge
	for i, c := range catalogue.All() {
		if !c.Applicable(pos) {
			continue
		}
		var outcomes []OutcomeEdge
		for _, o := range c.Outcomes {
			next := pos.Add(o.Delta)
			if !b.oracle.Legal(next) {
				continue
			}
			child, ok := g.index[next]
			if !ok {
				panic(fmt.Sprintf("graph: child %s of %s evaluated out of order", next, pos))
			}
			outcomes = append(outcomes, OutcomeEdge{Result: o.Result, Child: child})
		}
		if len(outcomes) == 0 {
			continue
		}
		sortOutcomes(g, outcomes)
		edges = append(edges, ComparisonEdge{Comparison: catalogue.ID(i), Outcomes: outcomes})
		g.stats.Edges += len(outcomes)
	}
	if len(edges) == 0 {
		panic(fmt.Sprintf("graph: legal position %s has no comparison with a legal outcome", pos))
	}
	sortComparisons(g, edges)

	worst := g.nodes[edges[0].Worst().Child].Value
	g.index[pos] = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		Position: pos,
		Value:    1 + worst,
		Edges:    edges,
	})
	g.stats.Nodes++
}
