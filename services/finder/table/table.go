// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package table flattens a decision graph into the lookup the executor
// consults: signature -> (value, data).
//
// For terminal entries (value 0) data is the witness assignment; otherwise
// it names the comparison to issue next. A Table is immutable once built
// and is safe to share between any number of concurrent executors.
package table

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/graph"
	"github.com/AleutianAI/threeones/services/finder/position"
)

var (
	// ErrInvalidTable wraps every validation failure.
	ErrInvalidTable = errors.New("invalid decision table")

	// ErrMissingStart is returned when a table has no entry for the
	// initial position.
	ErrMissingStart = errors.New("decision table has no start entry")
)

// Entry is one table row.
type Entry struct {
	// Value is the worst-case number of comparisons still needed.
	Value int

	// Witness is set when Value is 0: how many elements of each
	// undetermined class size are ones.
	Witness position.Delta

	// Comparison is set when Value is positive.
	Comparison catalogue.ID
}

// Terminal reports whether the entry fully determines the answer.
func (e Entry) Terminal() bool {
	return e.Value == 0
}

// Labels returns the two class kinds the entry's comparison draws from.
func (e Entry) Labels() (catalogue.Label, catalogue.Label) {
	c := catalogue.Get(e.Comparison)
	return c.Left, c.Right
}

// Data renders the entry's data in the logical table format:
// a witness tuple or a quoted label pair.
func (e Entry) Data() string {
	if e.Terminal() {
		return e.Witness.String()
	}
	l, r := e.Labels()
	return fmt.Sprintf("('%s', '%s')", l, r)
}

// Table maps position signatures to entries.
type Table struct {
	n       int
	entries map[uint64]Entry
}

// FromGraph flattens every node of g into a table.
func FromGraph(g *graph.Graph) *Table {
	t := &Table{
		n:       g.N(),
		entries: make(map[uint64]Entry, g.Len()),
	}
	for _, node := range g.Nodes {
		e := Entry{Value: node.Value}
		if node.Terminal {
			e.Witness = node.Witness
		} else {
			e.Comparison = node.Choice().Comparison
		}
		t.entries[node.Position.Signature()] = e
	}
	return t
}

// FromEntries assembles a table from decoded rows, as loaded from storage
// or a text dump.
func FromEntries(n int, rows map[position.Position]Entry) (*Table, error) {
	if n < position.Target || n > position.MaxN {
		return nil, fmt.Errorf("%w: %d", graph.ErrInvalidSize, n)
	}
	t := &Table{
		n:       n,
		entries: make(map[uint64]Entry, len(rows)),
	}
	for p, e := range rows {
		if !p.Valid() || p.Total() != n {
			return nil, fmt.Errorf("%w: position %s does not describe %d elements", ErrInvalidTable, p, n)
		}
		t.entries[p.Signature()] = e
	}
	if _, ok := t.entries[position.Start(n).Signature()]; !ok {
		return nil, ErrMissingStart
	}
	return t, nil
}

// Build constructs the decision graph for n elements and flattens it.
//
// Inputs:
//
//	ctx - Cancels the graph build.
//	n - Instance size.
//	opts - Builder options (shared oracle, logger).
//
// Outputs:
//
//	*Table - The complete table.
//	graph.Stats - Statistics from the underlying build.
//	error - Non-nil if n is out of range or ctx was cancelled.
func Build(ctx context.Context, n int, opts ...graph.Option) (*Table, graph.Stats, error) {
	g, err := graph.NewBuilder(opts...).Build(ctx, n)
	if err != nil {
		return nil, graph.Stats{}, err
	}
	return FromGraph(g), g.Stats(), nil
}

// N returns the instance size.
func (t *Table) N() int {
	return t.n
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the entry for a position.
func (t *Table) Lookup(p position.Position) (Entry, bool) {
	e, ok := t.entries[p.Signature()]
	return e, ok
}

// LookupSignature returns the entry for a packed signature.
func (t *Table) LookupSignature(sig uint64) (Entry, bool) {
	e, ok := t.entries[sig]
	return e, ok
}

// Start returns the entry for the initial position. Tables built by this
// package always have one.
func (t *Table) Start() Entry {
	return t.entries[position.Start(t.n).Signature()]
}

// Each yields every entry ordered by decreasing number of undetermined
// classes, then by signature. The start position comes first.
func (t *Table) Each(yield func(position.Position, Entry) bool) {
	sigs := make([]uint64, 0, len(t.entries))
	for sig := range t.entries {
		sigs = append(sigs, sig)
	}
	slices.SortFunc(sigs, func(a, b uint64) int {
		pa, pb := position.DecodeSignature(a), position.DecodeSignature(b)
		if c := cmp.Compare(pb.Components(), pa.Components()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, sig := range sigs {
		if !yield(position.DecodeSignature(sig), t.entries[sig]) {
			return
		}
	}
}

// Summary is a short description of a table for logs and APIs.
type Summary struct {
	N         int `json:"n"`
	Entries   int `json:"entries"`
	Terminals int `json:"terminals"`
	Value     int `json:"value"`
}

// Summary counts the table's entries.
func (t *Table) Summary() Summary {
	s := Summary{N: t.n, Entries: len(t.entries), Value: t.Start().Value}
	for _, e := range t.entries {
		if e.Terminal() {
			s.Terminals++
		}
	}
	return s
}

// LogValue implements slog.LogValuer.
func (t *Table) LogValue() slog.Value {
	s := t.Summary()
	return slog.GroupValue(
		slog.Int("n", s.N),
		slog.Int("entries", s.Entries),
		slog.Int("terminals", s.Terminals),
		slog.Int("value", s.Value),
	)
}
