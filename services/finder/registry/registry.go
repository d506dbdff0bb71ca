// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry hands out decision tables by instance size.
//
// A table is looked up in memory first, then in the persistent store, and
// is built from scratch only when neither has it. Concurrent requests for
// the same size share one load through a singleflight group.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/threeones/services/finder/graph"
	"github.com/AleutianAI/threeones/services/finder/oracle"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/store"
	"github.com/AleutianAI/threeones/services/finder/table"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

// Source says where a table came from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceStore  Source = "store"
	SourceBuild  Source = "build"
)

// TableStore is the persistence the registry needs. *store.Store
// implements it.
type TableStore interface {
	LoadTable(ctx context.Context, n int) (*table.Table, store.Meta, error)
	SaveTable(ctx context.Context, t *table.Table) (store.Meta, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore persists built tables and loads stored ones.
func WithStore(s TableStore) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records builds and loads on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// Registry caches one table per instance size.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[int]*table.Table
	group  singleflight.Group

	// buildMu guards oracle, which every build and validation shares.
	buildMu sync.Mutex
	oracle  *oracle.Oracle

	store   TableStore
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tables: make(map[int]*table.Table),
		oracle: oracle.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the table for n, loading or building it if needed.
//
// Inputs:
//
//	ctx - Cancelling it abandons the wait; a load already in flight keeps
//	  running for other callers.
//	n - Instance size.
//
// Outputs:
//
//	*table.Table - The validated table.
//	Source - Where it came from on this call.
//	error - graph.ErrInvalidSize, a build failure, or the context error.
func (r *Registry) Table(ctx context.Context, n int) (*table.Table, Source, error) {
	if n < position.Target || n > position.MaxN {
		return nil, "", fmt.Errorf("%w: %d", graph.ErrInvalidSize, n)
	}
	if t, ok := r.cached(n); ok {
		r.metrics.RecordTableLoad(ctx, n, string(SourceMemory))
		return t, SourceMemory, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.Itoa(n), func() (any, error) {
		return r.load(shared, n)
	})
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, "", res.Err
		}
		l := res.Val.(loaded)
		return l.table, l.source, nil
	}
}

// Preload makes sure tables for all sizes are ready.
func (r *Registry) Preload(ctx context.Context, sizes ...int) error {
	for _, n := range sizes {
		if _, _, err := r.Table(ctx, n); err != nil {
			return fmt.Errorf("preload n=%d: %w", n, err)
		}
	}
	return nil
}

// Sizes returns the sizes currently held in memory.
func (r *Registry) Sizes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sizes := make([]int, 0, len(r.tables))
	for n := range r.tables {
		sizes = append(sizes, n)
	}
	return sizes
}

func (r *Registry) cached(n int) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[n]
	return t, ok
}

type loaded struct {
	table  *table.Table
	source Source
}

func (r *Registry) load(ctx context.Context, n int) (loaded, error) {
	if t, ok := r.cached(n); ok {
		return loaded{t, SourceMemory}, nil
	}

	l, err := r.loadStored(ctx, n)
	if err != nil {
		return loaded{}, err
	}
	if l.table == nil {
		if l, err = r.build(ctx, n); err != nil {
			return loaded{}, err
		}
	}

	r.mu.Lock()
	r.tables[n] = l.table
	r.mu.Unlock()
	r.metrics.RecordTableLoad(ctx, n, string(l.source))
	return l, nil
}

// loadStored returns a zero loaded value when the store has no usable
// table. A stored table that fails validation is logged and rebuilt.
func (r *Registry) loadStored(ctx context.Context, n int) (loaded, error) {
	if r.store == nil {
		return loaded{}, nil
	}
	t, meta, err := r.store.LoadTable(ctx, n)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return loaded{}, nil
	case errors.Is(err, store.ErrCorrupt):
		r.logger.Warn("stored table is corrupt, rebuilding", slog.Int("n", n), slog.String("error", err.Error()))
		return loaded{}, nil
	case err != nil:
		return loaded{}, fmt.Errorf("load table %d: %w", n, err)
	}

	if err := r.validate(t); err != nil {
		r.logger.Warn("stored table failed validation, rebuilding", slog.Int("n", n), slog.String("error", err.Error()))
		return loaded{}, nil
	}
	r.logger.Info("table loaded", slog.Int("n", n), slog.Int("entries", meta.Entries), slog.Time("saved_at", meta.SavedAt))
	return loaded{t, SourceStore}, nil
}

func (r *Registry) build(ctx context.Context, n int) (loaded, error) {
	r.buildMu.Lock()
	began := time.Now()
	t, stats, err := table.Build(ctx, n, graph.WithOracle(r.oracle), graph.WithLogger(r.logger))
	if err == nil {
		err = t.Validate(r.oracle)
	}
	r.buildMu.Unlock()

	r.metrics.RecordBuild(ctx, n, stats.Nodes, time.Since(began), err)
	if err != nil {
		return loaded{}, fmt.Errorf("build table %d: %w", n, err)
	}
	r.logger.Info("table built", slog.Int("n", n), slog.Int("nodes", stats.Nodes), slog.Duration("elapsed", time.Since(began)))

	if r.store != nil {
		if _, err := r.store.SaveTable(ctx, t); err != nil {
			r.logger.Warn("failed to save table", slog.Int("n", n), slog.String("error", err.Error()))
		}
	}
	return loaded{t, SourceBuild}, nil
}

func (r *Registry) validate(t *table.Table) error {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	return t.Validate(r.oracle)
}
