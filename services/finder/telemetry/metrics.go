// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for finder metrics.
const MeterName = "threeones.finder"

// Metrics contains the finder's instruments.
//
// Description:
//
//	Counters and histograms for table builds, solves and verification
//	runs. All metrics use the "threeones_" prefix. The Record helpers
//	accept a nil *Metrics and do nothing, so components can run without
//	telemetry.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Build Metrics ---

	// BuildsTotal counts decision table builds by n and status.
	BuildsTotal metric.Int64Counter

	// BuildDuration records build duration in seconds.
	BuildDuration metric.Float64Histogram

	// BuildNodes records the node count of each built graph.
	BuildNodes metric.Int64Histogram

	// --- Solve Metrics ---

	// SolvesTotal counts executor runs by n and status.
	SolvesTotal metric.Int64Counter

	// SolveComparisons records comparisons issued per solve.
	SolveComparisons metric.Int64Histogram

	// InconsistentTotal counts solves aborted by contradictory comparator
	// answers.
	InconsistentTotal metric.Int64Counter

	// --- Verify Metrics ---

	// VerifyCasesTotal counts inputs driven through a solver by outcome.
	VerifyCasesTotal metric.Int64Counter

	// --- Table Store Metrics ---

	// TableLoadsTotal counts registry lookups by source (memory, store, build).
	TableLoadsTotal metric.Int64Counter
}

// NewMetrics registers the finder instruments with meter.
//
// Inputs:
//
//	meter - The OTel meter to register with.
//
// Outputs:
//
//	*Metrics - The registered instruments.
//	error - Non-nil if any registration fails.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.MeterName))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.BuildsTotal, err = meter.Int64Counter(
		"threeones_builds_total",
		metric.WithDescription("Total decision table builds"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create builds_total: %w", err)
	}

	m.BuildDuration, err = meter.Float64Histogram(
		"threeones_build_duration_seconds",
		metric.WithDescription("Decision table build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create build_duration: %w", err)
	}

	m.BuildNodes, err = meter.Int64Histogram(
		"threeones_build_nodes",
		metric.WithDescription("Decision graph nodes per build"),
		metric.WithUnit("{node}"),
		metric.WithExplicitBucketBoundaries(10, 100, 1000, 10000, 100000, 1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("create build_nodes: %w", err)
	}

	m.SolvesTotal, err = meter.Int64Counter(
		"threeones_solves_total",
		metric.WithDescription("Total executor runs"),
		metric.WithUnit("{solve}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create solves_total: %w", err)
	}

	m.SolveComparisons, err = meter.Int64Histogram(
		"threeones_solve_comparisons",
		metric.WithDescription("Comparisons issued per solve"),
		metric.WithUnit("{comparison}"),
		metric.WithExplicitBucketBoundaries(0, 2, 4, 8, 12, 16, 20, 24, 32, 48),
	)
	if err != nil {
		return nil, fmt.Errorf("create solve_comparisons: %w", err)
	}

	m.InconsistentTotal, err = meter.Int64Counter(
		"threeones_inconsistent_total",
		metric.WithDescription("Solves aborted by contradictory comparator answers"),
		metric.WithUnit("{solve}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inconsistent_total: %w", err)
	}

	m.VerifyCasesTotal, err = meter.Int64Counter(
		"threeones_verify_cases_total",
		metric.WithDescription("Inputs checked by the verification harness"),
		metric.WithUnit("{case}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create verify_cases_total: %w", err)
	}

	m.TableLoadsTotal, err = meter.Int64Counter(
		"threeones_table_loads_total",
		metric.WithDescription("Decision table lookups by source"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create table_loads_total: %w", err)
	}

	return m, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild records one decision table build.
func (m *Metrics) RecordBuild(ctx context.Context, n, nodes int, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("n", n), attribute.String("status", statusOf(err)))
	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, d.Seconds(), attrs)
	if err == nil {
		m.BuildNodes.Record(ctx, int64(nodes), metric.WithAttributes(attribute.Int("n", n)))
	}
}

// RecordSolve records one executor run.
func (m *Metrics) RecordSolve(ctx context.Context, n, comparisons int, err error) {
	if m == nil {
		return
	}
	m.SolvesTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("n", n), attribute.String("status", statusOf(err))))
	if err == nil {
		m.SolveComparisons.Record(ctx, int64(comparisons), metric.WithAttributes(attribute.Int("n", n)))
	}
}

// RecordInconsistent records a solve aborted by contradictory answers.
func (m *Metrics) RecordInconsistent(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.InconsistentTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("n", n)))
}

// RecordVerifyCases records a batch of checked inputs.
func (m *Metrics) RecordVerifyCases(ctx context.Context, solver string, cases int, failed bool) {
	if m == nil {
		return
	}
	outcome := "pass"
	if failed {
		outcome = "fail"
	}
	m.VerifyCasesTotal.Add(ctx, int64(cases), metric.WithAttributes(
		attribute.String("solver", solver),
		attribute.String("outcome", outcome),
	))
}

// RecordTableLoad records where a registry lookup found its table.
func (m *Metrics) RecordTableLoad(ctx context.Context, n int, source string) {
	if m == nil {
		return
	}
	m.TableLoadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("n", n), attribute.String("source", source)))
}
