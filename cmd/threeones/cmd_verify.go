// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/verify"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		n            int
		useHeuristic bool
		workers      int
		sample       int
		seed         uint64
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a solver against every input (or a random sample)",
		Long: `verify drives the solver against all C(n, 3) inputs, or --sample random ones,
and reports the worst-case and mean comparison counts. It fails if any input
is answered wrongly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n = a.size(n)
			flags := cmd.Flags()
			if !flags.Changed("workers") {
				workers = a.cfg.Verify.Workers
			}
			if !flags.Changed("sample") {
				sample = a.cfg.Verify.Sample
			}
			if !flags.Changed("seed") {
				seed = a.cfg.Verify.Seed
			}

			s, _, err := a.newSolver(cmd, n, useHeuristic, false)
			if err != nil {
				return err
			}
			name := "table"
			if useHeuristic {
				name = "heuristic"
			}

			cases := verify.Choose(n)
			if sample > 0 {
				cases = sample
			}
			spinner := ux.NewSpinner(fmt.Sprintf("Checking %d inputs with the %s solver", cases, name))
			spinner.Start()
			report, err := verify.Run(cmd.Context(), s, verify.Options{
				Name:    name,
				Workers: workers,
				Sample:  sample,
				Seed:    seed,
				Logger:  a.logger.Slog(),
				Metrics: a.metrics,
			})
			spinner.Stop()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(report)
			}
			if !report.OK() {
				return fmt.Errorf("%d of %d inputs answered wrongly", report.Failed, report.Cases)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&n, "n", 0, "instance size (default n from the config)")
	flags.BoolVar(&useHeuristic, "heuristic", false, "verify the pairs and triples heuristic")
	flags.IntVar(&workers, "workers", 0, "concurrent solvers (default verify.workers, 0 = GOMAXPROCS)")
	flags.IntVar(&sample, "sample", 0, "check this many random inputs instead of all")
	flags.Uint64Var(&seed, "seed", 1, "sampling seed")
	flags.BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(r verify.Report) {
	if r.OK() {
		ux.Success(fmt.Sprintf("%s solver answered all %d inputs for n=%d", r.Solver, r.Cases, r.N))
	} else {
		ux.Error(fmt.Sprintf("%s solver failed %d of %d inputs for n=%d", r.Solver, r.Failed, r.Cases, r.N))
	}
	ux.Fields(
		ux.KV{Key: "max comparisons", Value: r.MaxComparisons},
		ux.KV{Key: "mean comparisons", Value: fmt.Sprintf("%.3f", r.Mean())},
		ux.KV{Key: "worst input", Value: r.Worst},
		ux.KV{Key: "duration", Value: r.Duration},
	)

	counts := r.Counts()
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{
			strconv.Itoa(c),
			strconv.Itoa(r.Histogram[c]),
			ux.ProgressBar(r.Histogram[c], r.Cases, 30),
		}
	}
	fmt.Fprint(ux.Out(), ux.RenderTable([]string{"comparisons", "inputs", "share"}, rows))

	for _, f := range r.Failures {
		ux.Warning(fmt.Sprintf("ones %v: got %v %s", f.Ones, f.Got, f.Error))
	}
}
