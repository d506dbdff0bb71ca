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
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/executor"
	"github.com/AleutianAI/threeones/services/finder/heuristic"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/table"
)

// solver is what solve and play drive: the table executor or the
// heuristic baseline.
type solver interface {
	N() int
	Solve(ctx context.Context, compare executor.Comparator) (executor.Solution, error)
}

func (a *app) newSolver(cmd *cobra.Command, n int, useHeuristic, steps bool) (solver, *table.Table, error) {
	if useHeuristic {
		s, err := heuristic.New(n, a.logger.Slog())
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	tbl, _, err := a.loadTable(cmd, n)
	if err != nil {
		return nil, nil, err
	}
	opts := []executor.Option{executor.WithLogger(a.logger.Slog()), executor.WithMetrics(a.metrics)}
	if steps {
		opts = append(opts, executor.WithSteps())
	}
	e, err := executor.New(tbl, opts...)
	if err != nil {
		return nil, nil, err
	}
	return e, tbl, nil
}

// parseOnes reads "a,b,c" into a 0/1 input of length n.
func parseOnes(n int, s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != position.Target {
		return nil, fmt.Errorf("--ones needs exactly %d indices, got %q", position.Target, s)
	}
	values := make([]int, n)
	for _, part := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		if i < 0 || i >= n {
			return nil, fmt.Errorf("index %d out of range for n=%d", i, n)
		}
		if values[i] == 1 {
			return nil, fmt.Errorf("index %d listed twice", i)
		}
		values[i] = 1
	}
	return values, nil
}

// promptComparator asks the user for every comparison. A failed prompt
// cancels ctx with the prompt error as cause, which stops the executor.
func promptComparator(cancel context.CancelCauseFunc) executor.Comparator {
	choices := []ux.Choice[int]{
		{Label: "left is smaller (0 vs 1)", Value: -1},
		{Label: "equal", Value: 0},
		{Label: "left is larger (1 vs 0)", Value: 1},
	}
	return func(i, j int) int {
		title := fmt.Sprintf("Compare element %d with element %d", i, j)
		result, err := ux.Choose(title, "Answer for the array you have in mind.", choices)
		if err != nil {
			cancel(err)
		}
		return result
	}
}

func newSolveCmd(a *app) *cobra.Command {
	var (
		n            int
		ones         string
		interactive  bool
		useHeuristic bool
		steps        bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Find the three ones of a given or imagined input",
		Example: `  threeones solve --n 100 --ones 4,17,93
  threeones solve --n 10 --interactive`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n = a.size(n)
			if (ones == "") == !interactive {
				return errors.New("exactly one of --ones or --interactive is required")
			}

			s, tbl, err := a.newSolver(cmd, n, useHeuristic, steps)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var compare executor.Comparator
			if interactive {
				var cancel context.CancelCauseFunc
				ctx, cancel = context.WithCancelCause(ctx)
				defer cancel(nil)
				compare = promptComparator(cancel)
			} else {
				values, err := parseOnes(n, ones)
				if err != nil {
					return err
				}
				compare = executor.ValuesComparator(values)
			}

			sol, err := s.Solve(ctx, compare)
			if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
				return cause
			}
			if err != nil {
				return err
			}

			if len(sol.Steps) > 0 {
				fmt.Fprint(ux.Out(), renderSteps(sol.Steps))
			}
			ux.Success(fmt.Sprintf("Ones at %d, %d, %d", sol.Ones[0], sol.Ones[1], sol.Ones[2]))
			rows := []ux.KV{{Key: "comparisons", Value: sol.Comparisons}}
			if tbl != nil {
				rows = append(rows, ux.KV{Key: "worst case", Value: tbl.Start().Value})
			}
			ux.Fields(rows...)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&n, "n", 0, "instance size (default n from the config)")
	flags.StringVar(&ones, "ones", "", "comma separated indices of the three ones")
	flags.BoolVarP(&interactive, "interactive", "i", false, "answer each comparison yourself")
	flags.BoolVar(&useHeuristic, "heuristic", false, "use the pairs and triples heuristic instead of the table")
	flags.BoolVar(&steps, "steps", false, "print every comparison")
	return cmd
}

func newPlayCmd(a *app) *cobra.Command {
	var (
		n    int
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Hide three ones at random and watch the table find them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n = a.size(n)
			if !cmd.Flags().Changed("seed") {
				seed = rand.Uint64()
			}
			s, tbl, err := a.newSolver(cmd, n, false, true)
			if err != nil {
				return err
			}

			hidden := hiddenOnes(n, seed)
			values := make([]int, n)
			for _, i := range hidden {
				values[i] = 1
			}
			sol, err := s.Solve(cmd.Context(), executor.ValuesComparator(values))
			if err != nil {
				return err
			}

			ux.Title(fmt.Sprintf("threeones n=%d seed=%d", n, seed))
			fmt.Fprint(ux.Out(), renderSteps(sol.Steps))
			ux.Box("Found", ux.Highlight(n, sol.Ones[:]))
			ux.Fields(
				ux.KV{Key: "ones", Value: sol.Ones},
				ux.KV{Key: "comparisons", Value: sol.Comparisons},
				ux.KV{Key: "worst case", Value: tbl.Start().Value},
			)
			if !slices.Equal(sol.Ones[:], hidden) {
				return fmt.Errorf("found %v, hidden were %v", sol.Ones, hidden)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 0, "instance size (default n from the config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for placing the ones (default random)")
	return cmd
}

// hiddenOnes picks three distinct sorted indices below n.
func hiddenOnes(n int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	picked := make([]int, 0, position.Target)
	for len(picked) < position.Target {
		i := rng.IntN(n)
		if !slices.Contains(picked, i) {
			picked = append(picked, i)
		}
	}
	slices.Sort(picked)
	return picked
}

func renderSteps(steps []executor.Step) string {
	rows := make([][]string, len(steps))
	for i, st := range steps {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			st.Position.String(),
			st.Comparison,
			fmt.Sprintf("x[%d] vs x[%d]", st.Left, st.Right),
			resultSymbol(st.Result),
		}
	}
	return ux.RenderTable([]string{"#", "position", "comparison", "elements", "result"}, rows)
}

func resultSymbol(r int) string {
	switch {
	case r < 0:
		return "<"
	case r > 0:
		return ">"
	default:
		return "="
	}
}
