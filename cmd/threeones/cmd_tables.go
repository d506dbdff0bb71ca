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
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/registry"
	"github.com/AleutianAI/threeones/services/finder/store"
	"github.com/AleutianAI/threeones/services/finder/table"
)

// parseSizes reads positional instance sizes, defaulting to the config.
func (a *app) parseSizes(args []string) ([]int, error) {
	if len(args) == 0 {
		return []int{a.cfg.N}, nil
	}
	sizes := make([]int, len(args))
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", arg)
		}
		sizes[i] = n
	}
	return sizes, nil
}

// loadTable fetches the table for n through the registry with a spinner.
func (a *app) loadTable(cmd *cobra.Command, n int) (*table.Table, registry.Source, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, "", err
	}
	spinner := ux.NewSpinner(fmt.Sprintf("Loading decision table for n=%d", n))
	spinner.Start()
	tbl, source, err := reg.Table(cmd.Context(), n)
	spinner.Stop()
	return tbl, source, err
}

func newBuildCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build [n...]",
		Short: "Build, validate and store decision tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes, err := a.parseSizes(args)
			if err != nil {
				return err
			}
			for _, n := range sizes {
				if force {
					s, err := a.openStore()
					if err != nil {
						return err
					}
					if err := s.DeleteTable(cmd.Context(), n); err != nil && !errors.Is(err, store.ErrNotFound) {
						return err
					}
				}
				tbl, source, err := a.loadTable(cmd, n)
				if err != nil {
					return err
				}
				sum := tbl.Summary()
				ux.Success(fmt.Sprintf("Decision table for n=%d ready", n))
				ux.Fields(
					ux.KV{Key: "source", Value: source},
					ux.KV{Key: "entries", Value: sum.Entries},
					ux.KV{Key: "terminals", Value: sum.Terminals},
					ux.KV{Key: "worst case", Value: sum.Value},
				)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard any stored table and rebuild")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump [n]",
		Short: "Write a decision table in its text form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes, err := a.parseSizes(args)
			if err != nil {
				return err
			}
			tbl, _, err := a.loadTable(cmd, sizes[0])
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return tbl.WriteText(cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := tbl.WriteText(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			ux.Success(fmt.Sprintf("Wrote %d entries to %s", tbl.Len(), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List stored decision tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			metas, err := s.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				ux.Info("No stored tables. Run `threeones build` to create one.")
				return nil
			}
			rows := make([][]string, len(metas))
			for i, m := range metas {
				rows[i] = []string{
					strconv.Itoa(m.N),
					strconv.Itoa(m.Entries),
					strconv.Itoa(m.StartValue),
					m.SavedAt.Format("2006-01-02 15:04:05"),
				}
			}
			fmt.Fprint(ux.Out(), ux.RenderTable([]string{"n", "entries", "worst case", "saved"}, rows))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete n...",
		Short: "Delete stored decision tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes, err := a.parseSizes(args)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			for _, n := range sizes {
				if err := s.DeleteTable(cmd.Context(), n); err != nil {
					return err
				}
				ux.Success(fmt.Sprintf("Deleted table n=%d", n))
			}
			return nil
		},
	})
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "publish [n...]",
		Short: "Upload decision table text dumps to Google Cloud Storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes, err := a.parseSizes(args)
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = a.cfg.Storage.Bucket
			}
			pub, err := store.NewGCSPublisher(cmd.Context(), bucket, a.cfg.Storage.Prefix,
				a.cfg.Storage.CredentialsFile, a.logger.Slog())
			if err != nil {
				return err
			}
			defer pub.Close()

			for _, n := range sizes {
				tbl, _, err := a.loadTable(cmd, n)
				if err != nil {
					return err
				}
				url, err := pub.Publish(cmd.Context(), tbl)
				if err != nil {
					return err
				}
				ux.Success(fmt.Sprintf("Published n=%d to %s", n, url))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default storage.bucket from the config)")
	return cmd
}
