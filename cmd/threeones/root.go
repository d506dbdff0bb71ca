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

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/threeones/pkg/logging"
	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/config"
	"github.com/AleutianAI/threeones/services/finder/registry"
	"github.com/AleutianAI/threeones/services/finder/store"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg      *config.Config
	logger   *logging.Logger
	metrics  *telemetry.Metrics
	shutdown func(context.Context) error
	store    *store.Store
}

// newRootCmd builds the command tree. The caller must call app.close after
// Execute, since cobra skips post-run hooks when a command fails.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "threeones",
		Short: "Find the three ones in an array using as few comparisons as possible",
		Long: `threeones builds optimal decision tables for locating the three elements
holding 1 in an array of 0s and 1s, using only three-way comparisons between
elements, and runs, verifies, persists and serves those tables.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.threeones/threeones.yaml)")
	flags.StringVar(&a.output, "output", "", "output style: rich, plain or machine (default: detect)")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level from the config")

	root.AddCommand(
		newBuildCmd(a),
		newDumpCmd(a),
		newTablesCmd(a),
		newPublishCmd(a),
		newSolveCmd(a),
		newPlayCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ux.Init(a.output)

	if a.configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.configPath = path
	}
	cfg, created, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.LoggerConfig("threeones"))
	if created {
		a.logger.Info("First run detected, wrote default configuration", "path", a.configPath)
	}

	a.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	a.metrics, err = telemetry.NewMetrics(otel.Meter(telemetry.MeterName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// openStore opens the configured table database once per invocation.
func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg := store.DefaultConfig(a.cfg.StoragePath())
	cfg.InMemory = a.cfg.Storage.InMemory
	cfg.GCInterval = a.cfg.Storage.GCInterval
	cfg.Logger = a.logger.Slog()
	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open the table store: %w", err)
	}
	a.store = s
	return s, nil
}

// registry returns a registry backed by the table store.
func (a *app) registry() (*registry.Registry, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return registry.New(
		registry.WithStore(s),
		registry.WithLogger(a.logger.Slog()),
		registry.WithMetrics(a.metrics),
	), nil
}

// size resolves an --n flag, falling back to the configured default.
func (a *app) size(n int) int {
	if n == 0 {
		return a.cfg.N
	}
	return n
}
