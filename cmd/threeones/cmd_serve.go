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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/server"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve decision tables and solves over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, err := a.registry()
			if err != nil {
				return err
			}
			spinner := ux.NewSpinner(fmt.Sprintf("Preparing tables for n=%v", cfg.Sizes))
			spinner.Start()
			err = reg.Preload(ctx, cfg.Sizes...)
			spinner.Stop()
			if err != nil {
				return err
			}

			srv := server.New(cfg, reg,
				server.WithLogger(a.logger.Slog()),
				server.WithMetrics(a.metrics),
				server.WithMetricsHandler(telemetry.MetricsHandler()),
			)
			ux.Success(fmt.Sprintf("Serving n=%v on %s", cfg.Sizes, cfg.Addr))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr from the config)")
	return cmd
}
