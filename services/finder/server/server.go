// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes decision tables and the solver over HTTP.
//
// Routes:
//
//	GET  /v1/finder/health
//	GET  /v1/finder/tables
//	GET  /v1/finder/tables/:n/start
//	GET  /v1/finder/tables/:n/entries?sig=<signature>|position=(u1, u2, u3, zero, one)
//	GET  /v1/finder/tables/:n/text
//	POST /v1/finder/solve
//	GET  /metrics              (when the Prometheus exporter is active)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/threeones/services/finder/config"
	"github.com/AleutianAI/threeones/services/finder/registry"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

const serviceName = "threeones-finder"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records solves on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// Server is the finder HTTP service.
type Server struct {
	cfg            config.ServerConfig
	registry       *registry.Registry
	limiter        *rate.Limiter
	router         *gin.Engine
	metrics        *telemetry.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

// New creates a server answering for cfg.Sizes from reg.
func New(cfg config.ServerConfig, reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initRouter()
	return s
}

func (s *Server) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(serviceName))

	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	v1 := s.router.Group("/v1/finder")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/solve", s.rateLimit(), s.handleSolve)

		tables := v1.Group("/tables")
		{
			tables.GET("", s.handleListTables)
			tables.GET("/:n/start", s.handleStart)
			tables.GET("/:n/entries", s.handleEntry)
			tables.GET("/:n/text", s.handleText)
		}
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// serves reports whether n is one of the configured sizes.
func (s *Server) serves(n int) bool {
	return slices.Contains(s.cfg.Sizes, n)
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("finder server listening", slog.String("addr", s.cfg.Addr), slog.Any("sizes", s.cfg.Sizes))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down finder server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// rateLimit rejects requests beyond the configured rate with 429.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
