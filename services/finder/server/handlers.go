// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/threeones/services/finder/config"
	"github.com/AleutianAI/threeones/services/finder/executor"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/table"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

// =============================================================================
// Request and Response Types
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
}

// SolveRequest describes the hidden input either as a 0/1 array or by the
// indices of its three ones.
type SolveRequest struct {
	N      int   `json:"n" validate:"instancesize"`
	Values []int `json:"values,omitempty" validate:"required_without=Ones,excluded_with=Ones,omitempty,dive,oneof=0 1"`
	Ones   []int `json:"ones,omitempty" validate:"required_without=Values,omitempty,len=3,dive,gte=0"`
	Steps  bool  `json:"steps"`
}

// SolveResponse is the result of a solve.
type SolveResponse struct {
	RunID       string          `json:"run_id"`
	N           int             `json:"n"`
	Ones        [3]int          `json:"ones"`
	Comparisons int             `json:"comparisons"`
	WorstCase   int             `json:"worst_case"`
	Steps       []executor.Step `json:"steps,omitempty"`
}

// EntryResponse is one table row.
type EntryResponse struct {
	Position  string `json:"position"`
	Signature uint64 `json:"signature"`
	Value     int    `json:"value"`
	Terminal  bool   `json:"terminal"`
	Data      string `json:"data"`
}

func entryResponse(p position.Position, e table.Entry) EntryResponse {
	return EntryResponse{
		Position:  p.String(),
		Signature: p.Signature(),
		Value:     e.Value,
		Terminal:  e.Terminal(),
		Data:      e.Data(),
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sizes": s.cfg.Sizes})
}

func (s *Server) handleListTables(c *gin.Context) {
	sizes := s.registry.Sizes()
	slices.Sort(sizes)
	summaries := make([]table.Summary, 0, len(sizes))
	for _, n := range sizes {
		tbl, _, err := s.registry.Table(c.Request.Context(), n)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		summaries = append(summaries, tbl.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"tables": summaries})
}

func (s *Server) handleStart(c *gin.Context) {
	tbl, ok := s.tableParam(c)
	if !ok {
		return
	}
	start := position.Start(tbl.N())
	c.JSON(http.StatusOK, gin.H{
		"summary": tbl.Summary(),
		"entry":   entryResponse(start, tbl.Start()),
	})
}

func (s *Server) handleEntry(c *gin.Context) {
	tbl, ok := s.tableParam(c)
	if !ok {
		return
	}

	var p position.Position
	switch {
	case c.Query("sig") != "":
		sig, err := strconv.ParseUint(c.Query("sig"), 10, 64)
		if err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid sig: %w", err))
			return
		}
		p = position.DecodeSignature(sig)
	case c.Query("position") != "":
		var err error
		if p, err = position.Parse(c.Query("position")); err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
	default:
		s.fail(c, http.StatusBadRequest, errors.New("one of sig or position is required"))
		return
	}

	if !p.Valid() || p.Total() != tbl.N() {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("position %s does not describe %d elements", p, tbl.N()))
		return
	}
	e, found := tbl.Lookup(p)
	if !found {
		s.fail(c, http.StatusNotFound, fmt.Errorf("no entry for %s", p))
		return
	}
	c.JSON(http.StatusOK, entryResponse(p, e))
}

func (s *Server) handleText(c *gin.Context) {
	tbl, ok := s.tableParam(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if err := tbl.WriteText(c.Writer); err != nil {
		s.logger.Warn("table text write failed", slog.Int("n", tbl.N()), slog.String("error", err.Error()))
	}
}

func (s *Server) handleSolve(c *gin.Context) {
	ctx := c.Request.Context()
	runID := uuid.NewString()
	c.Header("X-Run-ID", runID)
	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(slog.String("run_id", runID))

	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := config.Validator().Struct(req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	values, err := req.input()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if !s.serves(req.N) {
		s.fail(c, http.StatusNotFound, fmt.Errorf("size %d is not served", req.N))
		return
	}

	tbl, source, err := s.registry.Table(ctx, req.N)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	opts := []executor.Option{executor.WithLogger(logger), executor.WithMetrics(s.metrics)}
	if req.Steps {
		opts = append(opts, executor.WithSteps())
	}
	exec, err := executor.New(tbl, opts...)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	sol, err := exec.SolveValues(ctx, values)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	logger.Info("solve finished",
		slog.Int("n", req.N),
		slog.String("table_source", string(source)),
		slog.Int("comparisons", sol.Comparisons),
	)
	c.JSON(http.StatusOK, SolveResponse{
		RunID:       runID,
		N:           req.N,
		Ones:        sol.Ones,
		Comparisons: sol.Comparisons,
		WorstCase:   tbl.Start().Value,
		Steps:       sol.Steps,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// tableParam resolves the :n path parameter to a served table, writing an
// error response when it cannot.
func (s *Server) tableParam(c *gin.Context) (*table.Table, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid size %q", c.Param("n")))
		return nil, false
	}
	if !s.serves(n) {
		s.fail(c, http.StatusNotFound, fmt.Errorf("size %d is not served", n))
		return nil, false
	}
	tbl, _, err := s.registry.Table(c.Request.Context(), n)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return tbl, true
}

// input returns the request's 0/1 array, checking it holds exactly three
// ones.
func (r SolveRequest) input() ([]int, error) {
	if r.Values == nil {
		return indicator(r.N, r.Ones)
	}
	if len(r.Values) != r.N {
		return nil, fmt.Errorf("got %d values for n=%d", len(r.Values), r.N)
	}
	ones := 0
	for _, v := range r.Values {
		ones += v
	}
	if ones != position.Target {
		return nil, fmt.Errorf("input must hold exactly %d ones, got %d", position.Target, ones)
	}
	return r.Values, nil
}

// indicator expands the indices of the ones into a 0/1 input of length n.
func indicator(n int, ones []int) ([]int, error) {
	values := make([]int, n)
	for _, i := range ones {
		if i >= n {
			return nil, fmt.Errorf("index %d out of range for n=%d", i, n)
		}
		if values[i] == 1 {
			return nil, fmt.Errorf("index %d listed twice", i)
		}
		values[i] = 1
	}
	return values, nil
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
