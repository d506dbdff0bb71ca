// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/threeones/pkg/logging"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.N)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []int{100}, cfg.Server.Sizes)
}

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "threeones.yaml")

	cfg, created, err := Load(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultConfig().N, cfg.N)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, created, err = Load(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
n: 16
logging:
  level: debug
server:
  sizes: [8, 16]
  burst: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.N)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []int{8, 16}, cfg.Server.Sizes)
	assert.Equal(t, 5, cfg.Server.Burst)
	// Untouched fields keep their defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Storage.GCInterval)
	assert.Equal(t, "threeones", cfg.Telemetry.ServiceName)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"n too small":      "n: 2",
		"n too large":      "n: 5000",
		"bad level":        "logging: {level: loud}",
		"bad size":         "server: {sizes: [100, 1]}",
		"no sizes":         "server: {sizes: []}",
		"bad addr":         "server: {addr: nowhere}",
		"zero rate":        "server: {rate_limit: 0}",
		"bad exporter":     "telemetry: {trace_exporter: jaeger}",
		"missing path":     "storage: {path: ''}",
		"negative workers": "verify: {workers: -1}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestParse_InMemoryNeedsNoPath(t *testing.T) {
	cfg, err := Parse([]byte("storage: {path: '', in_memory: true}"))
	require.NoError(t, err)
	assert.True(t, cfg.Storage.InMemory)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("n: [unclosed"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.JSON = true

	lc := cfg.LoggerConfig("threeones-test")
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.Equal(t, "threeones-test", lc.Service)
	assert.True(t, lc.JSON)
}

func TestValidator_InstanceSizeTag(t *testing.T) {
	type req struct {
		N int `validate:"instancesize"`
	}
	assert.NoError(t, Validator().Struct(req{N: 3}))
	assert.Error(t, Validator().Struct(req{N: 0}))
}
