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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/threeones/pkg/ux"
	"github.com/AleutianAI/threeones/services/finder/store"
	"github.com/AleutianAI/threeones/services/finder/verify"
)

const testConfig = `
n: 6
logging:
  level: error
  dir: ""
storage:
  path: ""
  in_memory: true
telemetry:
  trace_exporter: none
  metric_exporter: none
verify:
  workers: 2
`

// runCLI executes the root command in machine output mode against a
// throwaway in-memory configuration.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threeones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	return runWithConfig(t, path, args...)
}

func runWithConfig(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	restore := ux.SetOutput(&out, &errOut)
	defer restore()
	defer ux.SetLevel(ux.LevelRich)

	root, a := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", path, "--output", "machine"}, args...))
	err := root.Execute()
	require.NoError(t, a.close(context.Background()))
	return out.String(), err
}

func TestBuild(t *testing.T) {
	out, err := runCLI(t, "build", "4", "6")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: Decision table for n=4 ready")
	assert.Contains(t, out, "OK: Decision table for n=6 ready")
	assert.Contains(t, out, "source=build")
	assert.Contains(t, out, "worst_case=2")
}

func TestBuild_InvalidSize(t *testing.T) {
	_, err := runCLI(t, "build", "two")
	assert.ErrorContains(t, err, "invalid size")

	_, err = runCLI(t, "build", "2")
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	out, err := runCLI(t, "dump", "4")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "# threeones table n=4"), out)
	assert.Contains(t, out, "(4, 0, 0, 0, 0): (2, ('u1', 'u1'))")

	file := filepath.Join(t.TempDir(), "n5.txt")
	out, err = runCLI(t, "dump", "5", "-o", file)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: Wrote")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# threeones table n=5"))
}

func TestSolve(t *testing.T) {
	out, err := runCLI(t, "solve", "--n", "10", "--ones", "7,2,9")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: Ones at 2, 7, 9")
	assert.Contains(t, out, "worst_case=")

	out, err = runCLI(t, "solve", "--n", "12", "--ones", "0,5,11", "--heuristic")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: Ones at 0, 5, 11")
	assert.NotContains(t, out, "worst_case=")
}

func TestSolve_Steps(t *testing.T) {
	out, err := runCLI(t, "solve", "--ones", "1,3,4", "--steps")
	require.NoError(t, err, out)
	assert.Contains(t, out, "#\tposition\tcomparison\telements\tresult\n")
	assert.Contains(t, out, "1\t(6, 0, 0, 0, 0)\t")
}

func TestSolve_BadFlags(t *testing.T) {
	cases := map[string][]string{
		"no input":     {"solve"},
		"both inputs":  {"solve", "--ones", "0,1,2", "--interactive"},
		"two ones":     {"solve", "--ones", "0,1"},
		"duplicate":    {"solve", "--ones", "0,1,1"},
		"out of range": {"solve", "--ones", "0,1,6"},
		"not a number": {"solve", "--ones", "0,1,x"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestSolve_InteractiveNeedsTerminal(t *testing.T) {
	_, err := runCLI(t, "solve", "--interactive")
	assert.ErrorIs(t, err, ux.ErrNotInteractive)
}

func TestPlay(t *testing.T) {
	out, err := runCLI(t, "play", "--n", "8", "--seed", "3")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found: ")
	assert.Contains(t, out, "comparisons=")

	again, err := runCLI(t, "play", "--n", "8", "--seed", "3")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestHiddenOnes(t *testing.T) {
	for seed := range uint64(50) {
		got := hiddenOnes(5, seed)
		require.Len(t, got, 3)
		assert.True(t, got[0] < got[1] && got[1] < got[2], "%v", got)
		assert.Less(t, got[2], 5)
	}
}

func TestVerify(t *testing.T) {
	out, err := runCLI(t, "verify", "--n", "7")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: table solver answered all 35 inputs for n=7")
	assert.Contains(t, out, "comparisons\tinputs\tshare\n")

	out, err = runCLI(t, "verify", "--n", "9", "--heuristic")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: heuristic solver answered all 84 inputs for n=9")
}

func TestVerify_JSON(t *testing.T) {
	out, err := runCLI(t, "verify", "--n", "30", "--sample", "200", "--seed", "9", "--json")
	require.NoError(t, err)

	var report verify.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 30, report.N)
	assert.Equal(t, 200, report.Cases)
	assert.Zero(t, report.Failed)
}

func TestTables(t *testing.T) {
	out, err := runCLI(t, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored tables")

	_, err = runCLI(t, "tables", "delete", "5")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPublish_NeedsBucket(t *testing.T) {
	_, err := runCLI(t, "publish", "4")
	assert.ErrorIs(t, err, store.ErrNoBucket)
}

func TestFirstRunWritesConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "fresh", "threeones.yaml")

	out, err := runWithConfig(t, path, "solve", "--n", "5", "--ones", "0,1,2", "--heuristic")
	require.NoError(t, err, out)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threeones.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n: 1\n"), 0644))
	_, err := runWithConfig(t, path, "solve", "--ones", "0,1,2")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = runCLI(t, "--log-level", "loud", "tables")
	assert.ErrorContains(t, err, "invalid configuration")
}
