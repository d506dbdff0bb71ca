// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Level controls how rich CLI output is.
type Level string

const (
	// LevelRich enables colours, icons and boxes.
	LevelRich Level = "rich"

	// LevelPlain prints icons without colour.
	LevelPlain Level = "plain"

	// LevelMachine prints plain text suitable for scripting and parsing.
	LevelMachine Level = "machine"
)

var (
	currentLevel = LevelRich
	levelMu      sync.RWMutex
)

// GetLevel returns the current output level.
func GetLevel() Level {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return currentLevel
}

// SetLevel updates the output level.
func SetLevel(level Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	currentLevel = level
}

// ParseLevel converts a string to a Level. Unknown values are plain.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "rich", "full", "r":
		return LevelRich
	case "machine", "quiet", "q":
		return LevelMachine
	default:
		return LevelPlain
	}
}

// Init picks the level from the flag value, THREEONES_OUTPUT, or the
// terminal, in that order.
func Init(flag string) {
	switch {
	case flag != "":
		SetLevel(ParseLevel(flag))
	case os.Getenv("THREEONES_OUTPUT") != "":
		SetLevel(ParseLevel(os.Getenv("THREEONES_OUTPUT")))
	case !isTerminal(os.Stdout):
		SetLevel(LevelMachine)
	default:
		SetLevel(LevelRich)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether prompts can be shown.
func IsInteractive() bool {
	return GetLevel() != LevelMachine && isTerminal(os.Stdin) && isTerminal(os.Stdout)
}
