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
	"bytes"
	"strings"
	"testing"
)

// capture runs f at level with output redirected.
func capture(level Level, f func()) (string, string) {
	prev := GetLevel()
	SetLevel(level)
	defer SetLevel(prev)

	var out, errOut bytes.Buffer
	restore := SetOutput(&out, &errOut)
	defer restore()
	f()
	return out.String(), errOut.String()
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the icon", icon)
		}
	}
}

func TestSuccess_Machine(t *testing.T) {
	out, _ := capture(LevelMachine, func() { Success("table built") })
	if out != "OK: table built\n" {
		t.Errorf("got %q", out)
	}
}

func TestWarningAndError_MachineGoToStderr(t *testing.T) {
	out, errOut := capture(LevelMachine, func() {
		Warning("stale table")
		Error("bad input")
	})
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	if errOut != "WARN: stale table\nERROR: bad input\n" {
		t.Errorf("got %q", errOut)
	}
}

func TestPlain(t *testing.T) {
	out, _ := capture(LevelPlain, func() {
		Success("done")
		Error("failed")
	})
	if out != "✓ done\n✗ failed\n" {
		t.Errorf("got %q", out)
	}
}

func TestTitle_SilentInMachineMode(t *testing.T) {
	out, _ := capture(LevelMachine, func() { Title("threeones") })
	if out != "" {
		t.Errorf("got %q", out)
	}
	out, _ = capture(LevelRich, func() { Title("threeones") })
	if !strings.Contains(out, "threeones") {
		t.Errorf("got %q", out)
	}
}

func TestFields_Machine(t *testing.T) {
	out, _ := capture(LevelMachine, func() {
		Fields(KV{"worst case", 7}, KV{"entries", 120})
	})
	if out != "worst_case=7\nentries=120\n" {
		t.Errorf("got %q", out)
	}
}

func TestBox(t *testing.T) {
	out, _ := capture(LevelMachine, func() { Box("Result", "ones at 2, 7, 9") })
	if out != "Result: ones at 2, 7, 9\n" {
		t.Errorf("got %q", out)
	}
	out, _ = capture(LevelRich, func() { Box("Result", "ones at 2, 7, 9") })
	if !strings.Contains(out, "ones at 2, 7, 9") {
		t.Errorf("got %q", out)
	}
}

func TestProgressBar(t *testing.T) {
	SetLevel(LevelMachine)
	defer SetLevel(LevelRich)
	if got := ProgressBar(3, 10, 20); got != "3/10" {
		t.Errorf("got %q", got)
	}

	SetLevel(LevelRich)
	if got := ProgressBar(5, 10, 20); !strings.Contains(got, "50%") {
		t.Errorf("got %q", got)
	}
	if got := ProgressBar(12, 10, 20); !strings.Contains(got, "120%") {
		t.Errorf("overfull bar: got %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	SetLevel(LevelMachine)
	defer SetLevel(LevelRich)
	got := RenderTable([]string{"step", "compare"}, [][]string{{"1", "0 vs 1"}, {"2", "2 vs 3"}})
	want := "step\tcompare\n1\t0 vs 1\n2\t2 vs 3\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	SetLevel(LevelRich)
	got = RenderTable([]string{"step"}, [][]string{{"1"}})
	if !strings.Contains(got, "step") || !strings.Contains(got, "1") {
		t.Errorf("got %q", got)
	}
}

func TestHighlight(t *testing.T) {
	SetLevel(LevelPlain)
	defer SetLevel(LevelRich)
	if got := Highlight(6, []int{0, 3, 5}); got != "100101" {
		t.Errorf("got %q", got)
	}
}

func TestSpinner_MachineMode(t *testing.T) {
	_, errOut := capture(LevelMachine, func() {
		s := NewSpinner("building table n=100")
		s.Start()
		s.UpdateMessage("validating")
		s.Stop()
		s.Stop()
	})
	if errOut != "PROGRESS: building table n=100\n" {
		t.Errorf("got %q", errOut)
	}
}

func TestSpinner_RichStops(t *testing.T) {
	_, errOut := capture(LevelRich, func() {
		s := NewSpinner("building")
		s.Start()
		s.Stop()
	})
	if !strings.HasSuffix(errOut, "\r\033[K") {
		t.Errorf("spinner did not clear its line: %q", errOut)
	}
}
