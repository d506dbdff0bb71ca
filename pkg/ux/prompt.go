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
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned when a prompt is needed but stdin or
// stdout is not a terminal.
var ErrNotInteractive = errors.New("not an interactive terminal")

// Choice is one selectable answer.
type Choice[T comparable] struct {
	Label string
	Value T
}

// Choose asks the user to pick one of choices.
func Choose[T comparable](title, description string, choices []Choice[T]) (T, error) {
	var value T
	if !IsInteractive() {
		return value, ErrNotInteractive
	}
	opts := make([]huh.Option[T], len(choices))
	for i, c := range choices {
		opts[i] = huh.NewOption(c.Label, c.Value)
	}
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[T]().
			Title(title).
			Description(description).
			Options(opts...).
			Value(&value),
	)).Run()
	return value, err
}

// Confirm asks a yes/no question.
func Confirm(title string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).Run()
	return ok, err
}
