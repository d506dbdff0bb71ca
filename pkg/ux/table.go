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
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderTable lays rows out under headers. Machine mode gives tab
// separated lines with the header first.
func RenderTable(headers []string, rows [][]string) string {
	if GetLevel() == LevelMachine {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		b.WriteByte('\n')
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		return b.String()
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorBright).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorDeep)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render() + "\n"
}

// Highlight renders n cells with the indices in ones marked.
func Highlight(n int, ones []int) string {
	one := lipgloss.NewStyle().Foreground(ColorOne).Bold(true)
	zero := lipgloss.NewStyle().Foreground(ColorZero)
	plain := GetLevel() != LevelRich

	var b strings.Builder
	for i := range n {
		isOne := slices.Contains(ones, i)
		switch {
		case isOne && plain:
			b.WriteByte('1')
		case plain:
			b.WriteByte('0')
		case isOne:
			b.WriteString(one.Render("●"))
		default:
			b.WriteString(zero.Render("·"))
		}
	}
	return b.String()
}
