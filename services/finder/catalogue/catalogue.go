// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalogue holds the closed set of comparison types the decision
// table may prescribe.
//
// Each comparison pits a representative of one class kind against a
// representative of another. Its outcomes are declared as static deltas
// over the abstract position. Comparisons between two classes of the same
// kind only list outcomes 0 and 1 because "less" and "greater" are the
// same move up to relabelling.
package catalogue

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/threeones/services/finder/position"
)

// Label names a class kind a comparison operand is drawn from.
type Label int

const (
	// Single is an undetermined singleton class.
	Single Label = iota
	// Pair is an undetermined class of two equal elements.
	Pair
	// Triple is an undetermined class of three equal elements.
	Triple
	// Zero is the sentinel class of elements known to be 0.
	Zero
	// One is the sentinel class of elements known to be 1.
	One
)

var labelNames = [...]string{"u1", "u2", "u3", "zero", "one"}

// String returns the table spelling of the label ("u1", "zero", ...).
func (l Label) String() string {
	if l < Single || l > One {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ClassSize returns the class size for undetermined labels and 0 for the
// sentinels.
func (l Label) ClassSize() int {
	switch l {
	case Single:
		return 1
	case Pair:
		return 2
	case Triple:
		return 3
	default:
		return 0
	}
}

// Sentinel reports whether the label names a confirmed class.
func (l Label) Sentinel() bool {
	return l == Zero || l == One
}

// ParseLabel is the inverse of Label.String.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown class label %q", s)
}

// Outcome is one possible comparator result and the position change it
// causes.
type Outcome struct {
	// Result is the comparator result: -1, 0 or +1.
	Result int
	Delta  position.Delta
}

// Comparison describes one comparison type.
type Comparison struct {
	Name  string
	Left  Label
	Right Label

	// Priority breaks ties between equally good comparisons. Lower wins.
	Priority int

	// Requires is a lower bound the position must cover before the
	// comparison can be issued.
	Requires position.Delta

	Outcomes []Outcome
}

// Applicable reports whether the comparison's precondition holds at p and
// both operands can be drawn from it.
func (c Comparison) Applicable(p position.Position) bool {
	return p.Covers(c.Requires) && p.Covers(c.Operands())
}

// Operands is the smallest position both operands can be drawn from.
func (c Comparison) Operands() position.Delta {
	return operand(c.Left).Plus(operand(c.Right))
}

func operand(l Label) position.Delta {
	switch l {
	case Single:
		return position.Delta{U1: 1}
	case Pair:
		return position.Delta{U2: 2}
	case Triple:
		return position.Delta{U3: 3}
	case Zero:
		return position.Delta{Zero: 1}
	default:
		return position.Delta{One: 1}
	}
}

// String returns the comparison name.
func (c Comparison) String() string {
	return c.Name
}

type (
	d = position.Delta
	r = Outcome
)

// catalogue is ordered as the decision table iterates it; Priority, not
// slice order, decides ties.
var catalogue = []Comparison{
	{Name: "u1_u1", Left: Single, Right: Single, Priority: 0, Outcomes: []Outcome{
		r{0, d{U1: -2, U2: 2}},
		r{1, d{U1: -2, Zero: 1, One: 1}},
	}},
	{Name: "u1_u2", Left: Single, Right: Pair, Priority: 4, Outcomes: []Outcome{
		r{0, d{U1: -1, U2: -2, U3: 3}},
		r{1, d{U1: -1, U2: -2, Zero: 2, One: 1}},
		r{-1, d{U1: -1, U2: -2, Zero: 1, One: 2}},
	}},
	{Name: "u1_u3", Left: Single, Right: Triple, Priority: 5, Outcomes: []Outcome{
		r{0, d{U1: -1, U3: -3, Zero: 4}},
		r{1, d{U1: -1, U3: -3, Zero: 3, One: 1}},
		r{-1, d{U1: -1, U3: -3, Zero: 1, One: 3}},
	}},
	{Name: "u2_u2", Left: Pair, Right: Pair, Priority: 2, Outcomes: []Outcome{
		r{0, d{U2: -4, Zero: 4}},
		r{1, d{U2: -4, Zero: 2, One: 2}},
	}},
	{Name: "u2_u3", Left: Pair, Right: Triple, Priority: 6, Outcomes: []Outcome{
		r{0, d{U2: -2, U3: -3, Zero: 5}},
		r{1, d{U2: -2, U3: -3, Zero: 3, One: 2}},
		r{-1, d{U2: -2, U3: -3, Zero: 2, One: 3}},
	}},
	{Name: "u3_u3", Left: Triple, Right: Triple, Priority: 3, Outcomes: []Outcome{
		r{0, d{U3: -6, Zero: 6}},
		r{1, d{U3: -6, Zero: 3, One: 3}},
	}},
	{Name: "u1_zero", Left: Single, Right: Zero, Priority: 7, Requires: d{Zero: 1}, Outcomes: []Outcome{
		r{0, d{U1: -1, Zero: 1}},
		r{1, d{U1: -1, One: 1}},
	}},
	{Name: "u2_zero", Left: Pair, Right: Zero, Priority: 8, Requires: d{Zero: 1}, Outcomes: []Outcome{
		r{0, d{U2: -2, Zero: 2}},
		r{1, d{U2: -2, One: 2}},
	}},
	{Name: "u3_zero", Left: Triple, Right: Zero, Priority: 9, Requires: d{Zero: 1}, Outcomes: []Outcome{
		r{0, d{U3: -3, Zero: 3}},
		r{1, d{U3: -3, One: 3}},
	}},
	{Name: "u1_one", Left: Single, Right: One, Priority: 10, Requires: d{One: 1}, Outcomes: []Outcome{
		r{0, d{U1: -1, One: 1}},
		r{-1, d{U1: -1, Zero: 1}},
	}},
	{Name: "u2_one", Left: Pair, Right: One, Priority: 11, Requires: d{One: 1}, Outcomes: []Outcome{
		r{0, d{U2: -2, One: 2}},
		r{-1, d{U2: -2, Zero: 2}},
	}},
	{Name: "u3_one", Left: Triple, Right: One, Priority: 12, Requires: d{One: 1}, Outcomes: []Outcome{
		r{0, d{U3: -3, One: 3}},
		r{-1, d{U3: -3, Zero: 3}},
	}},
}

var byName = func() map[string]int {
	m := make(map[string]int, len(catalogue))
	for i, c := range catalogue {
		m[c.Name] = i
	}
	return m
}()

// ID indexes a comparison in the catalogue.
type ID int

// Len is the number of comparison types.
func Len() int {
	return len(catalogue)
}

// All returns a copy of the catalogue.
func All() []Comparison {
	out := make([]Comparison, len(catalogue))
	copy(out, catalogue)
	return out
}

// Get returns the comparison with the given ID.
func Get(id ID) Comparison {
	return catalogue[id]
}

// Lookup finds a comparison by name ("u1_zero").
func Lookup(name string) (ID, bool) {
	i, ok := byName[name]
	return ID(i), ok
}

// ForLabels finds the comparison between two class kinds, in either order.
func ForLabels(a, b Label) (ID, bool) {
	if a > b {
		a, b = b, a
	}
	return Lookup(a.String() + "_" + b.String())
}

// ParseLabels reads a comparison written as a label pair ("u1_u2" or
// "u1,u2").
func ParseLabels(s string) (ID, error) {
	sep := "_"
	if strings.Contains(s, ",") {
		sep = ","
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return 0, fmt.Errorf("comparison %q must name two classes", s)
	}
	a, err := ParseLabel(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, err
	}
	b, err := ParseLabel(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, err
	}
	id, ok := ForLabels(a, b)
	if !ok {
		return 0, fmt.Errorf("no comparison between %s and %s", a, b)
	}
	return id, nil
}
