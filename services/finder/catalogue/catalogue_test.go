// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/threeones/services/finder/position"
)

func TestCatalogue_Shape(t *testing.T) {
	all := All()
	require.Len(t, all, 12)

	priorities := make(map[int]string)
	for _, c := range all {
		if other, dup := priorities[c.Priority]; dup {
			t.Errorf("%s and %s share priority %d", c.Name, other, c.Priority)
		}
		priorities[c.Priority] = c.Name
		assert.Equal(t, c.Left.String()+"_"+c.Right.String(), c.Name)
	}
}

func TestCatalogue_OutcomesConserveElements(t *testing.T) {
	for _, c := range All() {
		for _, o := range c.Outcomes {
			assert.Zero(t, o.Delta.Sum(), "%s outcome %d", c.Name, o.Result)
		}
	}
}

func TestCatalogue_ComponentsStrictlyDecrease(t *testing.T) {
	for _, c := range All() {
		for _, o := range c.Outcomes {
			dc := o.Delta.U1 + o.Delta.U2/2 + o.Delta.U3/3
			assert.Less(t, dc, 0, "%s outcome %d", c.Name, o.Result)
		}
	}
}

func TestCatalogue_OutcomeSets(t *testing.T) {
	for _, c := range All() {
		results := make(map[int]bool)
		for _, o := range c.Outcomes {
			results[o.Result] = true
		}
		switch {
		case c.Right == One:
			assert.Equal(t, map[int]bool{0: true, -1: true}, results, c.Name)
		case c.Right == Zero:
			assert.Equal(t, map[int]bool{0: true, 1: true}, results, c.Name)
		case c.Left == c.Right:
			assert.Equal(t, map[int]bool{0: true, 1: true}, results, c.Name)
		default:
			assert.Equal(t, map[int]bool{-1: true, 0: true, 1: true}, results, c.Name)
		}
	}
}

func TestCatalogue_EqualMergesClasses(t *testing.T) {
	for _, c := range All() {
		if c.Left.Sentinel() || c.Right.Sentinel() {
			continue
		}
		merged := c.Left.ClassSize() + c.Right.ClassSize()
		for _, o := range c.Outcomes {
			if o.Result != 0 {
				continue
			}
			switch merged {
			case 2:
				assert.Equal(t, 2, o.Delta.U2, c.Name)
			case 3:
				assert.Equal(t, 3, o.Delta.U3, c.Name)
			default:
				assert.Equal(t, merged, o.Delta.Zero, "%s: oversized class is all zero", c.Name)
			}
		}
	}
}

func TestCatalogue_SentinelPreconditions(t *testing.T) {
	p := position.Position{U1: 5, U2: 4, U3: 6}
	for _, c := range All() {
		switch c.Right {
		case Zero:
			assert.Equal(t, position.Delta{Zero: 1}, c.Requires, c.Name)
			assert.False(t, c.Applicable(p), c.Name)
		case One:
			assert.Equal(t, position.Delta{One: 1}, c.Requires, c.Name)
			assert.False(t, c.Applicable(p), c.Name)
		default:
			assert.True(t, c.Requires.IsZero(), c.Name)
			assert.True(t, c.Applicable(p), c.Name)
		}
	}
}

func TestCatalogue_Operands(t *testing.T) {
	id, ok := Lookup("u2_u2")
	require.True(t, ok)
	c := Get(id)
	assert.Equal(t, position.Delta{U2: 4}, c.Operands())
	assert.False(t, c.Applicable(position.Position{U1: 8, U2: 2}))
	assert.True(t, c.Applicable(position.Position{U2: 4}))

	id, ok = Lookup("u1_u3")
	require.True(t, ok)
	assert.Equal(t, position.Delta{U1: 1, U3: 3}, Get(id).Operands())
	assert.False(t, Get(id).Applicable(position.Position{U1: 3}))
}

func TestLookup(t *testing.T) {
	id, ok := Lookup("u2_u3")
	require.True(t, ok)
	assert.Equal(t, Pair, Get(id).Left)
	assert.Equal(t, Triple, Get(id).Right)

	_, ok = Lookup("zero_one")
	assert.False(t, ok)

	id, ok = ForLabels(Zero, Single)
	require.True(t, ok)
	assert.Equal(t, "u1_zero", Get(id).Name)
}

func TestParseLabels(t *testing.T) {
	id, err := ParseLabels("u1,one")
	require.NoError(t, err)
	assert.Equal(t, "u1_one", Get(id).Name)

	id, err = ParseLabels("u3_u1")
	require.NoError(t, err)
	assert.Equal(t, "u1_u3", Get(id).Name)

	_, err = ParseLabels("u1")
	assert.Error(t, err)
	_, err = ParseLabels("u4,u1")
	assert.Error(t, err)
	_, err = ParseLabels("zero,one")
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "u2", Pair.String())
	assert.Equal(t, "Label(9)", Label(9).String())
	assert.True(t, One.Sentinel())
	assert.Equal(t, 0, Zero.ClassSize())

	l, err := ParseLabel("zero")
	require.NoError(t, err)
	assert.Equal(t, Zero, l)
}
