// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_Add(t *testing.T) {
	p := Start(10)
	next := p.Add(Delta{U1: -2, U2: 2})

	assert.Equal(t, Position{U1: 8, U2: 2}, next)
	assert.Equal(t, 10, next.Total())
	assert.Equal(t, Position{U1: 10}, p, "Add must not mutate the receiver")
}

func TestPosition_Covers(t *testing.T) {
	p := Position{U1: 3, Zero: 1}

	assert.True(t, p.Covers(Delta{}))
	assert.True(t, p.Covers(Delta{Zero: 1}))
	assert.False(t, p.Covers(Delta{One: 1}))
}

func TestPosition_Components(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want int
	}{
		{"start", Start(100), 100},
		{"pairs", Position{U1: 4, U2: 6}, 7},
		{"triples", Position{U2: 2, U3: 9, Zero: 2}, 4},
		{"resolved", Position{Zero: 97, One: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.Components())
		})
	}
}

func TestPosition_Remaining(t *testing.T) {
	assert.Equal(t, 3, Start(5).Remaining())
	assert.Equal(t, 1, Position{U1: 3, One: 2}.Remaining())
}

func TestSignature_RoundTrip(t *testing.T) {
	positions := []Position{
		Start(100),
		{U1: 1, U2: 2, U3: 3, Zero: 4, One: 3},
		{U1: MaxN},
		{Zero: 97, One: 3},
	}
	seen := make(map[uint64]Position)
	for _, p := range positions {
		sig := p.Signature()
		assert.Equal(t, p, DecodeSignature(sig))
		if other, dup := seen[sig]; dup {
			t.Fatalf("signature collision between %s and %s", p, other)
		}
		seen[sig] = p
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("(4, 2, 3, 1, 0)")
	require.NoError(t, err)
	assert.Equal(t, Position{U1: 4, U2: 2, U3: 3, Zero: 1}, p)
	assert.Equal(t, "(4, 2, 3, 1, 0)", p.String())

	p, err = Parse("6,0,0,0,0")
	require.NoError(t, err)
	assert.Equal(t, Start(6), p)

	_, err = Parse("1,2,3")
	assert.Error(t, err)

	_, err = Parse("1,1,0,0,0")
	assert.Error(t, err, "odd u2 is not a valid position")

	_, err = Parse("1,x,0,0,0")
	assert.Error(t, err)
}

func TestDelta(t *testing.T) {
	d := Delta{U1: 1}.Plus(Delta{U2: 2})
	assert.Equal(t, Delta{U1: 1, U2: 2}, d)
	assert.Equal(t, 3, d.Sum())
	assert.False(t, d.IsZero())
	assert.True(t, Delta{}.IsZero())
	assert.Equal(t, "(1, 2, 0, 0, 0)", d.String())

	parsed, err := ParseDelta("(0, 2, 0, 0, 1)")
	require.NoError(t, err)
	assert.Equal(t, Delta{U2: 2, One: 1}, parsed)
}
