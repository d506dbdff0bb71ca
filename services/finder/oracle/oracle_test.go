// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/threeones/services/finder/position"
)

// bruteCount enumerates every subset of classes and counts those whose
// sizes sum to remaining, saturated at limit.
func bruteCount(u1, u2, u3, remaining, limit int) int {
	var sizes []int
	for i := 0; i < u1; i++ {
		sizes = append(sizes, 1)
	}
	for i := 0; i < u2/2; i++ {
		sizes = append(sizes, 2)
	}
	for i := 0; i < u3/3; i++ {
		sizes = append(sizes, 3)
	}
	count := 0
	for mask := 0; mask < 1<<len(sizes); mask++ {
		sum := 0
		for i, s := range sizes {
			if mask&(1<<i) != 0 {
				sum += s
			}
		}
		if sum == remaining {
			count++
		}
	}
	return min(count, limit)
}

func TestCountConsistent_MatchesEnumeration(t *testing.T) {
	o := New()
	for u1 := 0; u1 <= 5; u1++ {
		for u2 := 0; u2 <= 8; u2 += 2 {
			for u3 := 0; u3 <= 9; u3 += 3 {
				for remaining := 0; remaining <= 3; remaining++ {
					for limit := 1; limit <= 2; limit++ {
						want := bruteCount(u1, u2, u3, remaining, limit)
						got := o.CountConsistent(u1, u2, u3, remaining, limit)
						assert.Equal(t, want, got, "count(%d, %d, %d, %d, limit=%d)", u1, u2, u3, remaining, limit)
					}
				}
			}
		}
	}
}

func TestCountConsistent_BaseCases(t *testing.T) {
	o := New()

	assert.Equal(t, 0, o.CountConsistent(-1, 0, 0, 1, 2), "negative component")
	assert.Equal(t, 0, o.CountConsistent(3, 0, 0, -1, 2), "negative remaining")
	assert.Equal(t, 0, o.CountConsistent(5, 0, 0, 4, 2), "remaining above target")
	assert.Equal(t, 0, o.CountConsistent(3, 0, 0, 3, 0), "non-positive limit")
	assert.Equal(t, 1, o.CountConsistent(0, 4, 3, 0, 2), "nothing left to find")
	assert.Equal(t, 2, o.CountConsistent(4, 0, 0, 3, 2), "more singletons than needed")
	assert.Equal(t, 1, o.CountConsistent(4, 0, 0, 3, 1), "saturates at limit")
	assert.Equal(t, 0, o.CountConsistent(0, 0, 0, 2, 2), "no classes left")
}

func TestCountConsistent_NeverExceedsLimit(t *testing.T) {
	o := New()
	for u1 := 0; u1 <= 12; u1++ {
		for u2 := 0; u2 <= 12; u2 += 2 {
			for u3 := 0; u3 <= 12; u3 += 3 {
				for remaining := 0; remaining <= 3; remaining++ {
					n := o.CountConsistent(u1, u2, u3, remaining, 2)
					require.GreaterOrEqual(t, n, 0)
					require.LessOrEqual(t, n, 2)
				}
			}
		}
	}
}

func TestWitness(t *testing.T) {
	tests := []struct {
		name          string
		u1, u2, u3, r int
		want          position.Delta
		ok            bool
	}{
		{"nothing to find", 3, 2, 0, 0, position.Delta{}, true},
		{"singletons suffice", 3, 0, 0, 3, position.Delta{U1: 3}, true},
		{"pair completes", 0, 2, 0, 2, position.Delta{U2: 2}, true},
		{"single plus pair", 1, 2, 0, 3, position.Delta{U1: 1, U2: 2}, true},
		{"triple only", 0, 4, 3, 3, position.Delta{U3: 3}, true},
		{"impossible", 0, 4, 0, 3, position.Delta{}, false},
		{"negative", -1, 0, 0, 1, position.Delta{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New()
			got, ok := o.Witness(tt.u1, tt.u2, tt.u3, tt.r)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWitness_AgreesWithCount(t *testing.T) {
	o := New()
	for u1 := 0; u1 <= 6; u1++ {
		for u2 := 0; u2 <= 10; u2 += 2 {
			for u3 := 0; u3 <= 9; u3 += 3 {
				for remaining := 0; remaining <= 3; remaining++ {
					d, ok := o.Witness(u1, u2, u3, remaining)
					n := o.CountConsistent(u1, u2, u3, remaining, DefaultLimit)
					require.Equal(t, n != 0, ok, "(%d, %d, %d) remaining %d", u1, u2, u3, remaining)
					if ok {
						assert.Equal(t, remaining, d.Sum())
						assert.LessOrEqual(t, d.U1, u1)
						assert.LessOrEqual(t, d.U2, u2)
						assert.LessOrEqual(t, d.U3, u3)
					}
				}
			}
		}
	}
}

func TestOracle_PositionHelpers(t *testing.T) {
	o := New()

	assert.True(t, o.Determined(position.Start(3)))
	assert.False(t, o.Determined(position.Start(4)))
	assert.True(t, o.Legal(position.Start(4)))
	assert.False(t, o.Legal(position.Position{U2: 4}), "two pairs cannot hold three ones")

	d, ok := o.Assignment(position.Position{U2: 2, Zero: 1, One: 1})
	require.True(t, ok)
	assert.Equal(t, position.Delta{U2: 2}, d)

	stats := o.Stats()
	assert.Greater(t, stats.CountEntries+stats.WitnessEntries, 0)
	assert.Greater(t, stats.Misses, int64(0))
}

func TestOracle_IsolatedCaches(t *testing.T) {
	a, b := New(), New()
	a.Count(position.Position{U1: 1, U2: 4, U3: 3})
	assert.NotZero(t, a.Stats().CountEntries)
	assert.Zero(t, b.Stats().CountEntries)
}
