// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package position defines the abstract search state used by the decision
// table builder and the executor.
//
// A Position summarises a partition of N elements into the counts of
// elements held in undetermined classes of size one, two and three, plus
// the elements already known to be 0 or 1. Positions are plain comparable
// values so they can key maps directly.
package position

import (
	"fmt"
	"strconv"
	"strings"
)

// Target is the number of elements holding value 1.
const Target = 3

// MaxClassSize is the largest undetermined class that can still hold ones.
const MaxClassSize = 3

const (
	fieldBits = 12
	fieldMask = 1<<fieldBits - 1

	// MaxN is the largest instance size whose positions fit in a Signature.
	MaxN = fieldMask
)

// Delta is a change vector over the five position fields.
//
// Deltas describe how one comparison outcome transforms a position, and
// also serve as lower bounds (preconditions) and witness assignments.
type Delta struct {
	U1   int
	U2   int
	U3   int
	Zero int
	One  int
}

// Position is the abstract state (u1, u2, u3, zero, one).
//
// U2 and U3 count elements, not classes: U2 is always even and U3 always a
// multiple of three.
type Position struct {
	U1   int
	U2   int
	U3   int
	Zero int
	One  int
}

// Start returns the initial position for n elements: every element is its
// own undetermined singleton class.
func Start(n int) Position {
	return Position{U1: n}
}

// Add applies a delta and returns the successor position.
func (p Position) Add(d Delta) Position {
	return Position{
		U1:   p.U1 + d.U1,
		U2:   p.U2 + d.U2,
		U3:   p.U3 + d.U3,
		Zero: p.Zero + d.Zero,
		One:  p.One + d.One,
	}
}

// Covers reports whether every field of p is at least the matching field
// of lower. It is used to test comparison preconditions.
func (p Position) Covers(lower Delta) bool {
	return p.U1 >= lower.U1 &&
		p.U2 >= lower.U2 &&
		p.U3 >= lower.U3 &&
		p.Zero >= lower.Zero &&
		p.One >= lower.One
}

// Components is the number of undetermined classes. It strictly decreases
// along every edge of the decision graph.
func (p Position) Components() int {
	return p.U1 + p.U2/2 + p.U3/3
}

// Remaining is the number of ones not yet confirmed.
func (p Position) Remaining() int {
	return Target - p.One
}

// Total is the number of elements the position accounts for.
func (p Position) Total() int {
	return p.U1 + p.U2 + p.U3 + p.Zero + p.One
}

// Valid reports whether all fields are non-negative and the class totals
// are multiples of their class size.
func (p Position) Valid() bool {
	return p.U1 >= 0 && p.U2 >= 0 && p.U3 >= 0 && p.Zero >= 0 && p.One >= 0 &&
		p.U2%2 == 0 && p.U3%3 == 0
}

// Signature packs the position into a compact numeric key.
//
// Each field takes twelve bits. Callers must ensure the position is Valid
// and its Total does not exceed MaxN.
func (p Position) Signature() uint64 {
	return uint64(p.U1)<<(4*fieldBits) |
		uint64(p.U2)<<(3*fieldBits) |
		uint64(p.U3)<<(2*fieldBits) |
		uint64(p.Zero)<<fieldBits |
		uint64(p.One)
}

// DecodeSignature is the inverse of Position.Signature.
func DecodeSignature(sig uint64) Position {
	return Position{
		U1:   int(sig >> (4 * fieldBits) & fieldMask),
		U2:   int(sig >> (3 * fieldBits) & fieldMask),
		U3:   int(sig >> (2 * fieldBits) & fieldMask),
		Zero: int(sig >> fieldBits & fieldMask),
		One:  int(sig & fieldMask),
	}
}

// Fields returns the position as a five element array.
func (p Position) Fields() [5]int {
	return [5]int{p.U1, p.U2, p.U3, p.Zero, p.One}
}

// String renders the position as "(u1, u2, u3, zero, one)".
func (p Position) String() string {
	return formatTuple(p.Fields())
}

// Fields returns the delta as a five element array.
func (d Delta) Fields() [5]int {
	return [5]int{d.U1, d.U2, d.U3, d.Zero, d.One}
}

// Plus returns the field-wise sum of two deltas.
func (d Delta) Plus(o Delta) Delta {
	return Delta{
		U1:   d.U1 + o.U1,
		U2:   d.U2 + o.U2,
		U3:   d.U3 + o.U3,
		Zero: d.Zero + o.Zero,
		One:  d.One + o.One,
	}
}

// Sum returns the sum of all five fields.
func (d Delta) Sum() int {
	return d.U1 + d.U2 + d.U3 + d.Zero + d.One
}

// IsZero reports whether every field is zero.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// String renders the delta as "(u1, u2, u3, zero, one)".
func (d Delta) String() string {
	return formatTuple(d.Fields())
}

// Parse reads a position from "u1,u2,u3,zero,one". Surrounding parentheses
// and spaces are ignored.
func Parse(s string) (Position, error) {
	fields, err := parseTuple(s)
	if err != nil {
		return Position{}, err
	}
	p := Position{U1: fields[0], U2: fields[1], U3: fields[2], Zero: fields[3], One: fields[4]}
	if !p.Valid() {
		return Position{}, fmt.Errorf("invalid position %s", p)
	}
	return p, nil
}

// ParseDelta reads a delta from "u1,u2,u3,zero,one".
func ParseDelta(s string) (Delta, error) {
	fields, err := parseTuple(s)
	if err != nil {
		return Delta{}, err
	}
	return Delta{U1: fields[0], U2: fields[1], U3: fields[2], Zero: fields[3], One: fields[4]}, nil
}

func parseTuple(s string) ([5]int, error) {
	var out [5]int
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != len(out) {
		return out, fmt.Errorf("expected 5 fields, got %d in %q", len(parts), s)
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return out, fmt.Errorf("field %d of %q: %w", i, s, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatTuple(f [5]int) string {
	return fmt.Sprintf("(%d, %d, %d, %d, %d)", f[0], f[1], f[2], f[3], f[4])
}
