// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle decides whether an abstract position admits an assignment
// of hidden values consistent with exactly three ones, and reconstructs a
// witness assignment when one exists.
//
// Every undetermined class of size k contributes either 0 or k ones. The
// oracle counts the subsets of classes whose sizes sum to the number of
// ones still missing, saturating the count at a caller supplied limit, since
// the builder only needs to tell apart "none", "exactly one" and "several".
//
// # Caching
//
// Results are memoized in an Oracle value rather than in package state so
// that tests and concurrent builders can each own an isolated cache.
//
// # Thread Safety
//
// An Oracle is NOT safe for concurrent use. Give each builder its own.
package oracle

import (
	"fmt"

	"github.com/AleutianAI/threeones/services/finder/position"
)

// DefaultLimit distinguishes 0, 1 and "2 or more" consistent assignments.
const DefaultLimit = 2

type countKey struct {
	u1, u2, u3, remaining, limit int
}

type witnessKey struct {
	u1, u2, u3, remaining int
}

type witnessResult struct {
	delta position.Delta
	ok    bool
}

// Stats reports memo table sizes and lookup counters.
type Stats struct {
	CountEntries   int
	WitnessEntries int
	Hits           int64
	Misses         int64
}

// Oracle is a memoizing consistency oracle.
type Oracle struct {
	counts    map[countKey]int
	witnesses map[witnessKey]witnessResult
	hits      int64
	misses    int64
}

// New creates an Oracle with empty caches.
func New() *Oracle {
	return &Oracle{
		counts:    make(map[countKey]int),
		witnesses: make(map[witnessKey]witnessResult),
	}
}

// CountConsistent returns min(limit, number of ways to choose undetermined
// classes whose sizes sum to remaining).
//
// Inputs:
//
//	u1 - Elements in singleton classes (one class each).
//	u2 - Elements in classes of size two (u2/2 classes).
//	u3 - Elements in classes of size three (u3/3 classes).
//	remaining - Ones still to be located, 0..3.
//	limit - Saturation bound; the result is always within [0, limit].
//
// Outputs:
//
//	int - The saturated count.
func (o *Oracle) CountConsistent(u1, u2, u3, remaining, limit int) int {
	switch {
	case u1 < 0 || u2 < 0 || u3 < 0 || remaining < 0 || remaining > position.Target || limit <= 0:
		return 0
	case remaining == 0:
		return 1
	case u1 > remaining:
		// Two different singletons can each complete the target.
		return min(2, limit)
	}

	key := countKey{u1, u2, u3, remaining, limit}
	if n, ok := o.counts[key]; ok {
		o.hits++
		return n
	}
	o.misses++

	var n int
	switch {
	case u1 != 0:
		n = o.includeOrExclude(u1-1, u2, u3, remaining-1, remaining, limit)
	case u2 != 0:
		n = o.includeOrExclude(0, u2-2, u3, remaining-2, remaining, limit)
	default:
		n = o.includeOrExclude(0, 0, u3-3, remaining-3, remaining, limit)
	}
	o.counts[key] = n
	return n
}

// includeOrExclude sums the branch where the peeled class holds ones and
// the branch where it does not, shrinking the limit for the second branch.
func (o *Oracle) includeOrExclude(u1, u2, u3, with, without, limit int) int {
	n := o.CountConsistent(u1, u2, u3, with, limit)
	return n + o.CountConsistent(u1, u2, u3, without, limit-n)
}

// Witness returns one assignment of ones to undetermined classes: how many
// elements of each class size are ones. Singletons are saturated first,
// then pairs, then triples.
//
// The returned delta only uses the U1, U2 and U3 fields and they sum to
// remaining. The boolean is false when no assignment exists.
//
// A reconstructed assignment that does not add up panics: it means the
// recurrence itself is broken.
func (o *Oracle) Witness(u1, u2, u3, remaining int) (position.Delta, bool) {
	switch {
	case u1 < 0 || u2 < 0 || u3 < 0 || remaining < 0:
		return position.Delta{}, false
	case remaining == 0:
		return position.Delta{}, true
	case u1 >= remaining:
		return position.Delta{U1: remaining}, true
	}

	key := witnessKey{u1, u2, u3, remaining}
	if r, ok := o.witnesses[key]; ok {
		o.hits++
		return r.delta, r.ok
	}
	o.misses++

	var r witnessResult
	switch {
	case u1 != 0:
		r = o.takeOrSkip(position.Delta{U1: 1}, u1-1, u2, u3, remaining-1, remaining)
	case u2 != 0:
		r = o.takeOrSkip(position.Delta{U2: 2}, 0, u2-2, u3, remaining-2, remaining)
	default:
		r = o.takeOrSkip(position.Delta{U3: 3}, 0, 0, u3-3, remaining-3, remaining)
	}
	if r.ok {
		checkWitness(r.delta, u1, u2, u3, remaining)
	}
	o.witnesses[key] = r
	return r.delta, r.ok
}

func (o *Oracle) takeOrSkip(taken position.Delta, u1, u2, u3, with, without int) witnessResult {
	if d, ok := o.Witness(u1, u2, u3, with); ok {
		return witnessResult{delta: d.Plus(taken), ok: true}
	}
	d, ok := o.Witness(u1, u2, u3, without)
	return witnessResult{delta: d, ok: ok}
}

func checkWitness(d position.Delta, u1, u2, u3, remaining int) {
	if d.U1+d.U2+d.U3 != remaining || d.Zero != 0 || d.One != 0 ||
		d.U1 < 0 || d.U1 > u1 || d.U2 < 0 || d.U2 > u2 || d.U3 < 0 || d.U3 > u3 {
		panic(fmt.Sprintf("oracle: malformed witness %s for (%d, %d, %d) remaining %d", d, u1, u2, u3, remaining))
	}
}

// Count is CountConsistent for a position with the default limit.
func (o *Oracle) Count(p position.Position) int {
	return o.CountConsistent(p.U1, p.U2, p.U3, p.Remaining(), DefaultLimit)
}

// Legal reports whether at least one assignment is consistent with p.
func (o *Oracle) Legal(p position.Position) bool {
	return o.Count(p) != 0
}

// Determined reports whether exactly one assignment is consistent with p.
func (o *Oracle) Determined(p position.Position) bool {
	return o.Count(p) == 1
}

// Assignment is Witness for a position.
func (o *Oracle) Assignment(p position.Position) (position.Delta, bool) {
	return o.Witness(p.U1, p.U2, p.U3, p.Remaining())
}

// Stats returns the current cache statistics.
func (o *Oracle) Stats() Stats {
	return Stats{
		CountEntries:   len(o.counts),
		WitnessEntries: len(o.witnesses),
		Hits:           o.hits,
		Misses:         o.misses,
	}
}
