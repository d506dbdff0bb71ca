// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
)

// ErrInconsistent is returned when comparator answers contradict each
// other, e.g. an element proven equal to a confirmed 0 later compares
// greater than it.
var ErrInconsistent = errors.New("comparator results are inconsistent")

// Partition tracks the equivalence classes of one problem instance.
//
// Elements 0..n-1 are the instance; element n is the confirmed-0 sentinel
// and n+1 the confirmed-1 sentinel. Undetermined class roots are bucketed
// by class size so the signature and representative lookups never scan
// the instance.
type Partition struct {
	n       int
	set     *DisjointSet
	buckets [position.MaxClassSize + 1]*rootSet

	// reps holds one ordinary element per sentinel class, -1 while the
	// class is empty.
	reps [2]int
}

const (
	zeroSlot = 0
	oneSlot  = 1
)

// NewPartition starts n singleton classes and two empty sentinel classes.
func NewPartition(n int) *Partition {
	p := &Partition{
		n:    n,
		set:  NewDisjointSet(n, 2),
		reps: [2]int{-1, -1},
	}
	for size := 1; size <= position.MaxClassSize; size++ {
		p.buckets[size] = newRootSet(n + 2)
	}
	for i := range n {
		p.buckets[1].Insert(i)
	}
	return p
}

// N returns the instance size.
func (p *Partition) N() int {
	return p.n
}

func (p *Partition) sentinel(slot int) int {
	return p.n + slot
}

// Same reports whether i and j are in one class.
func (p *Partition) Same(i, j int) bool {
	return p.set.Same(i, j)
}

func (p *Partition) known(root int) bool {
	return root == p.set.Root(p.sentinel(zeroSlot)) || root == p.set.Root(p.sentinel(oneSlot))
}

// Signature reduces the partition to the position it stands for.
// It does not mutate the partition beyond path splitting.
func (p *Partition) Signature() position.Position {
	return position.Position{
		U1:   p.buckets[1].Len(),
		U2:   2 * p.buckets[2].Len(),
		U3:   3 * p.buckets[3].Len(),
		Zero: p.set.Size(p.sentinel(zeroSlot)),
		One:  p.set.Size(p.sentinel(oneSlot)),
	}
}

// Class returns the label of the class holding i.
func (p *Partition) Class(i int) catalogue.Label {
	root := p.set.Root(i)
	switch {
	case root == p.set.Root(p.sentinel(zeroSlot)):
		return catalogue.Zero
	case root == p.set.Root(p.sentinel(oneSlot)):
		return catalogue.One
	}
	switch p.set.Size(root) {
	case 1:
		return catalogue.Single
	case 2:
		return catalogue.Pair
	default:
		return catalogue.Triple
	}
}

func (p *Partition) union(a, b int) {
	ra, rb := p.set.Root(a), p.set.Root(b)
	if ra == rb {
		return
	}
	for _, r := range [2]int{ra, rb} {
		if size := p.set.Size(r); size >= 1 && size <= position.MaxClassSize {
			p.buckets[size].Remove(r)
		}
	}
	root, _ := p.set.Merge(ra, rb)

	for slot := range p.reps {
		if p.reps[slot] >= 0 || root != p.set.Root(p.sentinel(slot)) {
			continue
		}
		if a < p.n {
			p.reps[slot] = a
		} else if b < p.n {
			p.reps[slot] = b
		}
	}

	if size := p.set.Size(root); !p.known(root) && size <= position.MaxClassSize {
		p.buckets[size].Insert(root)
	}
}

// Register records compare(i, j) == result, where result has already been
// reduced to -1, 0 or +1.
//
// Equal classes merge, and a merged class larger than three can only hold
// zeros. Otherwise the smaller side's class joins confirmed-0 and the
// larger side's joins confirmed-1.
func (p *Partition) Register(i, j, result int) error {
	zero, one := p.sentinel(zeroSlot), p.sentinel(oneSlot)
	known := map[int]int{-1: zero, 1: one}

	if result == 0 {
		if p.crosses(i, j) {
			return fmt.Errorf("%w: %d and %d compare equal across confirmed classes", ErrInconsistent, i, j)
		}
		p.union(i, j)
		if p.set.Size(i) > position.MaxClassSize {
			p.union(zero, i)
		}
	} else {
		if p.set.Same(i, known[-result]) || p.set.Same(j, known[result]) {
			return fmt.Errorf("%w: %d vs %d = %d contradicts a confirmed class", ErrInconsistent, i, j, result)
		}
		p.union(known[result], i)
		p.union(known[-result], j)
	}
	if p.set.Same(zero, one) {
		return fmt.Errorf("%w: confirmed-0 and confirmed-1 classes met", ErrInconsistent)
	}
	if p.set.Size(one) > position.Target {
		return fmt.Errorf("%w: more than %d ones", ErrInconsistent, position.Target)
	}
	return nil
}

// crosses reports whether i and j sit in different confirmed classes.
func (p *Partition) crosses(i, j int) bool {
	ci, cj := p.Class(i), p.Class(j)
	return ci.Sentinel() && cj.Sentinel() && ci != cj
}

// Representatives picks one element for each operand of c. Two operands
// of the same kind come from different classes.
func (p *Partition) Representatives(c catalogue.Comparison) (int, int) {
	taken := [position.MaxClassSize + 1]int{}
	pick := func(l catalogue.Label) int {
		switch l {
		case catalogue.Zero:
			return p.mustRep(zeroSlot, c)
		case catalogue.One:
			return p.mustRep(oneSlot, c)
		}
		size := l.ClassSize()
		bucket := p.buckets[size]
		if taken[size] >= bucket.Len() {
			panic(fmt.Sprintf("executor: %s needs %d classes of size %d, have %d", c.Name, taken[size]+1, size, bucket.Len()))
		}
		root := bucket.At(taken[size])
		taken[size]++
		return root
	}
	i := pick(c.Left)
	j := pick(c.Right)
	return i, j
}

func (p *Partition) mustRep(slot int, c catalogue.Comparison) int {
	if p.reps[slot] < 0 {
		panic(fmt.Sprintf("executor: %s prescribed with an empty sentinel class", c.Name))
	}
	return p.reps[slot]
}

// Solution returns the three ones once the position is terminal. Every
// element of confirmed-1 is a one, as is every element of an undetermined
// class whose size the witness marks.
func (p *Partition) Solution(witness position.Delta) [position.Target]int {
	marked := [position.MaxClassSize + 1]bool{false, witness.U1 != 0, witness.U2 != 0, witness.U3 != 0}
	one := p.set.Root(p.sentinel(oneSlot))

	var ones []int
	for i := range p.n {
		root := p.set.Root(i)
		if root == one {
			ones = append(ones, i)
			continue
		}
		if size := p.set.Size(root); !p.known(root) && size <= position.MaxClassSize && marked[size] {
			ones = append(ones, i)
		}
	}
	if len(ones) != position.Target {
		panic(fmt.Sprintf("executor: witness %s selects %d elements %v", witness, len(ones), ones))
	}
	slices.Sort(ones)
	return [position.Target]int(ones)
}
