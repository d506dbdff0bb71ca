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

// DisjointSet is a fixed-size union-find over 0-based element indices.
//
// Ordinary elements weigh 1. Sentinel elements weigh 0, so the size of a
// set counts only the ordinary elements it holds; the confirmed-0 and
// confirmed-1 classes start out as empty sentinel sets.
type DisjointSet struct {
	items []item
}

type item struct {
	parent int // equals itself at a root
	size   int // only meaningful at a root
}

// NewDisjointSet creates elements 0..elements-1 followed by sentinels
// elements..elements+sentinels-1, each in its own set.
func NewDisjointSet(elements, sentinels int) *DisjointSet {
	d := &DisjointSet{items: make([]item, elements+sentinels)}
	for i := range d.items {
		d.items[i] = item{parent: i, size: 1}
		if i >= elements {
			d.items[i].size = 0
		}
	}
	return d
}

// Len returns the number of elements including sentinels.
func (d *DisjointSet) Len() int {
	return len(d.items)
}

// Root returns the root of the set holding i.
func (d *DisjointSet) Root(i int) int {
	for {
		parent := d.items[i].parent
		if parent == i {
			return i
		}
		// Path splitting: point each visited node at its grandparent.
		i, d.items[i].parent = parent, d.items[parent].parent
	}
}

// Size returns the weight of the set holding i.
func (d *DisjointSet) Size(i int) int {
	return d.items[d.Root(i)].size
}

// Same reports whether i and j are in one set.
func (d *DisjointSet) Same(i, j int) bool {
	return d.Root(i) == d.Root(j)
}

// Merge unions the sets of i and j and returns the new root. The heavier
// root wins; on a tie the root of i does. merged is false when i and j
// already shared a set.
func (d *DisjointSet) Merge(i, j int) (root int, merged bool) {
	i, j = d.Root(i), d.Root(j)
	if i == j {
		return i, false
	}
	if d.items[i].size < d.items[j].size {
		i, j = j, i
	}
	d.items[j].parent = i
	d.items[i].size += d.items[j].size
	return i, true
}
