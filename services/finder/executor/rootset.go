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

// rootSet is a sparse set of class roots. Insert, Remove and Contains are
// O(1) and the members stay densely packed, so picking a representative is
// a slice index.
type rootSet struct {
	sparse []int
	dense  []int
}

func newRootSet(capacity int) *rootSet {
	return &rootSet{
		sparse: make([]int, capacity),
		dense:  make([]int, 0, capacity),
	}
}

func (s *rootSet) Contains(v int) bool {
	idx := s.sparse[v]
	return idx < len(s.dense) && s.dense[idx] == v
}

func (s *rootSet) Insert(v int) {
	if s.Contains(v) {
		return
	}
	s.sparse[v] = len(s.dense)
	s.dense = append(s.dense, v)
}

// Remove swaps the last member into v's slot.
func (s *rootSet) Remove(v int) {
	if !s.Contains(v) {
		return
	}
	idx := s.sparse[v]
	last := s.dense[len(s.dense)-1]
	s.dense[idx] = last
	s.sparse[last] = idx
	s.dense = s.dense[:len(s.dense)-1]
}

func (s *rootSet) Len() int {
	return len(s.dense)
}

// At returns the k-th member in the current packing.
func (s *rootSet) At(k int) int {
	return s.dense[k]
}
