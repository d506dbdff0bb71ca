// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the decision graph: for every legal abstract position
// reachable from the start, the comparison that minimises the worst-case
// number of further comparisons, and that worst-case count (the value).
//
// # Structure
//
// Nodes live in an arena indexed by NodeID and are memoized by position, so
// a position reached along several paths shares one node. Edges refer to
// children by ID. The graph is a DAG: the number of undetermined classes
// strictly decreases along every edge.
//
// # Selection Rule
//
// For each applicable comparison the legal outcomes are ordered by
// (child value, -|result|); the last entry is the adversary's best reply.
// Comparisons are then ordered by (worst child value, priority) and the
// first one is chosen. A node's value is one more than the chosen
// comparison's worst child value; determined positions have value 0.
package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
)

// NodeID indexes a node in a Graph's arena.
type NodeID int32

// NoNode marks the absence of a node (an illegal position).
const NoNode NodeID = -1

// ErrInvalidSize is returned when a build is requested for an instance
// size outside [position.Target, position.MaxN].
var ErrInvalidSize = errors.New("instance size out of range")

// OutcomeEdge links a comparator result to the resulting child node.
type OutcomeEdge struct {
	Result int
	Child  NodeID
}

// ComparisonEdge is one applicable comparison with its legal outcomes,
// ordered best first so the last outcome is the worst case.
type ComparisonEdge struct {
	Comparison catalogue.ID
	Outcomes   []OutcomeEdge
}

// Worst returns the adversary's best reply to this comparison.
func (e ComparisonEdge) Worst() OutcomeEdge {
	return e.Outcomes[len(e.Outcomes)-1]
}

// Node is one legal position in the decision graph.
type Node struct {
	Position position.Position

	// Value is the worst-case number of comparisons still needed.
	Value int

	// Terminal nodes have exactly one consistent assignment.
	Terminal bool

	// Witness is the assignment of ones to undetermined classes at a
	// terminal node. Zero for non-terminal nodes.
	Witness position.Delta

	// Edges holds every comparison with at least one legal outcome,
	// ordered best first. Edges[0] is the chosen comparison.
	Edges []ComparisonEdge
}

// Choice returns the chosen comparison edge. It panics on terminal nodes.
func (n *Node) Choice() ComparisonEdge {
	if n.Terminal {
		panic(fmt.Sprintf("graph: terminal node %s has no choice", n.Position))
	}
	return n.Edges[0]
}

// Stats summarises a build.
type Stats struct {
	Nodes     int
	Terminals int
	Edges     int
	Value     int
	Duration  time.Duration
}

// Graph is an immutable decision graph for one instance size.
type Graph struct {
	n     int
	nodes []Node
	index map[position.Position]NodeID
	start NodeID
	stats Stats
}

// N returns the instance size the graph was built for.
func (g *Graph) N() int {
	return g.n
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Start returns the node for the initial position.
func (g *Graph) Start() *Node {
	return &g.nodes[g.start]
}

// StartID returns the ID of the initial node.
func (g *Graph) StartID() NodeID {
	return g.start
}

// At returns the node with the given ID.
func (g *Graph) At(id NodeID) *Node {
	return &g.nodes[id]
}

// Lookup returns the node for a position, or NoNode if the position is
// illegal or unreachable.
func (g *Graph) Lookup(p position.Position) NodeID {
	if id, ok := g.index[p]; ok {
		return id
	}
	return NoNode
}

// Node returns the node for a position, or nil.
func (g *Graph) Node(p position.Position) *Node {
	id := g.Lookup(p)
	if id == NoNode {
		return nil
	}
	return &g.nodes[id]
}

// Stats returns build statistics.
func (g *Graph) Stats() Stats {
	return g.stats
}

// Nodes iterates all nodes in arena order (children before parents).
func (g *Graph) Nodes(yield func(NodeID, *Node) bool) {
	for i := range g.nodes {
		if !yield(NodeID(i), &g.nodes[i]) {
			return
		}
	}
}

// Step is one move along a line of play.
type Step struct {
	Position   position.Position
	Value      int
	Comparison string
	Result     int
}

// PrincipalLine follows the chosen comparison and its worst outcome from
// the start until a terminal node. The final step has no comparison.
func (g *Graph) PrincipalLine() []Step {
	var line []Step
	node := g.Start()
	for !node.Terminal {
		choice := node.Choice()
		worst := choice.Worst()
		line = append(line, Step{
			Position:   node.Position,
			Value:      node.Value,
			Comparison: catalogue.Get(choice.Comparison).Name,
			Result:     worst.Result,
		})
		node = g.At(worst.Child)
	}
	return append(line, Step{Position: node.Position, Value: node.Value})
}

// sortOutcomes orders outcomes by (child value, -|result|), stable so that
// equal keys keep catalogue order.
func sortOutcomes(g *Graph, outcomes []OutcomeEdge) {
	slices.SortStableFunc(outcomes, func(a, b OutcomeEdge) int {
		if c := cmp.Compare(g.nodes[a.Child].Value, g.nodes[b.Child].Value); c != 0 {
			return c
		}
		return cmp.Compare(-abs(a.Result), -abs(b.Result))
	})
}

// sortComparisons orders comparison edges by (worst child value, priority).
func sortComparisons(g *Graph, edges []ComparisonEdge) {
	slices.SortStableFunc(edges, func(a, b ComparisonEdge) int {
		av, bv := g.nodes[a.Worst().Child].Value, g.nodes[b.Worst().Child].Value
		if c := cmp.Compare(av, bv); c != 0 {
			return c
		}
		return cmp.Compare(catalogue.Get(a.Comparison).Priority, catalogue.Get(b.Comparison).Priority)
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
