// SPDX-License-Identifier: MPL-2.0

// Package dag orders command dependencies. An edge from a dependency to its
// dependent means the dependency runs first.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError reports dependencies that can never be fully ordered.
	CycleError struct {
		// Cycle is a closed path: its first and last elements are the same
		// node.
		Cycle []string
	}

	// Graph is a directed graph keyed by command name. Iteration follows
	// insertion order so that results are stable between runs.
	Graph struct {
		edges map[string][]string
		nodes []string
		index map[string]int
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		edges: make(map[string][]string),
		index: make(map[string]int),
	}
}

// AddNode adds name unless it is already present.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must run before to. Missing nodes are added and
// repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

// Has reports whether name is a node of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// TopologicalSort returns an order in which every node follows all of its
// predecessors, using Kahn's algorithm. Nodes that become ready together
// keep their insertion order. A graph with a cycle returns *CycleError.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.edges {
		for _, to := range targets {
			inDegree[to]++
		}
	}

	var queue []string
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, to := range g.edges[n] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.FindCycle()}
	}
	return order, nil
}

// FindCycle returns the first cycle found by a depth-first walk in
// insertion order, as a closed path, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = onPath
		path = append(path, n)
		for _, to := range g.edges[n] {
			switch state[to] {
			case onPath:
				start := slices.Index(path, to)
				return append(slices.Clone(path[start:]), to)
			case unvisited:
				if c := visit(to); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		return nil
	}

	for _, n := range g.nodes {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}
