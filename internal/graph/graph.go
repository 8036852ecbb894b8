// Package graph implements a directed graph over comparable vertices with
// edge labels, and a deterministic topological flatten via Kahn's algorithm.
//
// It backs both module dependency resolution (internal/kmod) and sphere
// activation ordering (internal/supervisor): both problems reduce to "order
// a DAG, detect cycles", so the primitive is implemented once here.
package graph

import "fmt"

// Graph is a directed graph over vertices of type V, with edges labelled L.
// The zero value is not usable; construct with New.
type Graph[V comparable, L any] struct {
	vertices []V
	index    map[V]int
	edges    map[V][]edge[V, L]
}

type edge[V comparable, L any] struct {
	label L
	to    V
}

// New returns an empty graph.
func New[V comparable, L any]() *Graph[V, L] {
	return &Graph[V, L]{
		index: make(map[V]int),
		edges: make(map[V][]edge[V, L]),
	}
}

// AddVertex adds v to the graph if it isn't already present. It is safe to
// call with a vertex that already exists; the call is then a no-op.
func (g *Graph[V, L]) AddVertex(v V) {
	if _, ok := g.index[v]; ok {
		return
	}
	g.index[v] = len(g.vertices)
	g.vertices = append(g.vertices, v)
}

// AddEdge adds a directed, labelled edge from -> to, adding either endpoint
// as a vertex first if necessary.
func (g *Graph[V, L]) AddEdge(from V, label L, to V) {
	g.AddVertex(from)
	g.AddVertex(to)
	g.edges[from] = append(g.edges[from], edge[V, L]{label: label, to: to})
}

// Vertices returns the vertices in insertion order.
func (g *Graph[V, L]) Vertices() []V {
	out := make([]V, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// CycleError reports that Flatten could not produce a total order, because
// residual edges remained after every vertex with in-degree zero was removed.
type CycleError[V comparable] struct {
	// Remaining holds the vertices that could not be ordered, in a
	// deterministic (insertion) order.
	Remaining []V
}

func (e *CycleError[V]) Error() string {
	return fmt.Sprintf("graph: cycle detected, %d vertices could not be ordered: %v", len(e.Remaining), e.Remaining)
}

// Flatten returns a topological ordering of the graph's vertices, such that
// for every edge (u,v), index(u) < index(v) in the result. Vertices that are
// ready at the start are taken in vertex insertion order, and vertices freed
// later in the edge order of the vertex that freed them, so the result is
// deterministic for a given sequence of AddVertex/AddEdge calls.
//
// If the graph contains a cycle, Flatten returns a *CycleError naming every
// vertex that could not be scheduled.
func (g *Graph[V, L]) Flatten() ([]V, error) {
	inDegree := make(map[V]int, len(g.vertices))
	for _, v := range g.vertices {
		inDegree[v] = 0
	}
	for _, froms := range g.edges {
		for _, e := range froms {
			inDegree[e.to]++
		}
	}

	// ready is maintained as a FIFO queue seeded in vertex insertion order
	// and refilled in edge insertion order, which is what gives the result
	// its determinism.
	var ready []V
	remaining := make(map[V]bool, len(g.vertices))
	for _, v := range g.vertices {
		remaining[v] = true
		if inDegree[v] == 0 {
			ready = append(ready, v)
		}
	}

	var out []V
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		if !remaining[v] {
			continue
		}
		delete(remaining, v)
		out = append(out, v)

		for _, e := range g.edges[v] {
			if !remaining[e.to] {
				continue
			}
			inDegree[e.to]--
			if inDegree[e.to] == 0 {
				ready = append(ready, e.to)
			}
		}
	}

	if len(remaining) > 0 {
		var left []V
		for _, v := range g.vertices {
			if remaining[v] {
				left = append(left, v)
			}
		}
		return nil, &CycleError[V]{Remaining: left}
	}

	return out, nil
}
