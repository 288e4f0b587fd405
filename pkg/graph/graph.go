// Package graph holds the collaboration graph: an undirected, unweighted
// graph over Directory entity ids.
//
// A graph lives in two forms. Graph is the mutable build form, filled one
// relation at a time by Build. Store is the immutable form produced by
// Graph.Freeze or Decode; it is the only form ever handed to readers, and
// it can be shared by any number of goroutines without locking.
package graph

import "slices"

// ID is a Directory entity id.
type ID = int64

// Graph is the build-time adjacency: a set of neighbours per node.
// It is not safe for concurrent use.
type Graph struct {
	adj   map[ID]map[ID]struct{}
	edges int
}

// New returns an empty build graph. sizeHint pre-sizes the node table and
// may be zero.
func New(sizeHint int) *Graph {
	return &Graph{adj: make(map[ID]map[ID]struct{}, sizeHint)}
}

// AddEdge records the undirected relation u-v. Repeated pairs, in either
// orientation, collapse into one edge and self-pairs are ignored. It
// reports whether a new edge was added.
func (g *Graph) AddEdge(u, v ID) bool {
	if u == v {
		return false
	}
	nu := g.neighbours(u)
	if _, ok := nu[v]; ok {
		return false
	}
	nu[v] = struct{}{}
	g.neighbours(v)[u] = struct{}{}
	g.edges++
	return true
}

func (g *Graph) neighbours(id ID) map[ID]struct{} {
	n, ok := g.adj[id]
	if !ok {
		n = make(map[ID]struct{}, 4)
		g.adj[id] = n
	}
	return n
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.adj) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Freeze converts the graph into its immutable Store form. The build
// adjacency is released while converting, so g is empty afterwards and
// must not be reused.
func (g *Graph) Freeze() *Store {
	ids := make([]ID, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	pos := make(map[ID]int32, len(ids))
	for i, id := range ids {
		pos[id] = int32(i)
	}

	offsets := make([]int, len(ids)+1)
	nbrs := make([]int32, 0, 2*g.edges)
	for i, id := range ids {
		set := g.adj[id]
		start := len(nbrs)
		for n := range set {
			nbrs = append(nbrs, pos[n])
		}
		slices.Sort(nbrs[start:])
		offsets[i+1] = len(nbrs)
		delete(g.adj, id)
	}
	edges := g.edges
	g.edges = 0

	return newStore(ids, offsets, nbrs, edges)
}
