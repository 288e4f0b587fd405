package graph

import (
	"slices"
	"sync"
)

// Store is the immutable, compact form of a graph.
//
// Nodes are kept in ascending id order and addressed internally by their
// position in that order. The neighbours of the node at position i are
// nbrs[offsets[i]:offsets[i+1]], sorted ascending.
type Store struct {
	ids     []ID
	offsets []int
	nbrs    []int32
	edges   int

	scratch sync.Pool
}

// bfsScratch is per-query traversal state. seen[i] == epoch marks position
// i as visited in the current query, so the slices never need clearing
// between queries.
type bfsScratch struct {
	parent []int32
	seen   []uint32
	queue  []int32
	epoch  uint32
}

func newStore(ids []ID, offsets []int, nbrs []int32, edges int) *Store {
	s := &Store{ids: ids, offsets: offsets, nbrs: nbrs, edges: edges}
	s.scratch.New = func() any {
		return &bfsScratch{
			parent: make([]int32, len(s.ids)),
			seen:   make([]uint32, len(s.ids)),
		}
	}
	return s
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.ids) }

// EdgeCount returns the number of undirected edges.
func (s *Store) EdgeCount() int { return s.edges }

// Has reports whether id is a node of the graph.
func (s *Store) Has(id ID) bool {
	_, ok := s.position(id)
	return ok
}

func (s *Store) position(id ID) (int32, bool) {
	i, ok := slices.BinarySearch(s.ids, id)
	return int32(i), ok
}

func (s *Store) adjacent(p int32) []int32 {
	return s.nbrs[s.offsets[p]:s.offsets[p+1]]
}

// Neighbors returns the neighbours of id in ascending order, or nil if id
// is not in the graph.
func (s *Store) Neighbors(id ID) []ID {
	p, ok := s.position(id)
	if !ok {
		return nil
	}
	adj := s.adjacent(p)
	out := make([]ID, len(adj))
	for i, n := range adj {
		out[i] = s.ids[n]
	}
	return out
}

// HasEdge reports whether u and v are directly connected.
func (s *Store) HasEdge(u, v ID) bool {
	pu, ok := s.position(u)
	if !ok {
		return false
	}
	pv, ok := s.position(v)
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(s.adjacent(pu), pv)
	return found
}

// Nodes calls fn for every node in ascending id order until fn returns false.
func (s *Store) Nodes(fn func(id ID) bool) {
	for _, id := range s.ids {
		if !fn(id) {
			return
		}
	}
}

// Edges calls fn once per undirected edge with u < v, until fn returns
// false.
func (s *Store) Edges(fn func(u, v ID) bool) {
	for p := range s.ids {
		for _, n := range s.adjacent(int32(p)) {
			if int(n) <= p {
				continue
			}
			if !fn(s.ids[p], s.ids[n]) {
				return
			}
		}
	}
}

// ShortestPath returns a minimum-hop path from src to dst, both endpoints
// included. It returns [src] when src == dst and src is a node. When either
// endpoint is not in the graph, or dst is unreachable, it returns nil.
//
// Among several shortest paths the one found first by a breadth-first
// traversal in ascending neighbour order is returned.
func (s *Store) ShortestPath(src, dst ID) []ID {
	ps, ok := s.position(src)
	if !ok {
		return nil
	}
	pd, ok := s.position(dst)
	if !ok {
		return nil
	}
	if ps == pd {
		return []ID{src}
	}

	sc := s.scratch.Get().(*bfsScratch)
	defer s.scratch.Put(sc)

	sc.epoch++
	if sc.epoch == 0 {
		clear(sc.seen)
		sc.epoch = 1
	}
	epoch := sc.epoch

	queue := append(sc.queue[:0], ps)
	sc.seen[ps] = epoch
	sc.parent[ps] = -1

	found := false
	for head := 0; head < len(queue) && !found; head++ {
		cur := queue[head]
		for _, n := range s.adjacent(cur) {
			if sc.seen[n] == epoch {
				continue
			}
			sc.seen[n] = epoch
			sc.parent[n] = cur
			if n == pd {
				found = true
				break
			}
			queue = append(queue, n)
		}
	}
	sc.queue = queue[:0]

	if !found {
		return nil
	}

	var rev []int32
	for p := pd; p != -1; p = sc.parent[p] {
		rev = append(rev, p)
	}
	path := make([]ID, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = s.ids[p]
	}
	return path
}
