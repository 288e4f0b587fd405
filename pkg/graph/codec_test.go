package graph

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
)

func edgeSet(s *Store) map[[2]ID]struct{} {
	out := map[[2]ID]struct{}{}
	s.Edges(func(u, v ID) bool {
		out[[2]ID{u, v}] = struct{}{}
		return true
	})
	return out
}

func nodeSet(s *Store) []ID {
	var out []ID
	s.Nodes(func(id ID) bool {
		out = append(out, id)
		return true
	})
	return out
}

func TestCodec_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	pairs := randomPairs(r, 2000, 6000)

	// same relations, two insertion orders
	orig := buildFrom(t, pairs...)
	shuffled := append([]pair(nil), pairs...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	for i := range shuffled {
		shuffled[i] = pair{shuffled[i].b, shuffled[i].a}
	}
	other := buildFrom(t, shuffled...)

	data, err := Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, s := range []*Store{back, other} {
		if !reflect.DeepEqual(nodeSet(s), nodeSet(orig)) {
			t.Fatal("node sets differ")
		}
		if !reflect.DeepEqual(edgeSet(s), edgeSet(orig)) {
			t.Fatal("edge sets differ")
		}
		if s.EdgeCount() != orig.EdgeCount() {
			t.Fatalf("expected %d edges, got %d", orig.EdgeCount(), s.EdgeCount())
		}
	}

	// adjacency must stay usable for queries after decoding
	if !reflect.DeepEqual(back.Neighbors(pairs[0].a), orig.Neighbors(pairs[0].a)) {
		t.Fatal("neighbour lists differ after decode")
	}
}

func TestCodec_Chain(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, buildFrom(t, chain()...)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := s.ShortestPath(1, 4); !reflect.DeepEqual(got, []ID{1, 2, 3, 4}) {
		t.Fatalf("expected [1 2 3 4], got %v", got)
	}
}

func TestCodec_EmptyGraph(t *testing.T) {
	data, err := Marshal(New(0).Freeze())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Len() != 0 || s.EdgeCount() != 0 {
		t.Fatalf("expected empty graph, got %d nodes %d edges", s.Len(), s.EdgeCount())
	}
}

func TestCodec_Corruption(t *testing.T) {
	good, err := Marshal(buildFrom(t, chain()...))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	flipCRC := append([]byte(nil), good...)
	flipCRC[len(codecMagic)+1] ^= 0xFF

	badVersion := append([]byte(nil), good...)
	badVersion[len(codecMagic)] = 99

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short header", data: good[:3]},
		{name: "bad magic", data: append([]byte("XXXX"), good[4:]...)},
		{name: "bad version", data: badVersion},
		{name: "checksum mismatch", data: flipCRC},
		{name: "truncated body", data: good[:len(good)-5]},
		{name: "garbage body", data: append(append([]byte(nil), good[:headerSize]...), []byte("not zstd at all")...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if !errors.Is(err, ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}

func TestFromWire_RejectsInvalidStructure(t *testing.T) {
	tests := []struct {
		name string
		wire wireGraph
	}{
		{name: "count mismatch", wire: wireGraph{IDs: []int64{1, 2}, Counts: []int32{1}, Upper: []int32{1}}},
		{name: "unsorted ids", wire: wireGraph{IDs: []int64{2, 1}, Counts: []int32{1, 0}, Upper: []int32{1}}},
		{name: "self loop", wire: wireGraph{IDs: []int64{1, 2}, Counts: []int32{1, 0}, Upper: []int32{0}}},
		{name: "out of range", wire: wireGraph{IDs: []int64{1, 2}, Counts: []int32{1, 0}, Upper: []int32{5}}},
		{name: "isolated node", wire: wireGraph{IDs: []int64{1, 2, 3}, Counts: []int32{1, 0, 0}, Upper: []int32{1}}},
		{name: "trailing", wire: wireGraph{IDs: []int64{1, 2}, Counts: []int32{1, 0}, Upper: []int32{1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromWire(&tt.wire); !errors.Is(err, ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}
