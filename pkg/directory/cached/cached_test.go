package cached

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/greatvovan/bacon-number/pkg/directory"
	"github.com/greatvovan/bacon-number/pkg/graph"
)

type countingSource struct {
	*directory.Static
	lookups atomic.Int32
	ready   atomic.Bool
	probes  atomic.Int32
}

func newCountingSource() *countingSource {
	return &countingSource{Static: directory.NewStatic(
		[]directory.Entity{{ID: 1, Name: "Kevin Bacon"}, {ID: 2, Name: "Tom Hanks"}},
		[]directory.Relation{{A: 1, B: 2}},
	)}
}

func (s *countingSource) ResolveIDs(ctx context.Context, names []string) (map[string]graph.ID, error) {
	s.lookups.Add(1)
	return s.Static.ResolveIDs(ctx, names)
}

func (s *countingSource) SchemaReady(ctx context.Context) (bool, error) {
	if s.probes.Add(1) == 1 {
		return false, errors.New("connection refused")
	}
	return s.ready.Load(), nil
}

func TestDirectory_ColdFallsThrough(t *testing.T) {
	src := newCountingSource()
	d := New(src, nil)

	ids, err := d.ResolveIDs(context.Background(), []string{"Tom Hanks"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ids["Tom Hanks"] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if src.lookups.Load() != 1 {
		t.Fatalf("expected 1 source lookup, got %d", src.lookups.Load())
	}
}

func TestDirectory_WarmServesFromMemory(t *testing.T) {
	src := newCountingSource()
	src.ready.Store(true)
	d := New(src, nil)

	if err := d.Warm(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !d.Warmed() {
		t.Fatal("expected directory to be warmed")
	}
	// First probe errors; it must be treated as "not yet" rather than fatal.
	if src.probes.Load() < 2 {
		t.Fatalf("expected at least 2 schema probes, got %d", src.probes.Load())
	}

	ctx := context.Background()
	ids, _ := d.ResolveIDs(ctx, []string{"Kevin Bacon", "Nobody"})
	if len(ids) != 1 || ids["Kevin Bacon"] != 1 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if src.lookups.Load() != 0 {
		t.Fatalf("expected no source lookups, got %d", src.lookups.Load())
	}

	names, _ := d.ResolveNames(ctx, []graph.ID{2})
	if names[2] != "Tom Hanks" {
		t.Fatalf("unexpected names %v", names)
	}
	if _, ok, _ := d.ResolveID(ctx, "Nobody"); ok {
		t.Fatal("expected unknown name to be unresolved")
	}
}

func TestDirectory_WarmCancelled(t *testing.T) {
	src := newCountingSource()
	d := New(src, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Warm(ctx, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if d.Warmed() {
		t.Fatal("expected directory to stay cold")
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(context.Background(), newCountingSource())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", c.Len())
	}
}
