package pgx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/greatvovan/bacon-number/pkg/graph"

	"github.com/jackc/pgx/v5/pgxpool"
)

// newTestDirectory creates throwaway tables in the database named by
// TEST_DATABASE_URL. The test is skipped when it is unset.
func newTestDirectory(t *testing.T) *Directory {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	suffix := time.Now().UnixNano()
	actors := fmt.Sprintf("test_actors_%d", suffix)
	peers := fmt.Sprintf("test_peers_%d", suffix)

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`, actors),
		fmt.Sprintf(`CREATE TABLE %s (id1 INTEGER NOT NULL, id2 INTEGER NOT NULL)`, peers),
		fmt.Sprintf(`INSERT INTO %s VALUES (1, 'Kevin Bacon'), (2, 'Tom Hanks'), (3, 'Meg Ryan'), (4, 'Nobody Special')`, actors),
		fmt.Sprintf(`INSERT INTO %s VALUES (1, 2), (2, 1), (2, 3), (3, 2)`, peers),
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s`, actors, peers))
	})

	return New(pool, Options{ActorsTable: actors, PeersTable: peers})
}

func TestDirectory_Postgres(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	ready, err := d.SchemaReady(ctx)
	if err != nil || !ready {
		t.Fatalf("expected schema ready, got %v %v", ready, err)
	}

	id, ok, err := d.ResolveID(ctx, "Tom Hanks")
	if err != nil || !ok || id != 2 {
		t.Fatalf("expected (2, true, nil), got (%d, %v, %v)", id, ok, err)
	}
	if _, ok, err := d.ResolveID(ctx, "Missing"); ok || err != nil {
		t.Fatalf("expected unresolved without error, got %v %v", ok, err)
	}

	ids, err := d.ResolveIDs(ctx, []string{"Kevin Bacon", "Meg Ryan", "Missing"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(ids) != 2 || ids["Kevin Bacon"] != 1 || ids["Meg Ryan"] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}

	names, err := d.ResolveNames(ctx, []graph.ID{1, 3, 42})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(names) != 2 || names[3] != "Meg Ryan" {
		t.Fatalf("unexpected names %v", names)
	}

	s, err := graph.Build(ctx, d)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if s.Len() != 3 || s.EdgeCount() != 2 {
		t.Fatalf("expected 3 nodes and 2 edges, got %d and %d", s.Len(), s.EdgeCount())
	}
}

func TestDirectory_SchemaMissing(t *testing.T) {
	d := newTestDirectory(t)
	d.peers = "no_such_table_for_sure"

	ready, err := d.SchemaReady(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ready {
		t.Fatal("expected schema to be reported missing")
	}
}
