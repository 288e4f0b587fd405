// Package directory defines the name/id lookup and relation stream the
// graph service consumes. Implementations live in subpackages: pgx talks to
// Postgres directly, cached answers lookups from an in-memory copy of the
// entity table. Static is an in-memory implementation for tests and demos.
package directory

import (
	"context"

	"github.com/greatvovan/bacon-number/pkg/graph"
)

// Directory resolves entity names and ids and streams the relation pairs
// the graph is built from.
type Directory interface {
	graph.RelationSource

	// ResolveID returns the id for name; ok is false when there is none.
	ResolveID(ctx context.Context, name string) (id graph.ID, ok bool, err error)
	// ResolveIDs resolves names in one round trip. Unresolved names are
	// omitted from the result.
	ResolveIDs(ctx context.Context, names []string) (map[string]graph.ID, error)
	// ResolveNames resolves ids in one round trip. Unknown ids are omitted.
	ResolveNames(ctx context.Context, ids []graph.ID) (map[graph.ID]string, error)
	// SchemaReady reports whether the upstream tables exist yet.
	SchemaReady(ctx context.Context) (bool, error)
}

// EntitySource streams every (id, name) pair of the entity table.
type EntitySource interface {
	StreamEntities(ctx context.Context, fn func(id graph.ID, name string) error) error
}

// Entity is a named node of the collaboration graph.
type Entity struct {
	ID   graph.ID
	Name string
}

// Relation is an unordered co-occurrence of two entities.
type Relation struct {
	A, B graph.ID
}
