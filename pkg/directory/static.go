package directory

import (
	"context"

	"github.com/greatvovan/bacon-number/pkg/graph"
)

// Static is a fixed, in-memory Directory. It is safe for concurrent use
// because it is never modified after NewStatic.
type Static struct {
	byName    map[string]graph.ID
	byID      map[graph.ID]string
	relations []Relation
}

var (
	_ Directory    = (*Static)(nil)
	_ EntitySource = (*Static)(nil)
)

// NewStatic builds a directory over the given entities and relations.
func NewStatic(entities []Entity, relations []Relation) *Static {
	s := &Static{
		byName:    make(map[string]graph.ID, len(entities)),
		byID:      make(map[graph.ID]string, len(entities)),
		relations: relations,
	}
	for _, e := range entities {
		s.byName[e.Name] = e.ID
		s.byID[e.ID] = e.Name
	}
	return s
}

func (s *Static) ResolveID(ctx context.Context, name string) (graph.ID, bool, error) {
	id, ok := s.byName[name]
	return id, ok, nil
}

func (s *Static) ResolveIDs(ctx context.Context, names []string) (map[string]graph.ID, error) {
	out := make(map[string]graph.ID, len(names))
	for _, n := range names {
		if id, ok := s.byName[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (s *Static) ResolveNames(ctx context.Context, ids []graph.ID) (map[graph.ID]string, error) {
	out := make(map[graph.ID]string, len(ids))
	for _, id := range ids {
		if n, ok := s.byID[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *Static) StreamRelations(ctx context.Context, fn func(a, b graph.ID) error) error {
	for _, r := range s.relations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r.A, r.B); err != nil {
			return err
		}
	}
	return nil
}

func (s *Static) StreamEntities(ctx context.Context, fn func(id graph.ID, name string) error) error {
	for id, name := range s.byID {
		if err := fn(id, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Static) SchemaReady(ctx context.Context) (bool, error) {
	return true, nil
}
