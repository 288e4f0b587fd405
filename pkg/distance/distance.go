// Package distance answers degrees-of-separation queries by name or id
// over the currently published graph.
package distance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/greatvovan/bacon-number/pkg/directory"
	"github.com/greatvovan/bacon-number/pkg/graph"
)

// Unreachable is the Length of a Distance between disconnected entities.
const Unreachable = -1

// DefaultReference is the entity BaconDistance measures from.
const DefaultReference = "Kevin Bacon"

// ErrIncompleteNames means a node on the path has no name in the
// directory, which happens when the graph is older than the entity table.
var ErrIncompleteNames = errors.New("path contains ids without a name")

// NotFoundError lists the names the directory could not resolve.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", strings.Join(e.Names, ", "))
}

type Distance struct {
	Length    int
	Reachable bool
	// Path holds names from source to target, only when requested and
	// reachable.
	Path []string
}

// GraphProvider returns the published graph, or an error (typically a
// *readiness.NotReadyError) when none is available.
type GraphProvider interface {
	Graph() (*graph.Store, error)
	TriggerRebuild() string
}

type Resolver struct {
	dir       directory.Directory
	graphs    GraphProvider
	reference string
}

func NewResolver(dir directory.Directory, graphs GraphProvider, reference string) *Resolver {
	if reference == "" {
		reference = DefaultReference
	}
	return &Resolver{dir: dir, graphs: graphs, reference: reference}
}

// Reference returns the name BaconDistance measures from.
func (r *Resolver) Reference() string { return r.reference }

// DistanceByID returns the distance between two node ids.
func (r *Resolver) DistanceByID(ctx context.Context, a, b graph.ID, withPath bool) (Distance, error) {
	g, err := r.graphs.Graph()
	if err != nil {
		return Distance{}, err
	}

	ids := g.ShortestPath(a, b)
	if ids == nil {
		return Distance{Length: Unreachable}, nil
	}
	d := Distance{Length: len(ids) - 1, Reachable: true}
	if !withPath {
		return d, nil
	}

	names, err := r.dir.ResolveNames(ctx, ids)
	if err != nil {
		return Distance{}, fmt.Errorf("failed to resolve path names: %w", err)
	}
	d.Path = make([]string, len(ids))
	for i, id := range ids {
		name, ok := names[id]
		if !ok {
			return Distance{}, fmt.Errorf("%w: id %d", ErrIncompleteNames, id)
		}
		d.Path[i] = name
	}
	return d, nil
}

// DistanceByName resolves both names, then measures between them. Unknown
// names are reported before graph readiness is checked.
func (r *Resolver) DistanceByName(ctx context.Context, name1, name2 string, withPath bool) (Distance, error) {
	ids, err := r.dir.ResolveIDs(ctx, []string{name1, name2})
	if err != nil {
		return Distance{}, fmt.Errorf("failed to resolve names: %w", err)
	}

	var missing []string
	for _, n := range []string{name1, name2} {
		if _, ok := ids[n]; !ok && !contains(missing, n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return Distance{}, &NotFoundError{Names: missing}
	}

	return r.DistanceByID(ctx, ids[name1], ids[name2], withPath)
}

// BaconDistance measures from the reference entity to name.
func (r *Resolver) BaconDistance(ctx context.Context, name string, withPath bool) (Distance, error) {
	return r.DistanceByName(ctx, r.reference, name, withPath)
}

// RebuildGraph requests a rebuild and returns its job id without waiting.
func (r *Resolver) RebuildGraph(ctx context.Context) string {
	return r.graphs.TriggerRebuild()
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
