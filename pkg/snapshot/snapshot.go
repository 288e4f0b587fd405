// Package snapshot persists frozen graphs so a restart can skip the full
// relation scan.
package snapshot

import (
	"context"
	"errors"

	"github.com/greatvovan/bacon-number/pkg/graph"
)

// ErrNotFound is returned by Load when no snapshot has been written yet.
var ErrNotFound = errors.New("snapshot not found")

// Store loads and saves one graph snapshot. A Load of a damaged snapshot
// returns an error wrapping graph.ErrCorruptSnapshot.
type Store interface {
	Load(ctx context.Context) (*graph.Store, error)
	Save(ctx context.Context, g *graph.Store) error
	Exists(ctx context.Context) (bool, error)
}

// Nop never has a snapshot and discards writes.
type Nop struct{}

func (Nop) Load(context.Context) (*graph.Store, error) { return nil, ErrNotFound }
func (Nop) Save(context.Context, *graph.Store) error { return nil }
func (Nop) Exists(context.Context) (bool, error) { return false, nil }
