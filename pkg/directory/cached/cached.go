// Package cached answers directory lookups from an in-memory copy of the
// entity table. Relations are always streamed from the underlying source.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/greatvovan/bacon-number/internal/util"
	"github.com/greatvovan/bacon-number/pkg/directory"
	"github.com/greatvovan/bacon-number/pkg/graph"
	"github.com/greatvovan/bacon-number/pkg/logger"
)

// Cache is an immutable name/id index.
type Cache struct {
	byName map[string]graph.ID
	byID   map[graph.ID]string
}

// Load reads every entity from src into a new Cache.
func Load(ctx context.Context, src directory.EntitySource) (*Cache, error) {
	c := &Cache{
		byName: make(map[string]graph.ID),
		byID:   make(map[graph.ID]string),
	}
	err := src.StreamEntities(ctx, func(id graph.ID, name string) error {
		c.byName[name] = id
		c.byID[id] = name
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entity cache: %w", err)
	}
	return c, nil
}

// Len returns the number of cached entities.
func (c *Cache) Len() int { return len(c.byID) }

// Source is what a cached Directory wraps.
type Source interface {
	directory.Directory
	directory.EntitySource
}

// Directory serves lookups from a Cache once one is installed and falls
// through to the source until then.
type Directory struct {
	src   Source
	cache atomic.Pointer[Cache]
}

var _ directory.Directory = (*Directory)(nil)

// New wraps src. Pass a nil cache to start cold and call Warm later.
func New(src Source, cache *Cache) *Directory {
	d := &Directory{src: src}
	if cache != nil {
		d.cache.Store(cache)
	}
	return d
}

// Warm waits for the source schema, then loads and installs the cache.
// It is a no-op when a cache is already installed.
func (d *Directory) Warm(ctx context.Context, pollInterval time.Duration) error {
	if d.cache.Load() != nil {
		return nil
	}

	probe := func(ctx context.Context) (bool, error) {
		ok, err := d.src.SchemaReady(ctx)
		if err != nil {
			logger.Warn("[Directory] Schema probe failed", "err", err)
			return false, nil
		}
		return ok, nil
	}
	err := util.PollUntil(ctx, pollInterval, probe, func() {
		logger.Info("[Directory] Waiting for schema before loading entity cache")
	})
	if err != nil {
		return err
	}

	start := time.Now()
	c, err := Load(ctx, d.src)
	if err != nil {
		return err
	}
	d.cache.Store(c)
	logger.Info("[Directory] Entity cache loaded", "entities", c.Len(), "duration", time.Since(start))
	return nil
}

// Warmed reports whether lookups are being served from memory.
func (d *Directory) Warmed() bool { return d.cache.Load() != nil }

func (d *Directory) ResolveID(ctx context.Context, name string) (graph.ID, bool, error) {
	c := d.cache.Load()
	if c == nil {
		return d.src.ResolveID(ctx, name)
	}
	id, ok := c.byName[name]
	return id, ok, nil
}

func (d *Directory) ResolveIDs(ctx context.Context, names []string) (map[string]graph.ID, error) {
	c := d.cache.Load()
	if c == nil {
		return d.src.ResolveIDs(ctx, names)
	}
	out := make(map[string]graph.ID, len(names))
	for _, n := range names {
		if id, ok := c.byName[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (d *Directory) ResolveNames(ctx context.Context, ids []graph.ID) (map[graph.ID]string, error) {
	c := d.cache.Load()
	if c == nil {
		return d.src.ResolveNames(ctx, ids)
	}
	out := make(map[graph.ID]string, len(ids))
	for _, id := range ids {
		if n, ok := c.byID[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (d *Directory) StreamRelations(ctx context.Context, fn func(a, b graph.ID) error) error {
	return d.src.StreamRelations(ctx, fn)
}

func (d *Directory) SchemaReady(ctx context.Context) (bool, error) {
	return d.src.SchemaReady(ctx)
}
