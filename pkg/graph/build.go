package graph

import (
	"context"
	"time"

	"github.com/greatvovan/bacon-number/pkg/logger"
)

// DefaultProgressEvery is the number of processed relations between two
// progress reports of Build.
const DefaultProgressEvery = 100_000

// RelationSource streams the relation pairs a graph is built from. fn is
// called once per pair; a non-nil return from fn stops the stream and is
// returned by StreamRelations.
type RelationSource interface {
	StreamRelations(ctx context.Context, fn func(a, b ID) error) error
}

// BuildOptions configures Build.
type BuildOptions struct {
	// ProgressEvery is how many relations are processed between
	// OnProgress calls. Zero means DefaultProgressEvery.
	ProgressEvery int64
	// OnProgress, if set, receives the running count of processed
	// relations, duplicates included.
	OnProgress func(processed int64)
	// SizeHint pre-sizes the node table.
	SizeHint int
}

type BuildOption func(*BuildOptions)

func WithProgressEvery(n int64) BuildOption {
	return func(o *BuildOptions) { o.ProgressEvery = n }
}

func WithProgress(fn func(processed int64)) BuildOption {
	return func(o *BuildOptions) { o.OnProgress = fn }
}

func WithSizeHint(n int) BuildOption {
	return func(o *BuildOptions) { o.SizeHint = n }
}

// Build consumes src and returns the frozen graph. Relations are applied as
// they arrive, so memory is bounded by the graph rather than by the stream.
// If the stream or ctx fails, the partial graph is discarded and the error
// returned.
func Build(ctx context.Context, src RelationSource, opts ...BuildOption) (*Store, error) {
	o := BuildOptions{ProgressEvery: DefaultProgressEvery}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}

	start := time.Now()
	g := New(o.SizeHint)
	var processed int64

	logger.Info("[Graph] Building graph from relation stream")
	err := src.StreamRelations(ctx, func(a, b ID) error {
		g.AddEdge(a, b)
		processed++
		if processed%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if processed%o.ProgressEvery == 0 {
			logger.Info("[Graph] Edges processed", "processed", processed, "nodes", g.Len())
			if o.OnProgress != nil {
				o.OnProgress(processed)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("[Graph] Edges processed", "processed", processed, "nodes", g.Len(), "edges", g.EdgeCount())
	if o.OnProgress != nil && processed%o.ProgressEvery != 0 {
		o.OnProgress(processed)
	}

	s := g.Freeze()
	logger.Info("[Graph] Graph built", "nodes", s.Len(), "edges", s.EdgeCount(), "duration", time.Since(start))
	return s, nil
}
