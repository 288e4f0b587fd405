package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/greatvovan/bacon-number/internal/metrics"
	"github.com/greatvovan/bacon-number/internal/readiness"
	"github.com/greatvovan/bacon-number/pkg/graph"
	"github.com/greatvovan/bacon-number/pkg/logger"
	"github.com/greatvovan/bacon-number/pkg/snapshot"
)

type EventSink interface {
	Publish(ctx context.Context, key string, ev Event) error
}

// SnapshotHandler builds a graph, stores it and announces it so that
// every replica reloads.
func SnapshotHandler(src graph.RelationSource, snaps snapshot.Store, sink EventSink) Handler {
	return func(ctx context.Context, ev Event) error {
		start := time.Now()

		g, err := graph.Build(ctx, src, graph.WithProgress(func(processed int64) {
			logger.Debug("[Queue] Snapshot build progress", "job_id", ev.JobID, "processed", processed)
		}))
		if err != nil {
			metrics.GraphBuildFailures.Inc()
			return fmt.Errorf("failed to build graph: %w", err)
		}
		if g.EdgeCount() == 0 {
			metrics.GraphBuildFailures.Inc()
			return readiness.ErrEmptyGraph
		}
		metrics.GraphBuildDuration.Observe(time.Since(start).Seconds())

		if err := snaps.Save(ctx, g); err != nil {
			metrics.SnapshotOperations.WithLabelValues("save", "error").Inc()
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		metrics.SnapshotOperations.WithLabelValues("save", "ok").Inc()

		err = sink.Publish(ctx, RoutingSnapshot, Event{
			JobID:  ev.JobID,
			Source: "worker",
			Nodes:  g.Len(),
			Edges:  g.EdgeCount(),
		})
		if err != nil {
			return fmt.Errorf("failed to announce snapshot: %w", err)
		}

		logger.Info("[Queue] Snapshot published", "job_id", ev.JobID, "nodes", g.Len(), "edges", g.EdgeCount(), "duration", time.Since(start))
		return nil
	}
}

// GraphJobs is the part of the readiness coordinator replicas drive from
// queue events.
type GraphJobs interface {
	Rebuild(ctx context.Context) error
	Reload(ctx context.Context) error
}

// ReplicaHandler reacts to events on a replica's broadcast queue: a fresh
// snapshot is reloaded, a rebuild request is served locally only when
// localRebuild is set.
func ReplicaHandler(jobs GraphJobs, localRebuild bool) Handler {
	return func(ctx context.Context, ev Event) error {
		switch ev.Key {
		case RoutingSnapshot:
			metrics.RebuildRequests.WithLabelValues("queue").Inc()
			return jobs.Reload(ctx)
		case RoutingRebuild:
			if !localRebuild {
				return nil
			}
			metrics.RebuildRequests.WithLabelValues("queue").Inc()
			return jobs.Rebuild(ctx)
		}
		logger.Debug("[Queue] Ignoring event", "key", ev.Key, "job_id", ev.JobID)
		return nil
	}
}
