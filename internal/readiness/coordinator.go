// Package readiness owns the published graph: it loads or builds it in the
// background, swaps it in atomically and tells callers how long to wait
// while no graph is available yet.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greatvovan/bacon-number/internal/metrics"
	"github.com/greatvovan/bacon-number/internal/util"
	"github.com/greatvovan/bacon-number/pkg/graph"
	"github.com/greatvovan/bacon-number/pkg/logger"
	"github.com/greatvovan/bacon-number/pkg/snapshot"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyGraph is returned by a build that produced no edges. Publishing
// it would answer every query with "unreachable".
var ErrEmptyGraph = errors.New("graph build produced no edges")

// Source is what the coordinator builds graphs from.
type Source interface {
	graph.RelationSource
	SchemaReady(ctx context.Context) (bool, error)
}

type Options struct {
	// Snapshots defaults to snapshot.Nop.
	Snapshots snapshot.Store

	// StartupEstimate is the expected duration of the first load, used for
	// retry hints until a build has been timed.
	StartupEstimate    time.Duration
	MinRetryAfter      time.Duration
	SchemaPollInterval time.Duration
	ProgressEvery      int64
}

func (o Options) withDefaults() Options {
	if o.Snapshots == nil {
		o.Snapshots = snapshot.Nop{}
	}
	if o.StartupEstimate <= 0 {
		o.StartupEstimate = 60 * time.Second
	}
	if o.MinRetryAfter <= 0 {
		o.MinRetryAfter = 5 * time.Second
	}
	if o.SchemaPollInterval <= 0 {
		o.SchemaPollInterval = 5 * time.Second
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = graph.DefaultProgressEvery
	}
	return o
}

// flightKey is shared by every job kind: at most one load or build runs at
// a time, and later callers join it.
const flightKey = "graph"

type Coordinator struct {
	src  Source
	opts Options
	now  func() time.Time

	state  atomic.Int32
	graph  atomic.Pointer[graph.Store]
	flight singleflight.Group

	mu        sync.Mutex
	lifetime  context.Context
	current   string
	loadStart time.Time
	lastBuild time.Duration
	status    Status
}

func New(src Source, opts Options) *Coordinator {
	return &Coordinator{
		src:      src,
		opts:     opts.withDefaults(),
		now:      time.Now,
		lifetime: context.Background(),
		status:   Status{Phase: PhaseIdle},
	}
}

// IsReady reports whether a graph has been published.
func (c *Coordinator) IsReady() bool {
	return State(c.state.Load()) == Ready
}

// Graph returns the published graph, or a *NotReadyError carrying a retry
// hint when there is none yet. It never blocks.
func (c *Coordinator) Graph() (*graph.Store, error) {
	if g := c.graph.Load(); g != nil {
		return g, nil
	}
	return nil, c.notReady()
}

// StartInit starts the initial load in the background and returns at once.
// ctx bounds the lifetime of this and every later job. Calls after the
// first are no-ops.
func (c *Coordinator) StartInit(ctx context.Context) {
	if !c.state.CompareAndSwap(int32(Uninitialized), int32(Loading)) {
		return
	}

	c.mu.Lock()
	c.lifetime = ctx
	c.loadStart = c.now()
	c.mu.Unlock()

	logger.Info("[Readiness] Starting graph initialisation")
	c.start(jobInit, c.initJob)
}

// Rebuild rebuilds the graph from the directory and waits for the result.
// If a job is already running, Rebuild waits for that one instead. A
// cancelled ctx stops the wait, not the job.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	_, ch := c.start(jobRebuild, c.rebuildJob)
	return wait(ctx, ch)
}

// Reload installs the stored snapshot, falling back to a rebuild when it
// is missing or unreadable.
func (c *Coordinator) Reload(ctx context.Context) error {
	_, ch := c.start(jobReload, c.reloadJob)
	return wait(ctx, ch)
}

// TriggerRebuild starts a rebuild without waiting and returns the id of
// the job serving it.
func (c *Coordinator) TriggerRebuild() string {
	id, _ := c.start(jobRebuild, c.rebuildJob)
	return id
}

func wait(ctx context.Context, ch <-chan singleflight.Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// start joins the running job or launches a new one. c.mu is held across
// DoChan and a finishing job forgets the flight key under c.mu, so c.current
// always names the job a joiner is attached to.
func (c *Coordinator) start(kind string, job func(ctx context.Context) error) (string, <-chan singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != "" {
		return c.current, c.flight.DoChan(flightKey, nil)
	}

	id, err := gonanoid.New()
	if err != nil {
		id = fmt.Sprintf("job-%d", c.now().UnixNano())
	}
	c.current = id
	c.status.JobID = id
	c.status.JobKind = kind
	startedAt := c.now()
	c.status.StartedAt = &startedAt
	c.status.Processed = 0
	ctx := c.lifetime

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		defer c.finish(id)
		return nil, job(ctx)
	})
	return id, ch
}

func (c *Coordinator) finish(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flight.Forget(flightKey)
	if c.current == id {
		c.current = ""
	}
	c.status.Phase = PhaseIdle
}

func (c *Coordinator) initJob(ctx context.Context) error {
	if err := c.waitForSchema(ctx); err != nil {
		c.recordFailure(err)
		return err
	}

	exists, err := c.opts.Snapshots.Exists(ctx)
	if err != nil {
		logger.Warn("[Readiness] Failed to check for snapshot", "err", err)
	}
	if exists {
		if g, ok := c.loadSnapshot(ctx); ok {
			c.publish(g, SourceSnapshot)
			return nil
		}
	} else if err == nil {
		logger.Info("[Readiness] No snapshot found, building from directory")
	}

	return c.rebuildJob(ctx)
}

func (c *Coordinator) reloadJob(ctx context.Context) error {
	if g, ok := c.loadSnapshot(ctx); ok {
		c.publish(g, SourceSnapshot)
		return nil
	}
	return c.rebuildJob(ctx)
}

func (c *Coordinator) rebuildJob(ctx context.Context) error {
	g, err := c.build(ctx)
	if err != nil {
		c.recordFailure(err)
		return err
	}
	c.publish(g, SourceBuild)
	c.persist(ctx, g)
	return nil
}

func (c *Coordinator) waitForSchema(ctx context.Context) error {
	c.setPhase(PhaseSchema)
	probe := func(ctx context.Context) (bool, error) {
		ok, err := c.src.SchemaReady(ctx)
		if err != nil {
			logger.Warn("[Readiness] Schema probe failed", "err", err)
			return false, nil
		}
		return ok, nil
	}
	return util.PollUntil(ctx, c.opts.SchemaPollInterval, probe, func() {
		logger.Info("[Readiness] Waiting for directory schema", "interval", c.opts.SchemaPollInterval)
	})
}

func (c *Coordinator) loadSnapshot(ctx context.Context) (*graph.Store, bool) {
	c.setPhase(PhaseSnapshot)
	start := c.now()

	g, err := c.opts.Snapshots.Load(ctx)
	switch {
	case err == nil:
		metrics.SnapshotOperations.WithLabelValues("load", "ok").Inc()
		logger.Info("[Readiness] Snapshot loaded", "nodes", g.Len(), "edges", g.EdgeCount(), "duration", c.now().Sub(start))
		return g, true
	case errors.Is(err, snapshot.ErrNotFound):
		metrics.SnapshotOperations.WithLabelValues("load", "not_found").Inc()
		logger.Info("[Readiness] No snapshot found, building from directory")
	case errors.Is(err, graph.ErrCorruptSnapshot):
		metrics.SnapshotOperations.WithLabelValues("load", "corrupt").Inc()
		logger.Warn("[Readiness] Snapshot is corrupt, building from directory", "err", err)
	default:
		metrics.SnapshotOperations.WithLabelValues("load", "error").Inc()
		logger.Warn("[Readiness] Failed to load snapshot, building from directory", "err", err)
	}
	return nil, false
}

func (c *Coordinator) build(ctx context.Context) (*graph.Store, error) {
	c.setPhase(PhaseBuild)
	start := c.now()

	var reported int64
	g, err := graph.Build(ctx, c.src,
		graph.WithProgressEvery(c.opts.ProgressEvery),
		graph.WithProgress(func(processed int64) {
			metrics.GraphEdgesProcessed.Add(float64(processed - reported))
			reported = processed
			c.mu.Lock()
			c.status.Processed = processed
			c.mu.Unlock()
		}),
	)
	if err != nil {
		return nil, err
	}
	if g.EdgeCount() == 0 {
		return nil, ErrEmptyGraph
	}

	elapsed := c.now().Sub(start)
	metrics.GraphBuildDuration.Observe(elapsed.Seconds())

	c.mu.Lock()
	c.lastBuild = elapsed
	c.mu.Unlock()

	logger.Info("[Readiness] Graph built", "nodes", g.Len(), "edges", g.EdgeCount(), "duration", elapsed)
	return g, nil
}

// persist is best-effort: the published graph stays valid either way.
func (c *Coordinator) persist(ctx context.Context, g *graph.Store) {
	if _, ok := c.opts.Snapshots.(snapshot.Nop); ok {
		return
	}
	c.setPhase(PhasePersist)

	if err := c.opts.Snapshots.Save(ctx, g); err != nil {
		metrics.SnapshotOperations.WithLabelValues("save", "error").Inc()
		logger.Warn("[Readiness] Failed to save snapshot", "err", err)
		return
	}
	metrics.SnapshotOperations.WithLabelValues("save", "ok").Inc()
	logger.Info("[Readiness] Snapshot saved")
}

func (c *Coordinator) publish(g *graph.Store, source string) {
	c.graph.Store(g)
	c.state.Store(int32(Ready))
	metrics.SetGraph(g.Len(), g.EdgeCount())

	c.mu.Lock()
	c.status.Nodes = g.Len()
	c.status.Edges = g.EdgeCount()
	c.status.GraphSource = source
	c.status.LastError = ""
	c.mu.Unlock()

	logger.Info("[Readiness] Graph published", "source", source, "nodes", g.Len(), "edges", g.EdgeCount())
}

func (c *Coordinator) recordFailure(err error) {
	if errors.Is(err, context.Canceled) {
		logger.Info("[Readiness] Graph job cancelled")
		return
	}
	metrics.GraphBuildFailures.Inc()

	c.mu.Lock()
	c.status.LastError = err.Error()
	c.mu.Unlock()

	if c.IsReady() {
		logger.Error("[Readiness] Graph rebuild failed, keeping current graph", "err", err)
		return
	}
	logger.Error("[Readiness] Graph build failed, service stays unavailable until the next rebuild", "err", err)
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.status.Phase = p
	c.mu.Unlock()
}

func (c *Coordinator) notReady() *NotReadyError {
	c.mu.Lock()
	defer c.mu.Unlock()

	estimate := c.opts.StartupEstimate
	if c.lastBuild > 0 {
		estimate = c.lastBuild
	}
	var elapsed time.Duration
	if !c.loadStart.IsZero() {
		elapsed = c.now().Sub(c.loadStart)
	}

	retry := estimate - elapsed
	if retry < c.opts.MinRetryAfter {
		retry = c.opts.MinRetryAfter
	}
	return &NotReadyError{RetryAfter: retry}
}
