package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bacon_graph_build_duration_seconds",
		Help:    "Time taken to build the graph from the relation stream",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	GraphEdgesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bacon_graph_edges_processed_total",
		Help: "Total number of relation pairs consumed by graph builds",
	})

	GraphBuildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bacon_graph_build_failures_total",
		Help: "Total number of failed graph builds",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bacon_graph_nodes",
		Help: "Number of nodes in the published graph",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bacon_graph_edges",
		Help: "Number of undirected edges in the published graph",
	})

	GraphReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bacon_graph_ready",
		Help: "1 once a graph has been published, 0 before",
	})

	// QueryDuration is labelled by endpoint (bn, dist) and outcome
	// (ok, not_found, not_ready, error).
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bacon_query_duration_seconds",
		Help:    "Latency of distance queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	// SnapshotOperations is labelled by op (load, save) and outcome
	// (ok, not_found, corrupt, error).
	SnapshotOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacon_snapshot_operations_total",
		Help: "Snapshot loads and saves by outcome",
	}, []string{"op", "outcome"})

	RebuildRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bacon_rebuild_requests_total",
		Help: "Rebuild requests by source (http, queue)",
	}, []string{"source"})
)

// SetGraph publishes the size gauges of a newly installed graph.
func SetGraph(nodes, edges int) {
	GraphNodes.Set(float64(nodes))
	GraphEdges.Set(float64(edges))
	GraphReady.Set(1)
}
