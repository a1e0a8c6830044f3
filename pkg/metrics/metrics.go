// Package metrics registers the prometheus collectors for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreRoundTrips counts transactional requests to the graph store by
	// outcome (ok, error).
	StoreRoundTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxonet",
		Name:      "store_roundtrips_total",
		Help:      "Transactional requests sent to the graph store.",
	}, []string{"outcome"})

	// StoreLatency observes the wall time of one store round-trip.
	StoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taxonet",
		Name:      "store_roundtrip_seconds",
		Help:      "Latency of graph store round-trips.",
		Buckets:   prometheus.DefBuckets,
	})

	// UpsertedNodes counts nodes written during ingestion by label.
	UpsertedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxonet",
		Name:      "upserted_nodes_total",
		Help:      "Nodes upserted during ingestion.",
	}, []string{"label"})

	// Merges counts completed Scan/MergeOne rounds.
	Merges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxonet",
		Name:      "agglomeration_merges_total",
		Help:      "Association pairs merged during agglomeration.",
	})

	// StatTests counts metadata-association tests by kind and verdict.
	StatTests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxonet",
		Name:      "stat_tests_total",
		Help:      "Statistical tests run against sample metadata.",
	}, []string{"test", "verdict"})
)
