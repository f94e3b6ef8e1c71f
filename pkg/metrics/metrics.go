// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the energy gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveReadsTotal tracks the number of successful live device reads
	LiveReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_live_reads_total",
		Help: "Total number of successful live device reads",
	})

	// LiveReadErrors tracks the number of failed live device reads
	LiveReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_live_read_errors_total",
		Help: "Total number of failed live device reads",
	})

	// LiveReadDuration tracks how long a live device read takes
	LiveReadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "energy_live_read_duration_seconds",
		Help:    "Duration of live device reads in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// CacheHits tracks snapshot cache hits per key scope
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_snapshot_cache_hits_total",
		Help: "Total number of snapshot cache hits",
	}, []string{"scope"})

	// CacheMisses tracks requests that exhausted every cache tier
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_snapshot_cache_misses_total",
		Help: "Total number of requests that missed every snapshot cache tier",
	})

	// SnapshotsIngested tracks snapshots accepted on the ingestion endpoint
	SnapshotsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_snapshots_ingested_total",
		Help: "Total number of snapshots accepted from the external poller",
	})

	// IngestRejected tracks ingestion pushes rejected by the shared-secret check
	IngestRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_ingest_rejected_total",
		Help: "Total number of ingestion pushes rejected as unauthorized",
	})

	// CacheEntries tracks the current number of live snapshot cache entries
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_snapshot_cache_entries",
		Help: "Current number of unexpired snapshot cache entries",
	})

	// ChatRequestsTotal tracks chat completions served
	ChatRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_chat_requests_total",
		Help: "Total number of chat requests served",
	})

	// ChatErrors tracks chat completions that failed upstream
	ChatErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_chat_errors_total",
		Help: "Total number of chat requests that failed at the model call",
	})

	// CurrentPower tracks the last observed instantaneous power per device
	CurrentPower = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "energy_current_power_watts",
		Help: "Last observed instantaneous power in watts",
	}, []string{"device_id", "device_name"})
)
