// # internal/shared/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyspect_parsing_seconds",
		Help:    "Time spent parsing and building one load.",
		Buckets: prometheus.DefBuckets,
	})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyspect_resolution_seconds",
		Help:    "Time spent in resolution and linearization passes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	TreeModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyspect_tree_modules_total",
		Help: "Modules in the most recent load.",
	})

	TreeObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyspect_tree_objects_total",
		Help: "Indexed objects in the most recent load.",
	})

	SlotsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyspect_slots_decided_total",
		Help: "Reference slots decided, by final state.",
	}, []string{"state"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyspect_diagnostics_total",
		Help: "Diagnostics recorded during loads, by code.",
	}, []string{"code"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyspect_watcher_events_total",
		Help: "File system events received by the watcher.",
	})

	RebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyspect_rebuilds_total",
		Help: "Full rebuilds triggered in watch mode.",
	})

	StoreSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyspect_store_sync_seconds",
		Help:    "Time spent syncing a load into the symbol store.",
		Buckets: prometheus.DefBuckets,
	})
)
