// Package metrics exposes the gateway's Prometheus collectors: gauges
// of registry occupancy and the configured concurrency cap, and counters
// for the lifecycle events the supervisor and GC emit.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors the rest of the gateway updates. It is
// constructed once in main and passed into the supervisor/gc
// constructors, rather than reached for as package globals.
type Metrics struct {
	RegistrySize       prometheus.Gauge
	ConcurrencyCap     prometheus.Gauge
	FeedStarts         prometheus.Counter
	FeedStops          prometheus.Counter
	FeedEvictions      prometheus.Counter
	FeedReconnects     prometheus.Counter
	FeedStartFailures  prometheus.Counter
	SegmentsDeleted    prometheus.Counter
	OrphanDirsDeleted  prometheus.Counter
	ThumbnailFailures  prometheus.Counter
}

// New registers all collectors against reg and returns the bundle. Pass
// prometheus.NewRegistry() in production and a fresh one per test in unit
// tests, so tests never collide with each other or with the default
// global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtspgateway",
			Subsystem: "registry",
			Name:      "feeds_active",
			Help:      "Number of feeds currently tracked by the registry.",
		}),
		ConcurrencyCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtspgateway",
			Subsystem: "registry",
			Name:      "concurrency_cap",
			Help:      "Configured maximum concurrent running feeds.",
		}),
		FeedStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "supervisor",
			Name:      "feed_starts_total",
			Help:      "Total number of feed start attempts that succeeded.",
		}),
		FeedStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "supervisor",
			Name:      "feed_stops_total",
			Help:      "Total number of feed stops (voluntary or evicted).",
		}),
		FeedEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "supervisor",
			Name:      "feed_evictions_total",
			Help:      "Total number of feeds evicted to make room under the concurrency cap.",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "supervisor",
			Name:      "feed_reconnects_total",
			Help:      "Total number of transcoder reconnect attempts.",
		}),
		FeedStartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "supervisor",
			Name:      "feed_start_failures_total",
			Help:      "Total number of feed start attempts that failed (probe or spawn).",
		}),
		SegmentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "gc",
			Name:      "segments_deleted_total",
			Help:      "Total number of stale .ts segment files deleted by the GC sweep.",
		}),
		OrphanDirsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "gc",
			Name:      "orphan_dirs_deleted_total",
			Help:      "Total number of orphaned feed output directories removed by the GC sweep.",
		}),
		ThumbnailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtspgateway",
			Subsystem: "thumbnail",
			Name:      "capture_failures_total",
			Help:      "Total number of thumbnail capture attempts that failed.",
		}),
	}

	reg.MustRegister(
		m.RegistrySize,
		m.ConcurrencyCap,
		m.FeedStarts,
		m.FeedStops,
		m.FeedEvictions,
		m.FeedReconnects,
		m.FeedStartFailures,
		m.SegmentsDeleted,
		m.OrphanDirsDeleted,
		m.ThumbnailFailures,
	)

	return m
}
