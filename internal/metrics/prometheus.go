package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Reservation store
	ClaimsTotal   *prometheus.CounterVec
	ReleasesTotal *prometheus.CounterVec

	// Reconciliation
	SyncPassesTotal  *prometheus.CounterVec
	SyncedRowsTotal  *prometheus.CounterVec
	SyncPassDuration prometheus.Histogram
	SweepDuration    prometheus.Histogram
	SweepFailures    prometheus.Gauge

	// Availability cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carnumbers_claims_total",
				Help: "Claim attempts by result",
			},
			[]string{"result"},
		),

		ReleasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carnumbers_releases_total",
				Help: "Release attempts by result",
			},
			[]string{"result"},
		),

		SyncPassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carnumbers_sync_passes_total",
				Help: "Roster sync passes by status",
			},
			[]string{"status"},
		),

		SyncedRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carnumbers_synced_rows_total",
				Help: "Reservations touched by sync passes, by outcome",
			},
			[]string{"result"},
		),

		SyncPassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "carnumbers_sync_pass_duration_seconds",
				Help:    "Duration of a single guild sync pass",
				Buckets: prometheus.DefBuckets,
			},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "carnumbers_sweep_duration_seconds",
				Help:    "Duration of a full sync sweep across guilds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),

		SweepFailures: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "carnumbers_sweep_failed_guilds",
				Help: "Guilds whose pass failed in the most recent sweep",
			},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "carnumbers_availability_cache_hits_total",
				Help: "Availability lookups served from cache",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "carnumbers_availability_cache_misses_total",
				Help: "Availability lookups computed from the store",
			},
		),
	}
}

// NewNopMetrics returns metrics registered on a private registry.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
