package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forest_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for reconciliation runs.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: result={success,error}
	RunDuration     prometheus.Histogram
	LastRunSuccess  prometheus.Gauge
	PipelineRunning prometheus.Gauge
	ForestsTotal    prometheus.Gauge

	// Entity resolution metrics.
	MatchOutcomes *prometheus.CounterVec // labels: source={facility,closure}, match_type={EXACT,FUZZY,UNMATCHED}

	// Geocoding metrics.
	GeocodeAttempts    *prometheus.CounterVec   // labels: provider, outcome
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeCacheResets prometheus.Counter
	GeocodeBudgetUsed  prometheus.Gauge
	GeocodeUpgrades    *prometheus.CounterVec // labels: result={success,failed,skipped,dropped}
	GeocodeUnresolved  prometheus.Gauge

	RecordsPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete reconciliation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		ForestsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forests",
			Help:      "Canonical forests produced by the last run.",
		}),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_outcomes_total",
			Help:      "Entity resolution results by source and match type.",
		}, []string{"source", "match_type"}),
		GeocodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_attempts_total",
			Help:      "Geocode cache checks and provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeCacheResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_resets_total",
			Help:      "Times the geocode cache store was recreated after corruption.",
		}),
		GeocodeBudgetUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_budget_used",
			Help:      "Provider lookups consumed by the current or last run.",
		}),
		GeocodeUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_upgrades_total",
			Help:      "Background cache upgrade jobs by result.",
		}, []string{"result"}),
		GeocodeUnresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_unresolved",
			Help:      "Forests without coordinates after the last run.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Canonical forest records written to the sink topic.",
		}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastRunSuccess,
		m.PipelineRunning,
		m.ForestsTotal,
		m.MatchOutcomes,
		m.GeocodeAttempts,
		m.GeocodeAPIDuration,
		m.GeocodeCache,
		m.GeocodeCacheResets,
		m.GeocodeBudgetUsed,
		m.GeocodeUpgrades,
		m.GeocodeUnresolved,
		m.RecordsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "runs_total"}, []string{"result"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "run_duration_seconds"}),
		LastRunSuccess:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "last_run_success_timestamp_seconds"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		ForestsTotal:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "forests"}),
		MatchOutcomes:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "match_outcomes_total"}, []string{"source", "match_type"}),
		GeocodeAttempts:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_attempts_total"}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}, []string{"provider"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeCacheResets: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_resets_total"}),
		GeocodeBudgetUsed:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_budget_used"}),
		GeocodeUpgrades:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_upgrades_total"}, []string{"result"}),
		GeocodeUnresolved:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_unresolved"}),
		RecordsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_published_total"}),
	}
}

// NewUnregisteredMetrics creates Metrics that are never exported, for
// one-shot commands that do not serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return NewMetricsForTesting()
}
