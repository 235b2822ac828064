package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// report sync engine.
type Metrics struct {
	ReportsSubmitted prometheus.Counter
	SubmitFailures   *prometheus.CounterVec // labels: stage={upload,commit}
	ReportsLoaded    *prometheus.CounterVec // labels: scope={mine,others,all}
	ReportsDeleted   *prometheus.CounterVec // labels: mode={one,mine}
	EngineRunning    prometheus.Gauge

	// Upload pipeline metrics.
	UploadDuration *prometheus.HistogramVec // labels: variant={cloud,s3,local}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: method={forward,reverse}, result={hit,miss}

	// Live fix / proximity metrics.
	FixUpdates          prometheus.Counter
	NearestReportMeters prometheus.Gauge
	TrackedReports      prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ReportsSubmitted,
		m.SubmitFailures,
		m.ReportsLoaded,
		m.ReportsDeleted,
		m.EngineRunning,
		m.UploadDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.FixUpdates,
		m.NearestReportMeters,
		m.TrackedReports,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct engines repeatedly without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "reports_submitted_total",
			Help:      "Total reports committed to the remote store.",
		}),
		SubmitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "submit_failures_total",
			Help:      "Submission failures by pipeline stage.",
		}, []string{"stage"}),
		ReportsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "reports_loaded_total",
			Help:      "Report listing operations by owner scope.",
		}, []string{"scope"}),
		ReportsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "reports_deleted_total",
			Help:      "Delete operations by mode (single record or owner batch).",
		}, []string{"mode"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reportsync",
			Name:      "engine_running",
			Help:      "1 when the sync engine is wired and serving, 0 when shut down.",
		}),
		UploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reportsync",
			Name:      "upload_duration_seconds",
			Help:      "Photo upload duration by pipeline variant.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"variant"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		FixUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reportsync",
			Name:      "fix_updates_total",
			Help:      "Location fix updates consumed from the feed.",
		}),
		NearestReportMeters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reportsync",
			Name:      "nearest_report_meters",
			Help:      "Distance from the latest fix to the nearest tracked report.",
		}),
		TrackedReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reportsync",
			Name:      "tracked_reports",
			Help:      "Number of reports currently held by the proximity tracker.",
		}),
	}
}
