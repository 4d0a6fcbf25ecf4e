package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agro_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration      prometheus.Histogram
	CollectErrors    *prometheus.CounterVec // labels: source={weather,soil,forecast,images,stats,polygons}
	SinkWrites       *prometheus.CounterVec // labels: sink, outcome={success,error}
	SchedulerRunning prometheus.Gauge

	// Upstream API metrics.
	APIRequests    *prometheus.CounterVec   // labels: endpoint, outcome={success,error,circuit_open}
	APIDuration    *prometheus.HistogramVec // labels: endpoint
	StatsCache     *prometheus.CounterVec   // labels: result={hit,miss}
	CircuitBreaker prometheus.Gauge         // 0 closed, 1 half-open, 2 open
	APIRetries     prometheus.Counter

	// Latest analysis values.
	IrrigationScore prometheus.Gauge
	VegetationIndex prometheus.Gauge
	SoilMoisture    prometheus.Gauge
	StressFindings  *prometheus.GaugeVec // labels: severity
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWith creates metrics registered on reg. Short-lived processes
// that never expose /metrics pass a fresh prometheus.NewRegistry().
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collection and analysis runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete collect-analyze-load run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		CollectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collect_errors_total",
			Help:      "Upstream fetch failures by data source.",
		}, []string{"source"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Assessment writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Agromonitoring API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Agromonitoring API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		StatsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_total",
			Help:      "Index statistics cache lookups by result.",
		}, []string{"result"}),
		CircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Upstream circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		APIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Retried Agromonitoring API requests.",
		}),
		IrrigationScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "irrigation_score",
			Help:      "Irrigation urgency score of the latest analysis (0-100).",
		}),
		VegetationIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vegetation_index",
			Help:      "Latest mean NDVI over the polygon.",
		}),
		SoilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_percent",
			Help:      "Latest soil moisture in percent.",
		}),
		StressFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stress_findings",
			Help:      "Stress findings in the latest analysis by severity.",
		}, []string{"severity"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.CollectErrors,
		m.SinkWrites,
		m.SchedulerRunning,
		m.APIRequests,
		m.APIDuration,
		m.StatsCache,
		m.CircuitBreaker,
		m.APIRetries,
		m.IrrigationScore,
		m.VegetationIndex,
		m.SoilMoisture,
		m.StressFindings,
	}
}
