package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder handles metrics recording and exposure
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec
	rateLimitedCounter  *prometheus.CounterVec

	// Scenario metrics
	scenarioRunCounter  *prometheus.CounterVec
	scenarioRunLatency  *prometheus.HistogramVec
	pathsSimulated      prometheus.Counter
	activeWorkersGauge  prometheus.Gauge
	noiseLatency        prometheus.Histogram
	retainedRank        prometheus.Histogram
	runEventCounter     *prometheus.CounterVec
	feedSubscriberGauge prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewRecorder creates a recorder whose metrics are registered with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		// API metrics
		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esg_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),
		rateLimitedCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_api_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),

		// Scenario metrics
		scenarioRunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_scenario_runs_total",
				Help: "Scenario batches by outcome",
			},
			[]string{"outcome"},
		),
		scenarioRunLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esg_scenario_run_duration_seconds",
				Help:    "End-to-end scenario batch latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // From 1ms to ~33s
			},
			[]string{"outcome"},
		),
		pathsSimulated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "esg_paths_simulated_total",
				Help: "The total number of simulated paths",
			},
		),
		activeWorkersGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "esg_simulation_workers_active",
				Help: "Workers currently assigned to scenario batches",
			},
		),
		noiseLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "esg_noise_generation_duration_seconds",
				Help:    "Time to factorize and draw one correlated noise stream",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // From 0.1ms to ~3s
			},
		),
		retainedRank: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "esg_correlation_rank",
				Help:    "Retained factor count of request correlation matrices",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8), // From 1 to 128
			},
		),
		runEventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esg_run_events_total",
				Help: "Run events handed to each sink",
			},
			[]string{"sink", "result"},
		),
		feedSubscriberGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "esg_run_feed_subscribers",
				Help: "Connected run feed clients",
			},
		),
	}
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordRateLimited counts a request rejected by the limiter
func (r *Recorder) RecordRateLimited(path string) {
	r.rateLimitedCounter.WithLabelValues(path).Inc()
}

// RecordScenarioRun records one finished batch
func (r *Recorder) RecordScenarioRun(outcome string, paths int, duration time.Duration) {
	r.scenarioRunCounter.WithLabelValues(outcome).Inc()
	r.scenarioRunLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	if paths > 0 {
		r.pathsSimulated.Add(float64(paths))
	}
}

// RecordNoiseGeneration records the cost and rank of one noise stream
func (r *Recorder) RecordNoiseGeneration(duration time.Duration, rank int) {
	r.noiseLatency.Observe(duration.Seconds())
	r.retainedRank.Observe(float64(rank))
}

// AddScenarioWorkers moves the active worker gauge by delta
func (r *Recorder) AddScenarioWorkers(delta int) {
	r.activeWorkersGauge.Add(float64(delta))
}

// RecordRunEvent records the result of handing a run event to sink
func (r *Recorder) RecordRunEvent(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.runEventCounter.WithLabelValues(sink, result).Inc()
}

// SetFeedSubscribers records the connected run feed client count
func (r *Recorder) SetFeedSubscribers(n int) {
	r.feedSubscriberGauge.Set(float64(n))
}
