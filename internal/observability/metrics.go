package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	transitionsTotal      *prometheus.CounterVec
	violationsTotal       *prometheus.CounterVec
	answersRecordedTotal  *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	cacheLookupsTotal     *prometheus.CounterVec
	eventsPublishedTotal  *prometheus.CounterVec
	monitorConnections    prometheus.Gauge
	submitLatencySeconds  prometheus.Histogram
	scoringDuplicateTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalium_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_assignment_transitions_total",
			Help: "Assignment lifecycle transitions by target state.",
		}, []string{"transition"})

		violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_security_violations_total",
			Help: "Security violations reported by exam clients.",
		}, []string{"type", "terminal"})

		answersRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_answers_recorded_total",
			Help: "Answers written, by question type.",
		}, []string{"question_type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_answer_upload_rejected_total",
			Help: "Rejected file answers by reason.",
		}, []string{"reason"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		}, []string{"outcome"})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalium_assignment_events_published_total",
			Help: "Assignment events published by transport.",
		}, []string{"transport"})

		monitorConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evalium_monitor_connections",
			Help: "Open live monitor websocket connections.",
		})

		submitLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evalium_submit_latency_seconds",
			Help:    "Time spent scoring and persisting a submission.",
			Buckets: prometheus.DefBuckets,
		})

		scoringDuplicateTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalium_scoring_duplicate_answers_total",
			Help: "Extra answer rows found on single-valued questions while scoring.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			transitionsTotal, violationsTotal, answersRecordedTotal, uploadRejectedTotal,
			cacheLookupsTotal, eventsPublishedTotal, monitorConnections,
			submitLatencySeconds, scoringDuplicateTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Transitions counts assignment lifecycle transitions.
func Transitions() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// Violations counts reported security violations.
func Violations() *prometheus.CounterVec {
	RegisterMetrics()
	return violationsTotal
}

// AnswersRecorded counts answer writes.
func AnswersRecorded() *prometheus.CounterVec {
	RegisterMetrics()
	return answersRecordedTotal
}

// UploadRejected counts rejected file answers.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// CacheLookups counts result cache hits and misses.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}

// EventsPublished counts assignment events per transport.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// MonitorConnections tracks open live monitor sockets.
func MonitorConnections() prometheus.Gauge {
	RegisterMetrics()
	return monitorConnections
}

// SubmitLatency observes submit durations.
func SubmitLatency() prometheus.Histogram {
	RegisterMetrics()
	return submitLatencySeconds
}

// ScoringDuplicates counts duplicate answer rows met while scoring.
func ScoringDuplicates() prometheus.Counter {
	RegisterMetrics()
	return scoringDuplicateTotal
}
