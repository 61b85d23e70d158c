package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"truckgate/internal/checkpoint/models"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the checkpoint module.
// Tracks issued codes, validation outcomes and critical path durations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CodesIssued       prometheus.Counter
	IssueFailures     prometheus.Counter
	Validations       *prometheus.CounterVec
	FeedFailures      prometheus.Counter
	IssueDuration     prometheus.Histogram
	ValidateDuration  prometheus.Histogram
	EndpointLatencies *prometheus.HistogramVec
}

// New creates the checkpoint metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "truckgate_codes_issued_total",
			Help: "Total number of driver codes issued",
		}),
		IssueFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "truckgate_issue_failures_total",
			Help: "Total number of issue attempts that failed",
		}),
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "truckgate_validations_total",
			Help: "Total number of validation attempts by outcome",
		}, []string{"outcome"}),
		FeedFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "truckgate_feed_publish_failures_total",
			Help: "Total number of entries the feed failed to publish",
		}),
		IssueDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "truckgate_issue_duration_seconds",
			Help:    "Duration of Issue operations (render, persist image, insert)",
			Buckets: latencyBuckets,
		}),
		ValidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "truckgate_validate_duration_seconds",
			Help:    "Duration of Validate operations (parse, lookup, log)",
			Buckets: latencyBuckets,
		}),
		EndpointLatencies: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truckgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: latencyBuckets,
		}, []string{"route", "method"}),
	}
}

// IncrementCodesIssued records a successful issue.
func (m *Metrics) IncrementCodesIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

// IncrementIssueFailures records a failed issue.
func (m *Metrics) IncrementIssueFailures() {
	if m == nil {
		return
	}
	m.IssueFailures.Inc()
}

// IncrementValidation records one validation attempt.
func (m *Metrics) IncrementValidation(outcome models.Outcome) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(string(outcome)).Inc()
}

// IncrementFeedFailures records an entry the feed could not deliver.
func (m *Metrics) IncrementFeedFailures() {
	if m == nil {
		return
	}
	m.FeedFailures.Inc()
}

// ObserveIssue records the duration of an Issue operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIssue(start time.Time) {
	if m == nil {
		return
	}
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

// ObserveValidate records the duration of a Validate operation.
func (m *Metrics) ObserveValidate(start time.Time) {
	if m == nil {
		return
	}
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}

// ObserveEndpoint records the latency of one HTTP request.
func (m *Metrics) ObserveEndpoint(route, method string, start time.Time) {
	if m == nil {
		return
	}
	m.EndpointLatencies.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}
