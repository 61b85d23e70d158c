package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"truckgate/internal/checkpoint/models"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementCodesIssued()
	m.IncrementIssueFailures()
	m.IncrementValidation(models.OutcomeValid)
	m.IncrementValidation(models.OutcomeInvalid)
	m.IncrementValidation(models.OutcomeInvalid)
	m.IncrementFeedFailures()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssueFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("VALID")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Validations.WithLabelValues("INVALID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFailures))
}

func TestHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	start := time.Now()
	m.ObserveIssue(start)
	m.ObserveValidate(start)
	m.ObserveEndpoint("/logs", "GET", start)

	assert.Equal(t, 3, testutil.CollectAndCount(reg,
		"truckgate_issue_duration_seconds",
		"truckgate_validate_duration_seconds",
		"truckgate_http_request_duration_seconds",
	))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementCodesIssued()
		m.IncrementIssueFailures()
		m.IncrementValidation(models.OutcomeSystemError)
		m.IncrementFeedFailures()
		m.ObserveIssue(time.Now())
		m.ObserveValidate(time.Now())
		m.ObserveEndpoint("/", "GET", time.Now())
	})
}
