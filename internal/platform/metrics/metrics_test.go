package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"

	"truckgate/pkg/testutil"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "truckgate_test_total",
		Help: "test counter",
	}).Inc()

	rr := testutil.DoRequest(Handler(reg), testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	body := rr.Body.String()
	assert.Contains(t, body, "truckgate_test_total 1")
	assert.Contains(t, body, "go_goroutines")
}
