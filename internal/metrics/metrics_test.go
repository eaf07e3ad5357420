package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichardoC/clawd-gateway/internal/metrics"
)

func TestCompletionMetrics(t *testing.T) {
	m := metrics.New()
	m.ObserveCompletion("m1", 300*time.Millisecond, nil)
	m.ObserveCompletion("m1", 0, errors.New("boom"))
	m.ObserveCompletion("m1", 0, errors.New("boom"))

	expected := `
# HELP clawd_completion_errors_total Completion calls that returned an error.
# TYPE clawd_completion_errors_total counter
clawd_completion_errors_total{model="m1"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "clawd_completion_errors_total"))
	count, err := testutil.GatherAndCount(m.Registry(), "clawd_completion_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCompletion("m1", time.Second, nil)
		m.MessagePersisted("user")
		m.RequestServed(http.MethodGet, http.StatusOK)
		assert.NoError(t, m.AddBuildInfo("v", "go"))
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := metrics.New()
	require.NoError(t, m.AddBuildInfo("test", "go1.24"))
	m.MessagePersisted("assistant")
	m.RequestServed(http.MethodPost, http.StatusCreated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `clawd_messages_persisted_total{role="assistant"} 1`)
	assert.Contains(t, body, `clawd_http_requests_total{method="POST",status="201"} 1`)
	assert.Contains(t, body, `clawd_build_info{goversion="go1.24",version="test"} 1`)
}
