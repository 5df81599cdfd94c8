package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/internal/session"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordStateTransition_ViaSession(t *testing.T) {
	before := counterValue(t, stateTransitionsTotal.WithLabelValues("need_area", "need_search_type"))

	require.NoError(t, session.Transition(session.NeedArea(), session.NeedSearchType()))

	after := counterValue(t, stateTransitionsTotal.WithLabelValues("need_area", "need_search_type"))
	assert.Equal(t, before+1, after)
}

func TestRecordRateLimitCheck(t *testing.T) {
	RecordRateLimitCheck("redis", true)
	RecordRateLimitCheck("redis", false)
	RecordRateLimitCheck("redis", false)

	assert.GreaterOrEqual(t, counterValue(t, ratelimitChecksTotal.WithLabelValues("redis", "rejected")), 2.0)
	assert.GreaterOrEqual(t, counterValue(t, ratelimitChecksTotal.WithLabelValues("redis", "allowed")), 1.0)
}

func TestRecordEmptyLabels(t *testing.T) {
	RecordSMS("", "")
	RecordUSSDScreen("", "")

	assert.GreaterOrEqual(t, counterValue(t, smsMessagesTotal.WithLabelValues("unknown", "unknown")), 1.0)
	assert.GreaterOrEqual(t, counterValue(t, ussdScreensTotal.WithLabelValues("unknown", "unknown")), 1.0)
}

func TestHandler_ServesSeries(t *testing.T) {
	RecordHTTPRequest("/health", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	RecordOrderCreated()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="200"}`)
	assert.Contains(t, rec.Body.String(), "orders_created_total")
}
