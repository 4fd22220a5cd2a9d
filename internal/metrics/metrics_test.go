package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransition(t *testing.T) {
	m := New("storefront")
	m.ObserveTransition("approve", "success")
	m.ObserveTransition("approve", "success")
	m.ObserveTransition("approve", "conflict")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("approve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("approve", "conflict")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveTransition("approve", "success") })
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New("storefront")
	m.ObservePayment("create_order", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_payment_gateway_requests_total{endpoint="create_order",outcome="success"} 1`)
}
