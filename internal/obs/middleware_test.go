package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/auroramart/backend-mart/internal/obs"
)

func observe(t *testing.T, metrics *obs.HTTPMetrics, method, target, pattern string, status int) *httptest.ResponseRecorder {
	t.Helper()
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	req := httptest.NewRequest(method, target, nil)
	if pattern != "" {
		req = req.WithContext(obs.WithRoutePattern(req.Context(), pattern))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("mart", []float64{1, 10}, registry)

	rr := observe(t, metrics, http.MethodGet, "/api/v1/orders/abc123", "/api/v1/orders/{id}", http.StatusNoContent)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// counter labelled by the pattern, not the raw path
	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/orders/{id}", "204"))
	require.Equal(t, float64(1), total)
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsFallsBackToRawPath(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("mart", []float64{1, 10}, registry)

	observe(t, metrics, http.MethodPost, "/api/v1/checkout", "", http.StatusCreated)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/checkout", "201"))
	require.Equal(t, float64(1), total)
}

func TestRoutePatternRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	require.Empty(t, obs.RoutePatternFromContext(req.Context()))

	ctx := obs.WithRoutePattern(req.Context(), "/api/v1/cart")
	require.Equal(t, "/api/v1/cart", obs.RoutePatternFromContext(ctx))
}
