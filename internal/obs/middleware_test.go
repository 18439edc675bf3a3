package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{1, 10}, registry)
	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("toko", nil, registry)
	second := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestRequestLoggerIncludesRouteAndTenant(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.RequestLogger{Logger: zerolog.New(&buf)}

	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Get("/currencies/{code}/rate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/currencies/EUR/rate", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "acme"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "/currencies/EUR/rate", entry["path"])
	require.Equal(t, "/currencies/{code}/rate", entry["route"])
	require.Equal(t, "acme", entry["tenant_id"])
	require.EqualValues(t, 200, entry["status"])
	require.EqualValues(t, 2, entry["bytes"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10.5}, obs.ParseBucketsCSV("5, x, -1, ,10.5"))
	require.Nil(t, obs.ParseBucketsCSV("  "))
}

func TestDomainHelpersAreNilSafe(t *testing.T) {
	require.NotPanics(t, func() {
		obs.ObservePricing("invoice", "ok")
		obs.ObserveCurrencyFallback("settings_unavailable")
	})
}

func TestRequestLoggerScopesDownstreamLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.RequestLogger{Logger: zerolog.New(&buf)}

	handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := obs.LoggerFromContext(r.Context(), zerolog.Nop())
		l.Info().Msg("inner")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "acme"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(line, &entry))
	require.Equal(t, "inner", entry["message"])
	require.Equal(t, "acme", entry["tenant_id"])
}

func TestLoggerFromContextFallback(t *testing.T) {
	var buf bytes.Buffer
	fallback := zerolog.New(&buf)

	l := obs.LoggerFromContext(context.Background(), fallback)
	l.Info().Msg("fallback")
	require.Contains(t, buf.String(), "fallback")
}
