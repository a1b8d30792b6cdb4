package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tel.Telemetry, logging.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "nope")
	})

	for _, path := range []string{"/health", "/health", "/fail"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ctx := context.Background()
	requests := tel.Metric(ctx, "claude_agent.http.requests_total")
	require.NotNil(t, requests)
	sum, ok := requests.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[endpoint.AsString()+" "+status.Emit()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/health 200"])
	assert.Equal(t, int64(1), counts["/fail 400"])

	assert.NotNil(t, tel.Metric(ctx, "claude_agent.http.request_duration_seconds"))

	active := tel.Metric(ctx, "claude_agent.http.active_requests")
	require.NotNil(t, active)
	gauge, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range gauge.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestHTTPMetrics_ErrorResponseWritten(t *testing.T) {
	m := NewHTTPMetrics(nil, nil)
	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Body.String(), "short and stout")
}

func TestRoutePath(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
	assert.Equal(t, "unmatched", routePath(c))

	c.SetPath("/api/v1/status")
	assert.Equal(t, "/api/v1/status", routePath(c))
}
