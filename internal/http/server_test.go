package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
	"github.com/fyrsmithlabs/claude-agent/internal/progress"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewTestLogger().Logger
	store := metrics.NewStore(dir, "", metrics.DefaultTuning(), logger)

	server, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, logger, nil, nil)
	require.NoError(t, err)
	return server, dir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewNop()
	store := metrics.NewStore(dir, "", metrics.DefaultTuning(), logger)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, logger, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9464", server.config.Addr())
	})

	t.Run("keeps explicit config", func(t *testing.T) {
		cfg := &Config{Host: "127.0.0.1", Port: 8080, ShutdownTimeout: time.Second}
		server, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, logger, cfg, nil)
		require.NoError(t, err)
		assert.Same(t, cfg, server.config)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error without a metrics store", func(t *testing.T) {
		_, err := NewServer(monitor.Source{Dir: dir}, logger, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metrics store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := get(t, server, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Telemetry)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleHealth_ReportsTelemetry(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewNop()
	store := metrics.NewStore(dir, "", metrics.DefaultTuning(), logger)
	tel := telemetry.NewTestTelemetry()

	server, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, logger, nil, tel.Telemetry)
	require.NoError(t, err)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(get(t, server, "/health").Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Telemetry)
}

func TestHandleStatus(t *testing.T) {
	server, dir := setupTestServer(t)
	require.NoError(t, ledger.Save(dir, []ledger.Feature{
		{Description: "User can sign up", Passes: true},
		{Description: "User can log in"},
	}))
	require.NoError(t, progress.Append(dir, progress.Entry{
		SessionNumber: 1,
		Timestamp:     "2026-10-01 10:00:00",
		Status:        progress.NewStatus(1, 2),
		CompletedFeatures: []progress.CompletedFeature{
			{Index: 0, Description: "User can sign up", VerificationMethod: "e2e"},
		},
		NextSteps: []string{"Implement login"},
	}))

	rec := get(t, server, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dir, resp.ProjectDir)
	assert.Equal(t, string(ledger.StateInProgress), resp.State)
	assert.Equal(t, 2, resp.Counts.Total)
	assert.Equal(t, 1, resp.Counts.Passing)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, 1, resp.Latest.Number)
	assert.Equal(t, []string{"User can sign up"}, resp.Latest.Completed)
	assert.Equal(t, []string{"Implement login"}, resp.Latest.NextSteps)
}

func TestHandleStatus_FreshProject(t *testing.T) {
	server, _ := setupTestServer(t)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(get(t, server, "/api/v1/status").Body.Bytes(), &resp))
	assert.Equal(t, string(ledger.StateFresh), resp.State)
	assert.Equal(t, string(ledger.PhaseNone), resp.SpecPhase)
	assert.Nil(t, resp.Latest)
}

func TestHandleDrift(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	store := server.source.Metrics
	for i, done := range []int{1, 2} {
		require.NoError(t, store.RecordSession(ctx, metrics.SessionRecord{SessionID: i + 1, FeaturesCompleted: done, RegressionsCaught: i}))
	}
	require.NoError(t, store.RecordValidation(ctx, metrics.VerdictRejected, 3, 1, []string{"button missing"}))

	rec := get(t, server, "/api/v1/drift")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DriftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalSessions)
	assert.Equal(t, 1, resp.TotalRegressionsCaught)
	assert.Equal(t, 1, resp.RejectionCount)
	assert.Equal(t, 1, resp.ValidationAttempts)
	assert.InDelta(t, 1.5, resp.AverageFeaturesPerSession, 0.001)
	assert.Equal(t, []float64{1, 2}, resp.Velocity)
	assert.Equal(t, metrics.TrendInsufficientData, resp.Indicators.VelocityTrend)
	assert.InDelta(t, 100.0, resp.Indicators.RejectionRate, 0.001)
	assert.Empty(t, resp.IntegrityIssues)
}

func TestHandleDrift_IntegrityIssues(t *testing.T) {
	server, _ := setupTestServer(t)
	doc := `{"sessions": [], "validation_attempts": [], "total_sessions": 5}`
	require.NoError(t, os.WriteFile(server.source.Metrics.Path(), []byte(doc), 0o644))

	var resp DriftResponse
	require.NoError(t, json.Unmarshal(get(t, server, "/api/v1/drift").Body.Bytes(), &resp))
	require.Len(t, resp.IntegrityIssues, 1)
	assert.Contains(t, resp.IntegrityIssues[0], "total_sessions mismatch")
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	require.NoError(t, server.source.Metrics.RecordSession(context.Background(), metrics.SessionRecord{SessionID: 1, FeaturesCompleted: 1}))

	rec := get(t, server, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "claude_agent_drift_sessions_total 1")
	assert.Contains(t, rec.Body.String(), `claude_agent_drift_velocity_trend{trend="insufficient_data"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	server, _ := setupTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, server, "/api/v1/nope").Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	dir := t.TempDir()
	logger := logging.NewNop()
	store := metrics.NewStore(dir, "", metrics.DefaultTuning(), logger)
	cfg := &Config{Host: "127.0.0.1", Port: port, ShutdownTimeout: time.Second}
	server, err := NewServer(monitor.Source{Dir: dir, Metrics: store}, logger, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
