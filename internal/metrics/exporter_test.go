package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter_Refresh(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir(), "", DefaultTuning(), nil)
	for i, c := range []int{2, 2, 2, 8, 8, 8} {
		require.NoError(t, store.RecordSession(ctx, SessionRecord{
			SessionID: i + 1, FeaturesCompleted: c, EvaluationCompletenessScore: 1,
		}))
	}
	require.NoError(t, store.RecordValidation(ctx, VerdictRejected, 6, 1, nil))

	e := NewExporter(store)
	e.Refresh(ctx)

	assert.Equal(t, 6.0, testutil.ToFloat64(e.totalSessions))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.averageFeatures))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.rejections))
	assert.Equal(t, 100.0, testutil.ToFloat64(e.rejectionRate))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.integrityIssues))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.velocityTrend.WithLabelValues(TrendIncreasing)))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.velocityTrend.WithLabelValues(TrendStable)))
}

func TestExporter_Handler(t *testing.T) {
	store := NewStore(t.TempDir(), "", DefaultTuning(), nil)
	srv := httptest.NewServer(NewExporter(store).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "claude_agent_drift_sessions_total 0")
	assert.Contains(t, string(body), `claude_agent_drift_velocity_trend{trend="insufficient_data"} 1`)
}
