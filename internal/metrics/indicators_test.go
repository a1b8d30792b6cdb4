package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sessionsCompleting(counts ...int) *DriftMetrics {
	m := Empty()
	for i, c := range counts {
		m.Sessions = append(m.Sessions, SessionRecord{
			SessionID: i + 1, FeaturesCompleted: c, EvaluationCompletenessScore: 1,
		})
	}
	Recompute(m)
	return m
}

func TestCalculateDriftIndicators_VelocityTrend(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   string
	}{
		{"increasing", []int{2, 2, 2, 8, 8, 8}, TrendIncreasing},
		{"decreasing", []int{8, 8, 8, 2, 2, 2}, TrendDecreasing},
		{"stable", []int{5, 5, 5, 5, 5, 5}, TrendStable},
		{"below absolute threshold", []int{1, 1, 1, 1, 1, 2}, TrendStable},
		{"odd count splits at floor", []int{1, 1, 1, 3, 3, 3, 3}, TrendIncreasing},
		{"too few sessions", []int{1, 2, 3, 4, 5}, TrendInsufficientData},
		{"no sessions", nil, TrendInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDriftIndicators(sessionsCompleting(tt.counts...), DefaultTuning())
			assert.Equal(t, tt.want, got.VelocityTrend)
		})
	}
}

func TestCalculateDriftIndicators_Rates(t *testing.T) {
	m := sessionsCompleting(1, 1, 1, 1)
	m.Sessions[0].RegressionsCaught = 2
	m.ValidationAttempts = []ValidationRecord{
		{Attempt: 1, Verdict: VerdictRejected},
		{Attempt: 2, Verdict: VerdictRejected},
		{Attempt: 3, Verdict: VerdictApproved},
		{Attempt: 4, Verdict: VerdictApproved},
	}
	Recompute(m)

	got := CalculateDriftIndicators(m, DefaultTuning())
	assert.InDelta(t, 25.0, got.RegressionRate, 1e-9)
	assert.InDelta(t, 50.0, got.RejectionRate, 1e-9)
	assert.Equal(t, TrendInsufficientData, got.VelocityTrend)
}

func TestCalculateDriftIndicators_Empty(t *testing.T) {
	got := CalculateDriftIndicators(Empty(), DefaultTuning())
	assert.Equal(t, Indicators{VelocityTrend: TrendInsufficientData}, got)
}

func TestCalculateDriftIndicators_CustomTuning(t *testing.T) {
	m := sessionsCompleting(10, 10, 10, 11, 11, 11)
	assert.Equal(t, TrendStable, CalculateDriftIndicators(m, DefaultTuning()).VelocityTrend)

	loose := Tuning{VelocityRelative: 0.05, VelocityAbsolute: 0.1, Epsilon: 0.01}
	assert.Equal(t, TrendIncreasing, CalculateDriftIndicators(m, loose).VelocityTrend)
}

func TestValidateIntegrity(t *testing.T) {
	m := sessionsCompleting(1, 2)
	m.ValidationAttempts = []ValidationRecord{{Attempt: 1, Verdict: VerdictRejected}}
	Recompute(m)
	assert.Empty(t, ValidateIntegrity(m, 0.01))

	m.AverageFeaturesPerSession = 1.505
	assert.Empty(t, ValidateIntegrity(m, 0.01), "within epsilon")

	m.TotalSessions = 3
	m.TotalRegressionsCaught = 4
	m.AverageFeaturesPerSession = 2
	m.RejectionCount = 0
	assert.Equal(t, []string{
		"total_sessions mismatch: stored=3, calculated=2",
		"total_regressions_caught mismatch: stored=4, calculated=0",
		"average_features_per_session mismatch: stored=2.00, calculated=1.50",
		"rejection_count mismatch: stored=0, calculated=1",
	}, ValidateIntegrity(m, 0.01))
}
