// internal/metrics/types.go
package metrics

import (
	"encoding/json"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
)

// DefaultFileName is the metrics file used when nothing is configured.
const DefaultFileName = "drift-metrics.json"

// Validation verdicts as stored in the metrics file.
const (
	VerdictApproved = "approved"
	VerdictRejected = "rejected"
)

// Velocity trends reported by CalculateDriftIndicators.
const (
	TrendIncreasing       = "increasing"
	TrendStable           = "stable"
	TrendDecreasing       = "decreasing"
	TrendInsufficientData = "insufficient_data"
)

// MinTrendSessions is the number of sessions needed before a velocity
// trend is reported.
const MinTrendSessions = 6

// SessionRecord holds the metrics of one coding session.
type SessionRecord struct {
	SessionID                   int      `json:"session_id"`
	Timestamp                   string   `json:"timestamp"`
	FeaturesAttempted           int      `json:"features_attempted"`
	FeaturesCompleted           int      `json:"features_completed"`
	RegressionsCaught           int      `json:"regressions_caught"`
	AssumptionsStated           int      `json:"assumptions_stated"`
	AssumptionsViolated         int      `json:"assumptions_violated"`
	ArchitectureDeviations      int      `json:"architecture_deviations"`
	EvaluationSectionsPresent   []string `json:"evaluation_sections_present"`
	FeaturesRegressed           int      `json:"features_regressed"`
	EvaluationCompletenessScore float64  `json:"evaluation_completeness_score"`
	IsMultiFeature              bool     `json:"is_multi_feature"`
}

// UnmarshalJSON fills defaults for fields older files do not carry: a
// missing completeness score counts as a complete evaluation.
func (s *SessionRecord) UnmarshalJSON(data []byte) error {
	type plain SessionRecord
	p := plain{EvaluationCompletenessScore: 1.0}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.EvaluationSectionsPresent == nil {
		p.EvaluationSectionsPresent = []string{}
	}
	*s = SessionRecord(p)
	return nil
}

// ValidationRecord holds the metrics of one validation attempt.
type ValidationRecord struct {
	Attempt        int      `json:"attempt"`
	Timestamp      string   `json:"timestamp"`
	Verdict        string   `json:"verdict"`
	FeaturesTested int      `json:"features_tested"`
	FeaturesFailed int      `json:"features_failed"`
	FailureReasons []string `json:"failure_reasons"`
}

// DriftMetrics is the on-disk document: detail records plus aggregates
// derived from them.
type DriftMetrics struct {
	Sessions                  []SessionRecord    `json:"sessions"`
	ValidationAttempts        []ValidationRecord `json:"validation_attempts"`
	TotalSessions             int                `json:"total_sessions"`
	TotalRegressionsCaught    int                `json:"total_regressions_caught"`
	AverageFeaturesPerSession float64            `json:"average_features_per_session"`
	RejectionCount            int                `json:"rejection_count"`
	MultiFeatureSessionCount  int                `json:"multi_feature_session_count"`
	IncompleteEvaluationCount int                `json:"incomplete_evaluation_count"`
}

// Empty returns metrics with no records.
func Empty() *DriftMetrics {
	return &DriftMetrics{
		Sessions:           []SessionRecord{},
		ValidationAttempts: []ValidationRecord{},
	}
}

// Indicators are the drift signals derived from a metrics document.
type Indicators struct {
	// RegressionRate is the percentage of sessions that caught a regression.
	RegressionRate float64 `json:"regression_rate"`
	VelocityTrend  string  `json:"velocity_trend"`
	// RejectionRate is the percentage of validation attempts rejected.
	RejectionRate float64 `json:"rejection_rate"`
}

// Tuning holds the thresholds used by trend detection and the integrity
// check.
type Tuning struct {
	// VelocityRelative is the fraction of the first-half mean a change
	// must exceed to count as a trend.
	VelocityRelative float64
	// VelocityAbsolute is the minimum change in features per session
	// that counts as a trend.
	VelocityAbsolute float64
	// Epsilon is the tolerance for float aggregates.
	Epsilon float64
}

// DefaultTuning returns the stock thresholds.
func DefaultTuning() Tuning {
	return Tuning{VelocityRelative: 0.10, VelocityAbsolute: 0.5, Epsilon: 0.01}
}

// TuningFromConfig builds Tuning from the metrics config section. Zero
// values fall back to the defaults.
func TuningFromConfig(cfg config.MetricsConfig) Tuning {
	t := DefaultTuning()
	if cfg.VelocityRelative > 0 {
		t.VelocityRelative = cfg.VelocityRelative
	}
	if cfg.VelocityAbsolute > 0 {
		t.VelocityAbsolute = cfg.VelocityAbsolute
	}
	if cfg.Epsilon > 0 {
		t.Epsilon = cfg.Epsilon
	}
	return t
}
