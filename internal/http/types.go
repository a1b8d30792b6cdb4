package http

import (
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Telemetry string `json:"telemetry,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	ProjectDir    string            `json:"project_dir"`
	Stack         string            `json:"stack"`
	Branch        string            `json:"branch,omitempty"`
	State         string            `json:"state"`
	SpecPhase     string            `json:"spec_phase"`
	Counts        ledger.TestCounts `json:"counts"`
	Rejections    int               `json:"rejections"`
	Locked        bool              `json:"architecture_locked"`
	SessionActive bool              `json:"session_active"`
	Latest        *LatestSession    `json:"latest_session,omitempty"`
	TakenAt       time.Time         `json:"taken_at"`
}

// LatestSession summarises the last progress entry.
type LatestSession struct {
	Number     int      `json:"number"`
	Validation bool     `json:"validation"`
	Completed  []string `json:"completed"`
	NextSteps  []string `json:"next_steps"`
}

// DriftResponse is the response body for GET /api/v1/drift.
type DriftResponse struct {
	TotalSessions             int                `json:"total_sessions"`
	TotalRegressionsCaught    int                `json:"total_regressions_caught"`
	AverageFeaturesPerSession float64            `json:"average_features_per_session"`
	RejectionCount            int                `json:"rejection_count"`
	MultiFeatureSessionCount  int                `json:"multi_feature_session_count"`
	IncompleteEvaluationCount int                `json:"incomplete_evaluation_count"`
	ValidationAttempts        int                `json:"validation_attempts"`
	Indicators                metrics.Indicators `json:"indicators"`
	// Velocity is features completed per coding session, oldest first.
	Velocity        []float64 `json:"velocity"`
	IntegrityIssues []string  `json:"integrity_issues"`
}

func newStatusResponse(s monitor.Snapshot) StatusResponse {
	resp := StatusResponse{
		ProjectDir:    s.ProjectDir,
		Stack:         s.Stack,
		Branch:        s.Branch,
		State:         string(s.State),
		SpecPhase:     string(s.SpecPhase),
		Counts:        s.Counts,
		Rejections:    s.Rejections,
		Locked:        s.Locked,
		SessionActive: s.SessionActive,
		TakenAt:       s.TakenAt,
	}
	if e := s.Latest; e != nil {
		latest := &LatestSession{
			Number:     e.SessionNumber,
			Validation: e.IsValidationSession,
			Completed:  make([]string, 0, len(e.CompletedFeatures)),
			NextSteps:  e.NextSteps,
		}
		for _, f := range e.CompletedFeatures {
			latest.Completed = append(latest.Completed, f.Description)
		}
		if latest.NextSteps == nil {
			latest.NextSteps = []string{}
		}
		resp.Latest = latest
	}
	return resp
}

func newDriftResponse(m *metrics.DriftMetrics, ind metrics.Indicators, velocity []float64, issues []string) DriftResponse {
	if velocity == nil {
		velocity = []float64{}
	}
	if issues == nil {
		issues = []string{}
	}
	return DriftResponse{
		TotalSessions:             m.TotalSessions,
		TotalRegressionsCaught:    m.TotalRegressionsCaught,
		AverageFeaturesPerSession: m.AverageFeaturesPerSession,
		RejectionCount:            m.RejectionCount,
		MultiFeatureSessionCount:  m.MultiFeatureSessionCount,
		IncompleteEvaluationCount: m.IncompleteEvaluationCount,
		ValidationAttempts:        len(m.ValidationAttempts),
		Indicators:                ind,
		Velocity:                  velocity,
		IntegrityIssues:           issues,
	}
}
