// internal/metrics/store.go
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
)

// now is replaced in tests.
var now = time.Now

// Store reads and writes the metrics file of one project.
//
// Store is not safe for concurrent use across processes; one orchestrator
// drives a project at a time.
type Store struct {
	path   string
	tuning Tuning
	logger *logging.Logger
}

// NewStore creates a store for fileName inside projectDir. An empty
// fileName selects DefaultFileName; a nil logger discards warnings.
func NewStore(projectDir, fileName string, tuning Tuning, logger *logging.Logger) *Store {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		path:   filepath.Join(projectDir, fileName),
		tuning: tuning,
		logger: logger,
	}
}

// Path returns the metrics file path.
func (s *Store) Path() string {
	return s.path
}

// Tuning returns the thresholds the store was created with.
func (s *Store) Tuning() Tuning {
	return s.tuning
}

// Load reads the metrics file. A missing or unreadable file yields empty
// metrics. Aggregates that disagree with the detail records are logged
// as warnings and returned as stored.
func (s *Store) Load(ctx context.Context) *DriftMetrics {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(ctx, "failed to read metrics file", zap.String("path", s.path), zap.Error(err))
		}
		return Empty()
	}

	m := Empty()
	if err := json.Unmarshal(data, m); err != nil {
		s.logger.Warn(ctx, "metrics file is corrupt, starting fresh", zap.String("path", s.path), zap.Error(err))
		return Empty()
	}
	if m.Sessions == nil {
		m.Sessions = []SessionRecord{}
	}
	if m.ValidationAttempts == nil {
		m.ValidationAttempts = []ValidationRecord{}
	}

	for _, issue := range ValidateIntegrity(m, s.tuning.Epsilon) {
		s.logger.Warn(ctx, "Metrics integrity issue: "+issue, zap.String("path", s.path))
	}
	return m
}

// Save writes m atomically after recomputing its aggregates.
func (s *Store) Save(m *DriftMetrics) error {
	Recompute(m)
	if err := fileutil.AtomicWriteJSON(s.path, m); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// RecordSession appends rec and saves. The timestamp is set when empty.
func (s *Store) RecordSession(ctx context.Context, rec SessionRecord) error {
	m := s.Load(ctx)
	if rec.Timestamp == "" {
		rec.Timestamp = timestamp()
	}
	if rec.EvaluationSectionsPresent == nil {
		rec.EvaluationSectionsPresent = []string{}
	}
	m.Sessions = append(m.Sessions, rec)
	return s.Save(m)
}

// RecordValidation appends a validation attempt numbered after the
// existing ones and saves.
func (s *Store) RecordValidation(ctx context.Context, verdict string, tested, failed int, reasons []string) error {
	m := s.Load(ctx)
	if reasons == nil {
		reasons = []string{}
	}
	m.ValidationAttempts = append(m.ValidationAttempts, ValidationRecord{
		Attempt:        len(m.ValidationAttempts) + 1,
		Timestamp:      timestamp(),
		Verdict:        verdict,
		FeaturesTested: tested,
		FeaturesFailed: failed,
		FailureReasons: reasons,
	})
	return s.Save(m)
}

// Indicators loads the metrics and derives the drift indicators.
func (s *Store) Indicators(ctx context.Context) Indicators {
	return CalculateDriftIndicators(s.Load(ctx), s.tuning)
}

// Recompute rebuilds every aggregate from the detail records.
func Recompute(m *DriftMetrics) {
	a := aggregate(m)
	m.TotalSessions = a.totalSessions
	m.TotalRegressionsCaught = a.totalRegressions
	m.AverageFeaturesPerSession = a.averageFeatures
	m.RejectionCount = a.rejections
	m.MultiFeatureSessionCount = a.multiFeature
	m.IncompleteEvaluationCount = a.incomplete
}

type aggregates struct {
	totalSessions    int
	totalRegressions int
	averageFeatures  float64
	rejections       int
	multiFeature     int
	incomplete       int
}

func aggregate(m *DriftMetrics) aggregates {
	var a aggregates
	completed := 0
	for _, s := range m.Sessions {
		a.totalRegressions += s.RegressionsCaught
		completed += s.FeaturesCompleted
		if s.IsMultiFeature {
			a.multiFeature++
		}
		if s.EvaluationCompletenessScore < 1.0 {
			a.incomplete++
		}
	}
	a.totalSessions = len(m.Sessions)
	if a.totalSessions > 0 {
		a.averageFeatures = float64(completed) / float64(a.totalSessions)
	}
	for _, v := range m.ValidationAttempts {
		if v.Verdict == VerdictRejected {
			a.rejections++
		}
	}
	return a
}

func timestamp() string {
	return now().UTC().Format(time.RFC3339Nano)
}
