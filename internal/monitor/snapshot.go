// Package monitor shows project progress: a plain status report and a
// live dashboard that redraws when project files change.
package monitor

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
	"github.com/fyrsmithlabs/claude-agent/internal/gitinfo"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/progress"
)

// historySize bounds the velocity series.
const historySize = 30

// Snapshot is the project state at one point in time.
type Snapshot struct {
	ProjectDir string
	Stack      string
	Branch     string

	State      ledger.SessionState
	Counts     ledger.TestCounts
	SpecPhase  ledger.SpecPhase
	Rejections int
	Locked     bool

	// Latest is the last progress entry, or nil.
	Latest *progress.Entry

	Indicators metrics.Indicators
	Sessions   int
	// Velocity is features completed per coding session, oldest first.
	Velocity []float64

	// SessionActive is true while an agent session is running.
	SessionActive bool
	TakenAt       time.Time
}

// Source reads snapshots of one project.
type Source struct {
	Dir     string
	Metrics *metrics.Store
	// LogDir holds the agent log; empty skips the active-session check.
	LogDir string
}

// Collect reads every project file the status views show. Missing files
// leave their fields at zero values.
func (s Source) Collect(ctx context.Context) Snapshot {
	dir := s.Dir
	snap := Snapshot{
		ProjectDir: dir,
		Stack:      detection.DetectStack(dir),
		State:      ledger.State(dir),
		Counts:     ledger.CountByType(dir),
		SpecPhase:  ledger.DerivePhase(dir),
		Rejections: ledger.RejectionCount(dir),
		Locked:     architecture.IsLocked(dir),
		Latest:     progress.LatestEntry(dir),
		TakenAt:    time.Now(),
	}
	if branch, err := gitinfo.Branch(dir); err == nil {
		snap.Branch = branch
	}
	if s.LogDir != "" {
		snap.SessionActive = logging.NewReader(s.LogDir).IsSessionActive()
	}
	if s.Metrics != nil {
		m := s.Metrics.Load(ctx)
		snap.Indicators = metrics.CalculateDriftIndicators(m, s.Metrics.Tuning())
		snap.Sessions = m.TotalSessions
		snap.Velocity = velocity(m.Sessions)
	}
	return snap
}

func velocity(sessions []metrics.SessionRecord) []float64 {
	if len(sessions) > historySize {
		sessions = sessions[len(sessions)-historySize:]
	}
	out := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, float64(s.FeaturesCompleted))
	}
	return out
}

// Ratio is the fraction of features passing, 0 when there are none.
func (s Snapshot) Ratio() float64 {
	if s.Counts.Total == 0 {
		return 0
	}
	return float64(s.Counts.Passing) / float64(s.Counts.Total)
}
