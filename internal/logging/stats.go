// internal/logging/stats.go
package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// SessionStats summarises one agent session.
type SessionStats struct {
	SessionID         string         `json:"session_id"`
	AgentType         string         `json:"agent_type"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           *time.Time     `json:"end_time,omitempty"`
	DurationSeconds   float64        `json:"duration_seconds"`
	TurnsUsed         int            `json:"turns_used"`
	ToolsCalled       map[string]int `json:"tools_called"`
	SecurityBlocks    int            `json:"security_blocks"`
	FeaturesCompleted []int          `json:"features_completed"`
	FeaturesFailed    []int          `json:"features_failed"`
	Errors            int            `json:"errors_encountered"`
}

// StatsAggregate totals every recorded session.
type StatsAggregate struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalTurns             int     `json:"total_turns"`
	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	TotalFeaturesCompleted int     `json:"total_features_completed"`
	TotalSecurityBlocks    int     `json:"total_security_blocks"`
}

// StatsFile is the on-disk shape of sessions.json.
type StatsFile struct {
	Sessions  []SessionStats `json:"sessions"`
	Aggregate StatsAggregate `json:"aggregate"`
}

// StatsTracker accumulates statistics for one session and appends them
// to sessions.json on Save.
type StatsTracker struct {
	path  string
	stats SessionStats
	now   func() time.Time
}

// NewStatsTracker starts tracking a session.
func NewStatsTracker(logDir, sessionID, agentType string) *StatsTracker {
	t := &StatsTracker{
		path: filepath.Join(logDir, StatsFileName),
		now:  time.Now,
	}
	t.stats = SessionStats{
		SessionID:         sessionID,
		AgentType:         agentType,
		StartTime:         t.now().UTC(),
		ToolsCalled:       map[string]int{},
		FeaturesCompleted: []int{},
		FeaturesFailed:    []int{},
	}
	return t
}

func (t *StatsTracker) RecordToolCall(tool string) { t.stats.ToolsCalled[tool]++ }
func (t *StatsTracker) RecordSecurityBlock()        { t.stats.SecurityBlocks++ }
func (t *StatsTracker) RecordError()                { t.stats.Errors++ }
func (t *StatsTracker) SetTurnsUsed(turns int)      { t.stats.TurnsUsed = turns }

// RecordFeatureComplete notes a completed feature once.
func (t *StatsTracker) RecordFeatureComplete(index int) {
	if !slices.Contains(t.stats.FeaturesCompleted, index) {
		t.stats.FeaturesCompleted = append(t.stats.FeaturesCompleted, index)
	}
}

// RecordFeatureFailed notes a failed feature once.
func (t *StatsTracker) RecordFeatureFailed(index int) {
	if !slices.Contains(t.stats.FeaturesFailed, index) {
		t.stats.FeaturesFailed = append(t.stats.FeaturesFailed, index)
	}
}

// Stats returns a copy of the tracked stats.
func (t *StatsTracker) Stats() SessionStats {
	return t.stats
}

// Save closes the session and appends it to sessions.json, recomputing the
// aggregate from every stored session.
func (t *StatsTracker) Save() error {
	end := t.now().UTC()
	t.stats.EndTime = &end
	t.stats.DurationSeconds = end.Sub(t.stats.StartTime).Seconds()

	file := LoadStats(filepath.Dir(t.path))
	file.Sessions = append(file.Sessions, t.stats)
	file.Aggregate = aggregateStats(file.Sessions)

	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := fileutil.AtomicWriteJSON(t.path, file); err != nil {
		return fmt.Errorf("write session stats: %w", err)
	}
	return nil
}

func aggregateStats(sessions []SessionStats) StatsAggregate {
	agg := StatsAggregate{TotalSessions: len(sessions)}
	for _, s := range sessions {
		agg.TotalTurns += s.TurnsUsed
		agg.TotalDurationSeconds += s.DurationSeconds
		agg.TotalFeaturesCompleted += len(s.FeaturesCompleted)
		agg.TotalSecurityBlocks += s.SecurityBlocks
	}
	return agg
}

// LoadStats reads sessions.json. A missing or corrupt file yields an
// empty StatsFile.
func LoadStats(logDir string) StatsFile {
	empty := StatsFile{Sessions: []SessionStats{}}
	data, err := os.ReadFile(filepath.Join(logDir, StatsFileName))
	if err != nil {
		return empty
	}
	var file StatsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return empty
	}
	if file.Sessions == nil {
		file.Sessions = []SessionStats{}
	}
	return file
}

// ResetStats deletes sessions.json. A missing file is not an error.
func ResetStats(logDir string) error {
	err := os.Remove(filepath.Join(logDir, StatsFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset session stats: %w", err)
	}
	return nil
}
