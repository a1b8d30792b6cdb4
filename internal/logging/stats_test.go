package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsTracker_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	clock := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	newTracker := func(id string) *StatsTracker {
		tr := NewStatsTracker(dir, id, "coding")
		tr.stats.StartTime = clock
		tr.now = func() time.Time { return clock.Add(30 * time.Second) }
		return tr
	}

	first := newTracker("s1")
	first.RecordToolCall("Bash")
	first.RecordToolCall("Bash")
	first.RecordSecurityBlock()
	first.RecordFeatureComplete(3)
	first.RecordFeatureComplete(3)
	first.SetTurnsUsed(10)
	require.NoError(t, first.Save())

	second := newTracker("s2")
	second.RecordFeatureComplete(4)
	second.RecordFeatureFailed(1)
	second.SetTurnsUsed(5)
	require.NoError(t, second.Save())

	file := LoadStats(dir)
	require.Len(t, file.Sessions, 2)
	assert.Equal(t, 2, file.Sessions[0].ToolsCalled["Bash"])
	assert.Equal(t, []int{3}, file.Sessions[0].FeaturesCompleted)
	assert.Equal(t, 30.0, file.Sessions[0].DurationSeconds)
	assert.Equal(t, StatsAggregate{
		TotalSessions:          2,
		TotalTurns:             15,
		TotalDurationSeconds:   60,
		TotalFeaturesCompleted: 2,
		TotalSecurityBlocks:    1,
	}, file.Aggregate)
}

func TestLoadStats_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StatsFileName), []byte("{oops"), 0o600))

	file := LoadStats(dir)
	assert.Empty(t, file.Sessions)
}

func TestResetStats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ResetStats(dir))

	path := filepath.Join(dir, StatsFileName)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, ResetStats(dir))
	assert.NoFileExists(t, path)
}
