package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func TestReader_Read(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, LogFileName,
		`{"ts":"2026-01-15T10:00:00Z","level":"info","event":"session_start","session_id":"aaa","agent_type":"coding"}`,
		`not json`,
		`{"ts":"2026-01-15T10:05:00Z","level":"warn","event":"security_block","session_id":"aaa","command":"rm"}`,
		`{"ts":"2026-01-15T10:10:00Z","level":"info","event":"session_end","session_id":"aaa"}`,
		`{"ts":"2026-01-15T11:00:00Z","level":"info","event":"session_start","session_id":"bbb"}`,
	)
	writeLog(t, dir, "agent-2026-01-14T00-00-00.000.log",
		`{"ts":"2026-01-14T09:00:00Z","level":"error","event":"error","session_id":"old"}`,
	)
	r := NewReader(dir)

	t.Run("newest first across files", func(t *testing.T) {
		entries, err := r.Read(Query{})
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, "bbb", entries[0].SessionID)
		assert.Equal(t, "old", entries[4].SessionID)
		assert.Equal(t, "coding", entries[3].Data["agent_type"])
	})

	t.Run("filters by session", func(t *testing.T) {
		entries, err := r.Read(Query{SessionID: "aaa"})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("filters by event and level alias", func(t *testing.T) {
		entries, err := r.Read(Query{EventTypes: []EventType{EventSecurityBlock}, Levels: []string{"warning"}})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "rm", entries[0].Data["command"])
	})

	t.Run("since, limit and offset", func(t *testing.T) {
		since := time.Date(2026, 1, 15, 10, 1, 0, 0, time.UTC)
		entries, err := r.Read(Query{Since: since, Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, EventSessionEnd, entries[0].Event)
		assert.Equal(t, EventSecurityBlock, entries[1].Event)
	})

	t.Run("offset past end", func(t *testing.T) {
		entries, err := r.Read(Query{Offset: 99})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestReader_MissingDir(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope"))
	entries, err := r.Read(Query{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, r.IsSessionActive())
}

func TestReader_IsSessionActive(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, LogFileName,
		`{"ts":"2026-01-15T10:00:00Z","level":"info","event":"session_start","session_id":"aaa"}`,
		`{"ts":"2026-01-15T10:10:00Z","level":"info","event":"session_end","session_id":"aaa"}`,
	)
	assert.False(t, NewReader(dir).IsSessionActive())

	writeLog(t, dir, LogFileName,
		`{"ts":"2026-01-15T10:00:00Z","level":"info","event":"session_start","session_id":"aaa"}`,
	)
	assert.True(t, NewReader(dir).IsSessionActive())
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 500, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"30m", time.Date(2026, 1, 15, 11, 30, 0, 0, time.UTC)},
		{"1h", time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)},
		{"2d", time.Date(2026, 1, 13, 12, 0, 0, 0, time.UTC)},
		{"1w", time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)},
		{"2026-01-10", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"2026-01-10T08:30:00", time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSince(tt.in, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "xh", "yesterday"} {
		_, err := ParseSince(bad, now)
		assert.Error(t, err, bad)
	}
}
