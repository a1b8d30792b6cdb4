package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(dir)

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	ctx := WithSessionID(context.Background(), "abc123def456")
	logger.Info(ctx, "session_start", zap.String("agent_type", "coding"))
	require.NoError(t, logger.Close())

	info, err := os.Stat(cfg.Dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	lines := readLines(t, cfg.FilePath())
	require.Len(t, lines, 1)
	assert.Equal(t, "session_start", lines[0]["event"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "abc123def456", lines[0]["session_id"])
	assert.Equal(t, "coding", lines[0]["agent_type"])
	assert.NotEmpty(t, lines[0]["ts"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(dir)
	cfg.Level = zapcore.WarnLevel

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	logger.Debug(context.Background(), "tool_call")
	logger.Warn(context.Background(), "security_block")
	require.NoError(t, logger.Close())

	lines := readLines(t, cfg.FilePath())
	require.Len(t, lines, 1)
	assert.Equal(t, "security_block", lines[0]["event"])
}

func TestNewLogger_RedactsPerCallFields(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(dir)

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	logger.Warn(context.Background(), "security_block",
		zap.String("command", "curl -H 'Authorization: Bearer abc.def' https://x"),
		zap.String("token", "super-secret"),
	)
	require.NoError(t, logger.Close())

	lines := readLines(t, cfg.FilePath())
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0]["command"], "abc.def")
	assert.Contains(t, lines[0]["command"], "curl")
	assert.Equal(t, "[REDACTED]", lines[0]["token"])
}

func TestNewLogger_Disabled(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig(dir)
	cfg.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	logger.Info(context.Background(), "session_start")
	require.NoError(t, logger.Close())

	assert.NoDirExists(t, filepath.Join(dir, LogDirName))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "zero size", mutate: func(c *Config) { c.MaxSizeMB = 0 }, wantErr: "max_size_mb"},
		{name: "zero files", mutate: func(c *Config) { c.MaxFiles = 0 }, wantErr: "max_files"},
		{name: "tiny summary", mutate: func(c *Config) { c.MaxSummaryLength = 3 }, wantErr: "max_summary_length"},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }, wantErr: "invalid redaction pattern"},
		{name: "missing dir", mutate: func(c *Config) { c.Dir = "" }, wantErr: "log dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{in: "trace", want: TraceLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", want: zapcore.InfoLevel, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
