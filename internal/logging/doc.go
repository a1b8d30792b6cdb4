// Package logging provides the structured agent log for claude-agent.
//
// # Overview
//
// The package wraps Zap with:
//   - A JSONL agent log under .claude-agent/logs/agent.log, rotated by size
//   - An optional human-readable console stream on stderr (verbose mode)
//   - An optional OpenTelemetry core fed by the global log provider
//   - Typed agent events (session_start, security_block, ...) at fixed levels
//   - Secret redaction for command strings and sensitive keys
//
// # Usage
//
//	cfg := logging.NewDefaultConfig(projectDir)
//	logger, err := logging.NewLogger(cfg, global.GetLoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	events := logging.NewEventLogger(logger, cfg)
//	events.SessionStart(ctx, "coding", 3)
//
// Every entry in the agent log is one JSON object per line:
//
//	{"ts":"2026-01-15T10:30:00.123Z","level":"warn","event":"security_block",
//	 "session_id":"3f2a9c1b0d4e","command":"rm -rf /","reason":"..."}
//
// # Reading logs back
//
// Reader walks the current and rotated files, filters by session, event,
// level and time, and returns entries newest first. StatsTracker keeps the
// per-session aggregate in sessions.json next to the log.
package logging
