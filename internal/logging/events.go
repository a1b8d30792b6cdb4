// internal/logging/events.go
package logging

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType names an agent log event.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventSessionEnd       EventType = "session_end"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventSecurityBlock    EventType = "security_block"
	EventSecurityAllow    EventType = "security_allow"
	EventFeatureComplete  EventType = "feature_complete"
	EventFeatureFailed    EventType = "feature_failed"
	EventValidationStart  EventType = "validation_start"
	EventValidationResult EventType = "validation_result"
	EventError            EventType = "error"
)

// eventLevels fixes the level each event is written at.
var eventLevels = map[EventType]zapcore.Level{
	EventSessionStart:     zapcore.InfoLevel,
	EventSessionEnd:       zapcore.InfoLevel,
	EventToolCall:         zapcore.DebugLevel,
	EventToolResult:       zapcore.DebugLevel,
	EventSecurityBlock:    zapcore.WarnLevel,
	EventSecurityAllow:    zapcore.DebugLevel,
	EventFeatureComplete:  zapcore.InfoLevel,
	EventFeatureFailed:    zapcore.WarnLevel,
	EventValidationStart:  zapcore.InfoLevel,
	EventValidationResult: zapcore.InfoLevel,
	EventError:            zapcore.ErrorLevel,
}

// AllEventTypes lists every event in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventSessionStart, EventSessionEnd, EventToolCall, EventToolResult,
		EventSecurityBlock, EventSecurityAllow, EventFeatureComplete,
		EventFeatureFailed, EventValidationStart, EventValidationResult, EventError,
	}
}

// Level returns the level the event is logged at.
func (e EventType) Level() zapcore.Level {
	if l, ok := eventLevels[e]; ok {
		return l
	}
	return zapcore.InfoLevel
}

// NewSessionID returns a 12 character hex session ID.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// EventLogger writes typed agent events. One instance follows a whole
// run; each agent session gets a fresh session ID via StartSession.
type EventLogger struct {
	logger *Logger
	cfg    *Config

	mu        sync.RWMutex
	sessionID string
}

// NewEventLogger creates an event logger on top of logger.
func NewEventLogger(logger *Logger, cfg *Config) *EventLogger {
	if cfg == nil {
		cfg = logger.Config()
	}
	return &EventLogger{
		logger:    logger,
		cfg:       cfg,
		sessionID: NewSessionID(),
	}
}

// SessionID returns the current session ID.
func (e *EventLogger) SessionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionID
}

func (e *EventLogger) emit(ctx context.Context, event EventType, fields ...zap.Field) {
	if SessionIDFromContext(ctx) == "" {
		ctx = WithSessionID(ctx, e.SessionID())
	}
	e.logger.Log(ctx, event.Level(), string(event), fields...)
}

// StartSession begins a new agent session and returns its ID.
func (e *EventLogger) StartSession(ctx context.Context, agentType string, iteration int, model string) string {
	e.mu.Lock()
	e.sessionID = NewSessionID()
	e.mu.Unlock()

	fields := []zap.Field{zap.String("model", model)}
	if AgentTypeFromContext(ctx) == "" {
		fields = append(fields, zap.String("agent_type", agentType))
	}
	if IterationFromContext(ctx) == 0 {
		fields = append(fields, zap.Int("iteration", iteration))
	}
	e.emit(ctx, EventSessionStart, fields...)
	return e.SessionID()
}

// EndSession records the end of the current session.
func (e *EventLogger) EndSession(ctx context.Context, status string, turns int, duration time.Duration) {
	e.emit(ctx, EventSessionEnd,
		zap.String("status", status),
		zap.Int("turns_used", turns),
		zap.Float64("duration_seconds", duration.Seconds()),
	)
}

// ToolCall records a tool invocation.
func (e *EventLogger) ToolCall(ctx context.Context, tool, input string) {
	e.emit(ctx, EventToolCall,
		zap.String("tool_name", tool),
		zap.String("input_summary", Truncate(input, e.cfg.MaxSummaryLength)),
	)
}

// ToolResult records a tool result.
func (e *EventLogger) ToolResult(ctx context.Context, tool, result string, isError bool) {
	summary := "[result truncated]"
	if e.cfg.IncludeToolResults {
		summary = Truncate(result, e.cfg.MaxSummaryLength)
	}
	e.emit(ctx, EventToolResult,
		zap.String("tool_name", tool),
		zap.Bool("is_error", isError),
		zap.String("result_summary", summary),
	)
}

// SecurityBlock records a blocked command.
func (e *EventLogger) SecurityBlock(ctx context.Context, command, reason, stack string) {
	e.emit(ctx, EventSecurityBlock,
		zap.String("command", Truncate(command, e.cfg.MaxSummaryLength)),
		zap.String("reason", reason),
		zap.String("stack", stack),
	)
}

// SecurityAllow records an allowed command when allowed-command logging
// or console output is on.
func (e *EventLogger) SecurityAllow(ctx context.Context, command, stack string) {
	if !e.cfg.IncludeAllowedCommands && !e.cfg.Console {
		return
	}
	e.emit(ctx, EventSecurityAllow,
		zap.String("command", Truncate(command, e.cfg.MaxSummaryLength)),
		zap.String("stack", stack),
	)
}

// FeatureComplete records a feature flipping to passing.
func (e *EventLogger) FeatureComplete(ctx context.Context, index int, description string) {
	e.emit(ctx, EventFeatureComplete,
		zap.Int("index", index),
		zap.String("description", Truncate(description, e.cfg.MaxSummaryLength)),
	)
}

// FeatureFailed records a feature marked failing.
func (e *EventLogger) FeatureFailed(ctx context.Context, index int, reason string) {
	e.emit(ctx, EventFeatureFailed,
		zap.Int("index", index),
		zap.String("reason", Truncate(reason, e.cfg.MaxSummaryLength)),
	)
}

// ValidationStart records the start of a validator attempt.
func (e *EventLogger) ValidationStart(ctx context.Context, attempt int) {
	e.emit(ctx, EventValidationStart, zap.Int("attempt", attempt))
}

// ValidationResult records a parsed verdict.
func (e *EventLogger) ValidationResult(ctx context.Context, verdict string, rejected int, summary string) {
	e.emit(ctx, EventValidationResult,
		zap.String("verdict", verdict),
		zap.Int("rejected_count", rejected),
		zap.String("summary", Truncate(summary, e.cfg.MaxSummaryLength)),
	)
}

// Error records an error event.
func (e *EventLogger) Error(ctx context.Context, msg string, err error) {
	fields := []zap.Field{zap.String("message", msg)}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	e.emit(ctx, EventError, fields...)
}
