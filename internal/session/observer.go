package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
)

// Observer receives session events as they are decoded.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans events out to several observers in order.
type Observers []Observer

// Observe forwards ev to every non-nil observer.
func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

// Console prints a live transcript: assistant text as it arrives, one
// line per tool call, and a short marker per tool result.
type Console struct {
	w io.Writer
}

// NewConsole creates a console printer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Observe prints ev.
func (c *Console) Observe(_ context.Context, ev Event) {
	switch e := ev.(type) {
	case TextChunk:
		fmt.Fprint(c.w, e.Text)
	case ToolCall:
		fmt.Fprintf(c.w, "\n[Tool: %s]\n", e.Name)
		if len(e.Input) > 0 {
			fmt.Fprintf(c.w, "   Input: %s\n", logging.Truncate(string(e.Input), 200))
		}
	case ToolResult:
		switch {
		case strings.Contains(strings.ToLower(e.Content), "blocked"):
			fmt.Fprintf(c.w, "   [BLOCKED] %s\n", e.Content)
		case e.IsError:
			fmt.Fprintf(c.w, "   [Error] %s\n", logging.Truncate(e.Content, 500))
		default:
			fmt.Fprintln(c.w, "   [Done]")
		}
	case SessionEnd:
		fmt.Fprintf(c.w, "\n%s\n\n", strings.Repeat("-", 70))
	}
}

// EventLog records tool traffic in the agent log and the session stats.
// Either sink may be nil.
type EventLog struct {
	events *logging.EventLogger
	stats  *logging.StatsTracker

	mu    sync.Mutex
	names map[string]string
}

// NewEventLog creates an observer writing to events and stats.
func NewEventLog(events *logging.EventLogger, stats *logging.StatsTracker) *EventLog {
	return &EventLog{events: events, stats: stats, names: map[string]string{}}
}

// Observe records ev.
func (l *EventLog) Observe(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case ToolCall:
		l.mu.Lock()
		l.names[e.ID] = e.Name
		l.mu.Unlock()
		if l.events != nil {
			l.events.ToolCall(ctx, e.Name, string(e.Input))
		}
		if l.stats != nil {
			l.stats.RecordToolCall(e.Name)
		}
	case ToolResult:
		l.mu.Lock()
		name := l.names[e.ToolUseID]
		l.mu.Unlock()
		if l.events != nil {
			l.events.ToolResult(ctx, name, e.Content, e.IsError)
		}
		if l.stats != nil {
			if strings.Contains(strings.ToLower(e.Content), "blocked") {
				l.stats.RecordSecurityBlock()
			} else if e.IsError {
				l.stats.RecordError()
			}
		}
	case SessionEnd:
		if l.stats != nil {
			l.stats.SetTurnsUsed(e.Turns)
		}
	}
}
