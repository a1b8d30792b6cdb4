package session

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	ctx := context.Background()

	c.Observe(ctx, TextChunk{Text: "hello"})
	c.Observe(ctx, ToolCall{Name: "Bash", Input: json.RawMessage(`{"command":"ls"}`)})
	c.Observe(ctx, ToolResult{Content: "ok"})
	c.Observe(ctx, ToolResult{Content: "Command 'curl' blocked"})
	c.Observe(ctx, ToolResult{Content: "exit 1", IsError: true})

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "[Tool: Bash]")
	assert.Contains(t, out, `Input: {"command":"ls"}`)
	assert.Contains(t, out, "[Done]")
	assert.Contains(t, out, "[BLOCKED] Command 'curl' blocked")
	assert.Contains(t, out, "[Error] exit 1")
}

func TestEventLog(t *testing.T) {
	tl := logging.NewTestLogger()
	cfg := logging.NewDefaultConfig(t.TempDir())
	events := logging.NewEventLogger(tl.Logger, cfg)
	stats := logging.NewStatsTracker(cfg.Dir, events.SessionID(), "coding")

	obs := Observers{NewEventLog(events, stats), nil}
	ctx := context.Background()
	obs.Observe(ctx, ToolCall{ID: "1", Name: "Bash", Input: json.RawMessage(`{"command":"rm"}`)})
	obs.Observe(ctx, ToolResult{ToolUseID: "1", Content: "Command 'rm' is blocked", IsError: true})
	obs.Observe(ctx, ToolCall{ID: "2", Name: "Read"})
	obs.Observe(ctx, ToolResult{ToolUseID: "2", Content: "no such file", IsError: true})
	obs.Observe(ctx, SessionEnd{Turns: 7})

	assert.Len(t, tl.Events(logging.EventToolCall), 2)
	results := tl.Events(logging.EventToolResult)
	if assert.Len(t, results, 2) {
		assert.Equal(t, "Bash", results[0].ContextMap()["tool_name"])
		assert.Equal(t, "Read", results[1].ContextMap()["tool_name"])
	}

	s := stats.Stats()
	assert.Equal(t, map[string]int{"Bash": 1, "Read": 1}, s.ToolsCalled)
	assert.Equal(t, 1, s.SecurityBlocks)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 7, s.TurnsUsed)
}

func TestObserverFunc(t *testing.T) {
	var got []Event
	f := ObserverFunc(func(_ context.Context, ev Event) { got = append(got, ev) })
	f.Observe(context.Background(), TextChunk{Text: "x"})
	assert.Equal(t, []Event{TextChunk{Text: "x"}}, got)
}
