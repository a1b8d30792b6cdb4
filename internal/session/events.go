package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event is one decoded item of session output. The set of event types is
// closed: TextChunk, ToolCall, ToolResult and SessionEnd.
type Event interface {
	event()
}

// TextChunk is assistant text.
type TextChunk struct {
	Text string
}

// ToolCall is a tool invocation requested by the agent.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// SessionEnd closes the stream.
type SessionEnd struct {
	Subtype  string
	IsError  bool
	Turns    int
	Result   string
	Duration time.Duration
	CostUSD  float64
}

func (TextChunk) event()  {}
func (ToolCall) event()   {}
func (ToolResult) event() {}
func (SessionEnd) event() {}

// streamLine is the subset of the stream-json envelope the decoder reads.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`

	IsError    bool    `json:"is_error"`
	NumTurns   int     `json:"num_turns"`
	Result     string  `json:"result"`
	DurationMS int64   `json:"duration_ms"`
	CostUSD    float64 `json:"total_cost_usd"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// DecodeLine converts one stream-json line into events. Lines of types
// the runner does not care about (system, unknown) yield no events.
func DecodeLine(line []byte) ([]Event, error) {
	var sl streamLine
	if err := json.Unmarshal(line, &sl); err != nil {
		return nil, fmt.Errorf("decode stream line: %w", err)
	}

	var events []Event
	switch sl.Type {
	case "assistant":
		for _, b := range sl.Message.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					events = append(events, TextChunk{Text: b.Text})
				}
			case "tool_use":
				events = append(events, ToolCall{ID: b.ID, Name: b.Name, Input: b.Input})
			}
		}
	case "user":
		for _, b := range sl.Message.Content {
			if b.Type == "tool_result" {
				events = append(events, ToolResult{
					ToolUseID: b.ToolUseID,
					Content:   flattenContent(b.Content),
					IsError:   b.IsError,
				})
			}
		}
	case "result":
		events = append(events, SessionEnd{
			Subtype:  sl.Subtype,
			IsError:  sl.IsError,
			Turns:    sl.NumTurns,
			Result:   sl.Result,
			Duration: time.Duration(sl.DurationMS) * time.Millisecond,
			CostUSD:  sl.CostUSD,
		})
	}
	return events, nil
}

// flattenContent turns a tool_result content field, either a string or a
// list of text blocks, into plain text.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

// maxLineSize bounds a single stream-json line. Tool results that echo
// whole files can be large.
const maxLineSize = 16 * 1024 * 1024

// DecodeStream reads stream-json from r and calls fn for every event.
// Blank lines are skipped. The first malformed line stops decoding.
func DecodeStream(r io.Reader, fn func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		events, err := DecodeLine(line)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fn(ev)
		}
	}
	return scanner.Err()
}
