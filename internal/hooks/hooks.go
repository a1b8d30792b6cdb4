package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Event names a Claude Code hook event.
type Event string

const (
	// EventPreToolUse fires before every tool call.
	EventPreToolUse Event = "PreToolUse"

	// EventStop fires when the agent tries to end its turn.
	EventStop Event = "Stop"
)

// DecisionBlock stops the tool call or the stop attempt.
const DecisionBlock = "block"

// Input is the hook payload Claude Code writes to stdin.
type Input struct {
	SessionID      string    `json:"session_id,omitempty"`
	HookEventName  string    `json:"hook_event_name,omitempty"`
	ToolName       string    `json:"tool_name,omitempty"`
	ToolInput      ToolInput `json:"tool_input"`
	StopHookActive bool      `json:"stop_hook_active,omitempty"`
	Cwd            string    `json:"cwd,omitempty"`
}

// ToolInput holds the tool arguments the hooks look at.
type ToolInput struct {
	Command string `json:"command,omitempty"`
}

// Output is the hook response. The zero value allows the action and
// encodes as {}.
type Output struct {
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Blocked reports whether the output blocks.
func (o Output) Blocked() bool {
	return o.Decision == DecisionBlock
}

// Block returns a blocking output with reason.
func Block(reason string) Output {
	return Output{Decision: DecisionBlock, Reason: reason}
}

// Handler handles one hook event.
type Handler func(ctx context.Context, in *Input) (Output, error)

// Manager dispatches hook events to registered handlers.
type Manager struct {
	handlers map[Event][]Handler
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Event][]Handler)}
}

// Register adds a handler for an event. Handlers run in registration
// order.
func (m *Manager) Register(event Event, handler Handler) {
	m.handlers[event] = append(m.handlers[event], handler)
}

// Execute runs the handlers for event until one blocks. An event with no
// handlers is allowed.
func (m *Manager) Execute(ctx context.Context, event Event, in *Input) (Output, error) {
	for _, handler := range m.handlers[event] {
		out, err := handler(ctx, in)
		if err != nil {
			return Output{}, fmt.Errorf("hook %s failed: %w", event, err)
		}
		if out.Blocked() {
			return out, nil
		}
	}
	return Output{}, nil
}

// ReadInput decodes a hook payload.
func ReadInput(r io.Reader) (*Input, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode hook input: %w", err)
	}
	return &in, nil
}

// WriteOutput encodes out as a single JSON line.
func WriteOutput(w io.Writer, out Output) error {
	return json.NewEncoder(w).Encode(out)
}
