package hooks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

func bashInput(cmd string) *Input {
	return &Input{ToolName: "Bash", ToolInput: ToolInput{Command: cmd}}
}

func TestManager_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("no handlers allows", func(t *testing.T) {
		out, err := NewManager().Execute(ctx, EventStop, &Input{})
		require.NoError(t, err)
		assert.False(t, out.Blocked())
	})

	t.Run("first block wins", func(t *testing.T) {
		m := NewManager()
		var calls []string
		m.Register(EventPreToolUse, func(ctx context.Context, in *Input) (Output, error) {
			calls = append(calls, "a")
			return Output{}, nil
		})
		m.Register(EventPreToolUse, func(ctx context.Context, in *Input) (Output, error) {
			calls = append(calls, "b")
			return Block("no"), nil
		})
		m.Register(EventPreToolUse, func(ctx context.Context, in *Input) (Output, error) {
			calls = append(calls, "c")
			return Output{}, nil
		})

		out, err := m.Execute(ctx, EventPreToolUse, &Input{})
		require.NoError(t, err)
		assert.Equal(t, Block("no"), out)
		assert.Equal(t, []string{"a", "b"}, calls)
	})

	t.Run("handler error is wrapped", func(t *testing.T) {
		m := NewManager()
		boom := errors.New("boom")
		m.Register(EventStop, func(ctx context.Context, in *Input) (Output, error) {
			return Output{}, boom
		})
		_, err := m.Execute(ctx, EventStop, &Input{})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "Stop")
	})
}

func TestBashSecurity(t *testing.T) {
	ctx := context.Background()
	tl := logging.NewTestLogger()
	events := logging.NewEventLogger(tl.Logger, nil)
	h := BashSecurity(security.NewValidator(security.Config{Stack: "python"}, events))

	tests := []struct {
		name    string
		in      *Input
		blocked bool
	}{
		{"allowed command", bashInput("ls -la"), false},
		{"disallowed command", bashInput("curl http://example.com"), true},
		{"empty command", bashInput(""), false},
		{"other tool", &Input{ToolName: "Read", ToolInput: ToolInput{Command: "rm -rf /"}}, false},
		{"unparseable", bashInput(`echo "unterminated`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.blocked, out.Blocked())
			if tt.blocked {
				assert.NotEmpty(t, out.Reason)
			}
		})
	}

	assert.NotEmpty(t, tl.Events(logging.EventSecurityBlock))
}

func TestValidatorStop(t *testing.T) {
	h := ValidatorStop()

	out, err := h(context.Background(), &Input{})
	require.NoError(t, err)
	assert.True(t, out.Blocked())
	assert.Equal(t, VerdictReminder, out.Reason)
	assert.Contains(t, out.Reason, `"verdict": "APPROVED"`)

	out, err = h(context.Background(), &Input{StopHookActive: true})
	require.NoError(t, err)
	assert.False(t, out.Blocked())
}

func TestReadWriteIO(t *testing.T) {
	payload := `{"session_id":"abc","hook_event_name":"PreToolUse","tool_name":"Bash","tool_input":{"command":"npm test"},"cwd":"/tmp/p"}`
	in, err := ReadInput(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "Bash", in.ToolName)
	assert.Equal(t, "npm test", in.ToolInput.Command)
	assert.Equal(t, "/tmp/p", in.Cwd)

	_, err = ReadInput(strings.NewReader("not json"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, Output{}))
	assert.Equal(t, "{}\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteOutput(&buf, Block("nope")))
	assert.JSONEq(t, `{"decision":"block","reason":"nope"}`, buf.String())
}
