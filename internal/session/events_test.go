package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transcript = `{"type":"system","subtype":"init","session_id":"s1","tools":["Bash"]}
{"type":"assistant","message":{"content":[{"type":"text","text":"Looking at the project. "},{"type":"tool_use","id":"tu_1","name":"Bash","input":{"command":"ls"}}]}}

{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":"README.md","is_error":false}]}}
{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_2","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}],"is_error":true}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"Done."}]}}
{"type":"result","subtype":"success","is_error":false,"num_turns":4,"result":"Done.","duration_ms":1500,"total_cost_usd":0.25}
`

func TestDecodeStream(t *testing.T) {
	var events []Event
	err := DecodeStream(strings.NewReader(transcript), func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 6)

	assert.Equal(t, TextChunk{Text: "Looking at the project. "}, events[0])

	call, ok := events[1].(ToolCall)
	require.True(t, ok)
	assert.Equal(t, "tu_1", call.ID)
	assert.Equal(t, "Bash", call.Name)
	assert.JSONEq(t, `{"command":"ls"}`, string(call.Input))

	assert.Equal(t, ToolResult{ToolUseID: "tu_1", Content: "README.md"}, events[2])
	assert.Equal(t, ToolResult{ToolUseID: "tu_2", Content: "line one\nline two", IsError: true}, events[3])
	assert.Equal(t, TextChunk{Text: "Done."}, events[4])
	assert.Equal(t, SessionEnd{
		Subtype:  "success",
		Turns:    4,
		Result:   "Done.",
		Duration: 1500 * time.Millisecond,
		CostUSD:  0.25,
	}, events[5])
}

func TestDecodeStream_MalformedLine(t *testing.T) {
	var n int
	err := DecodeStream(strings.NewReader("{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"text\",\"text\":\"hi\"}]}}\nnot json\n"), func(Event) { n++ })
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestDecodeLine_IgnoresUnknownTypes(t *testing.T) {
	events, err := DecodeLine([]byte(`{"type":"stream_event","event":{}}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = DecodeLine([]byte(`{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":""}]}}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}
