// internal/hooks/handlers.go
package hooks

import (
	"context"

	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

// VerdictReminder is the reason a validator's first stop attempt is
// blocked with.
const VerdictReminder = "STOP! You have not output your JSON verdict yet. " +
	"Before ending your session, you MUST output a JSON code block with your verdict:\n\n" +
	"```json\n" +
	"{\n" +
	"  \"verdict\": \"APPROVED\",\n" +
	"  \"rejected_tests\": [],\n" +
	"  \"tests_verified\": <number>,\n" +
	"  \"summary\": \"<what you tested>\"\n" +
	"}\n" +
	"```\n\n" +
	"Output this JSON block NOW, then you may stop."

// BashSecurity checks Bash commands with v. Other tools and empty
// commands pass through.
func BashSecurity(v *security.Validator) Handler {
	return func(ctx context.Context, in *Input) (Output, error) {
		if in.ToolName != "Bash" || in.ToolInput.Command == "" {
			return Output{}, nil
		}
		if d := v.Validate(ctx, in.ToolInput.Command); !d.Allowed {
			return Block(d.Reason), nil
		}
		return Output{}, nil
	}
}

// ValidatorStop blocks the first stop attempt of a validator session with
// VerdictReminder. Once Claude Code reports the hook already fired, the
// stop is allowed so the session cannot loop forever.
func ValidatorStop() Handler {
	return func(ctx context.Context, in *Input) (Output, error) {
		if in.StopHookActive {
			return Output{}, nil
		}
		return Block(VerdictReminder), nil
	}
}
