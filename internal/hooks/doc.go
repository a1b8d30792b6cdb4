// Package hooks implements the Claude Code hooks claude-agent installs in
// each session's settings file.
//
// Claude Code runs "claude-agent hook <event>" with the hook payload as
// JSON on stdin and reads a decision from stdout. PreToolUse checks Bash
// commands against the stack allowlist; Stop keeps validator sessions
// from ending before they print a verdict.
package hooks
