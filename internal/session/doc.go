// Package session runs one agent session through the claude CLI.
//
// A session is a single "claude -p" process with the prompt on stdin and
// stream-json on stdout. Each output line decodes into an Event; the
// concatenated text of the session becomes Result.Text, which the
// orchestrator hands to the verdict and metrics parsers.
//
// Runner is the seam the orchestrator depends on. ClaudeRunner is the
// production implementation; tests substitute their own.
package session
