// Package clierr formats user-facing CLI errors with actionable guidance.
//
// Every error prints as up to four sections, skipping empty ones:
//
//	Error: <what went wrong>
//
//	  <context>
//
//	  Example: <correct usage>
//
//	  Help: Run '<command>' for more options
//
// Use ActionableError at command entry points where the user can fix the
// problem. Internal failures are wrapped with fmt.Errorf and surfaced as
// plain errors.
package clierr

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// DefaultHelp is the help command suggested when none is given.
const DefaultHelp = "claude-agent --help"

var (
	errorLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C"))
	boldLabel  = lipgloss.NewStyle().Bold(true)
)

// ActionableError is an error with optional context, a usage example and
// a help command.
type ActionableError struct {
	Message     string
	Context     string
	Example     string
	HelpCommand string
}

// Error returns the uncolored formatted error.
func (e *ActionableError) Error() string {
	return e.Format(false)
}

// Format renders the error. Color is dropped when NO_COLOR is set.
func (e *ActionableError) Format(color bool) string {
	if os.Getenv("NO_COLOR") != "" {
		color = false
	}
	label := func(style lipgloss.Style, s string) string {
		if color {
			return style.Render(s)
		}
		return s
	}

	var b strings.Builder
	b.WriteString(label(errorLabel, "Error:") + " " + e.Message)
	if e.Context != "" {
		b.WriteString("\n\n  " + e.Context)
	}
	if e.Example != "" {
		b.WriteString("\n\n  " + label(boldLabel, "Example:") + " " + e.Example)
	}
	if e.HelpCommand != "" {
		fmt.Fprintf(&b, "\n\n  %s Run '%s' for more options", label(boldLabel, "Help:"), e.HelpCommand)
	}
	return b.String()
}

// ColorEnabled reports whether w is a terminal that should get color.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes err to w followed by a newline. Actionable errors keep
// their layout; anything else is printed as "Error: <err>".
func Print(w io.Writer, err error) {
	var ae *ActionableError
	if !errors.As(err, &ae) {
		ae = &ActionableError{Message: err.Error()}
	}
	fmt.Fprintln(w, ae.Format(ColorEnabled(w)))
}

// New creates an ActionableError.
func New(message, context, example, helpCommand string) *ActionableError {
	return &ActionableError{Message: message, Context: context, Example: example, HelpCommand: helpCommand}
}

var templateVar = regexp.MustCompile(`\{(\w+)\}`)

// substitute replaces {name} with vars[name]. Unknown names stay as-is.
func substitute(s string, vars map[string]any) string {
	if s == "" {
		return s
	}
	return templateVar.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}

// FormatWithContext fills {variables} in every field from vars and
// formats the result without color.
func FormatWithContext(e ActionableError, vars map[string]any) string {
	out := ActionableError{
		Message:     substitute(e.Message, vars),
		Context:     substitute(e.Context, vars),
		Example:     substitute(e.Example, vars),
		HelpCommand: substitute(e.HelpCommand, vars),
	}
	return out.Format(false)
}

// MissingFile reports a file that was not found, suggesting the command
// that creates it.
func MissingFile(filename, createCommand, context string) *ActionableError {
	name := filename
	if strings.Contains(filename, " ") {
		name = `"` + filename + `"`
	}
	return &ActionableError{
		Message:     name + " not found",
		Context:     context,
		Example:     createCommand,
		HelpCommand: DefaultHelp,
	}
}

// MissingOption reports a required CLI option that was not given.
func MissingOption(option, example, context, helpCommand string) *ActionableError {
	if helpCommand == "" {
		helpCommand = DefaultHelp
	}
	return &ActionableError{
		Message:     option + " is required",
		Context:     context,
		Example:     example,
		HelpCommand: helpCommand,
	}
}

// Workflow reports a failed workflow step with a suggested fix.
func Workflow(step, suggestion, context string) *ActionableError {
	return &ActionableError{
		Message:     step + " failed",
		Context:     context,
		Example:     suggestion,
		HelpCommand: "claude-agent spec status",
	}
}

const shellSpecial = " '\"()[]{}$&;|<>\\`"

// QuotePath double-quotes path when it contains shell-special characters.
func QuotePath(path string) string {
	if !strings.ContainsAny(path, shellSpecial) {
		return path
	}
	return `"` + strings.ReplaceAll(path, `"`, `\"`) + `"`
}
