// Package security validates shell commands an autonomous agent wants to
// run against a per-stack allowlist. Every ambiguity blocks.
package security

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/fyrsmithlabs/claude-agent/internal/detection"
)

// DefaultAllowedScripts are the script basenames that may be executed.
var DefaultAllowedScripts = []string{"init.sh", "setup.sh"}

// Config selects the allowlist.
type Config struct {
	Stack          string
	ExtraCommands  []string
	AllowedScripts []string
}

// EventSink receives security decisions. *logging.EventLogger satisfies it.
type EventSink interface {
	SecurityBlock(ctx context.Context, command, reason, stack string)
	SecurityAllow(ctx context.Context, command, stack string)
}

// Decision is the outcome of validating one command line.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision              { return Decision{Allowed: true} }
func block(reason string) Decision { return Decision{Reason: reason} }

// Validator holds a resolved allowlist. It is immutable after creation and
// safe for concurrent use.
type Validator struct {
	stack          string
	commands       map[string]bool
	pkillTargets   map[string]bool
	allowedScripts []string
	events         EventSink
}

// NewValidator resolves cfg against the stack tables. events may be nil.
func NewValidator(cfg Config, events EventSink) *Validator {
	stack := detection.Lookup(cfg.Stack).Name
	v := &Validator{
		stack:          stack,
		commands:       map[string]bool{},
		pkillTargets:   map[string]bool{},
		allowedScripts: cfg.AllowedScripts,
		events:         events,
	}
	if len(v.allowedScripts) == 0 {
		v.allowedScripts = DefaultAllowedScripts
	}
	for _, c := range detection.Commands(stack) {
		v.commands[c] = true
	}
	for _, c := range cfg.ExtraCommands {
		v.commands[c] = true
	}
	for _, t := range detection.PkillTargets(stack) {
		v.pkillTargets[t] = true
	}
	return v
}

// Stack returns the resolved stack name.
func (v *Validator) Stack() string { return v.stack }

// Allowed reports whether name is on the allowlist.
func (v *Validator) Allowed(name string) bool { return v.commands[name] }

// Validate decides whether command may run and records the decision.
func (v *Validator) Validate(ctx context.Context, command string) Decision {
	d := v.decide(command)
	if v.events != nil {
		if d.Allowed {
			v.events.SecurityAllow(ctx, command, v.stack)
		} else {
			v.events.SecurityBlock(ctx, command, d.Reason, v.stack)
		}
	}
	return d
}

func (v *Validator) decide(command string) Decision {
	commands := ExtractCommands(command)
	if len(commands) == 0 || HasSubstitution(command) {
		return block(fmt.Sprintf("Could not parse command for security validation: %s", command))
	}
	for _, name := range commands {
		if !v.commands[name] {
			return block(fmt.Sprintf("Command '%s' is not in the allowed commands list for %s stack", name, v.stack))
		}
	}

	// Every segment running a restricted command is checked, not only the
	// first one.
	for _, segment := range SplitSegments(command) {
		for _, name := range ExtractCommands(segment) {
			check := v.subValidator(name)
			if check == nil {
				continue
			}
			if d := check(segment); !d.Allowed {
				return d
			}
		}
	}
	return allow()
}

func (v *Validator) subValidator(name string) func(string) Decision {
	switch {
	case name == "pkill":
		return v.validatePkill
	case name == "chmod":
		return validateChmod
	case slices.Contains(v.allowedScripts, name) || name == "init.sh" || name == "setup.sh":
		return v.validateScript
	}
	return nil
}

// validatePkill only lets pkill target the stack's dev processes. The
// target is the last non-flag argument; for "pkill -f 'vite --port 3000'"
// only the first word is checked. This approximates the process name and
// does not model pkill's pattern matching.
func (v *Validator) validatePkill(segment string) Decision {
	tokens, err := shlex.Split(segment)
	if err != nil {
		return block("Could not parse pkill command")
	}
	if len(tokens) == 0 {
		return block("Empty pkill command")
	}

	var args []string
	for _, tok := range tokens[1:] {
		if !strings.HasPrefix(tok, "-") {
			args = append(args, tok)
		}
	}
	if len(args) == 0 {
		return block("pkill requires a process name")
	}

	target := args[len(args)-1]
	if fields := strings.Fields(target); len(fields) > 0 {
		target = fields[0]
	}
	if v.pkillTargets[target] {
		return allow()
	}

	targets := make([]string, 0, len(v.pkillTargets))
	for t := range v.pkillTargets {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return block(fmt.Sprintf("pkill only allowed for dev processes: %s", strings.Join(targets, ", ")))
}

var chmodModePattern = regexp.MustCompile(`^[ugoa]*\+x$`)

// validateChmod allows only "chmod [ugoa]*+x file...".
func validateChmod(segment string) Decision {
	tokens, err := shlex.Split(segment)
	if err != nil {
		return block("Could not parse chmod command")
	}
	if len(tokens) == 0 || tokens[0] != "chmod" {
		return block("Not a chmod command")
	}

	var mode string
	var files []string
	for _, tok := range tokens[1:] {
		switch {
		case strings.HasPrefix(tok, "-"):
			return block("chmod flags are not allowed")
		case mode == "":
			mode = tok
		default:
			files = append(files, tok)
		}
	}

	if mode == "" {
		return block("chmod requires a mode")
	}
	if len(files) == 0 {
		return block("chmod requires at least one file")
	}
	if !chmodModePattern.MatchString(mode) {
		return block(fmt.Sprintf("chmod only allowed with +x mode, got: %s", mode))
	}
	return allow()
}

// validateScript requires ./name or a path ending in /name.
func (v *Validator) validateScript(segment string) Decision {
	tokens, err := shlex.Split(segment)
	if err != nil {
		return block("Could not parse init script command")
	}
	if len(tokens) == 0 {
		return block("Empty command")
	}

	script := tokens[0]
	for _, allowed := range v.allowedScripts {
		if script == "./"+allowed || strings.HasSuffix(script, "/"+allowed) {
			return allow()
		}
	}
	return block(fmt.Sprintf("Script not in allowed list: %s", script))
}
