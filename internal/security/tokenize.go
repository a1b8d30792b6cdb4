// internal/security/tokenize.go
package security

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

var shellKeywords = map[string]bool{
	"if": true, "then": true, "else": true, "elif": true, "fi": true,
	"for": true, "while": true, "until": true, "do": true, "done": true,
	"case": true, "esac": true, "in": true, "!": true, "{": true, "}": true,
}

var commandSeparators = map[string]bool{"|": true, "||": true, "&&": true, "&": true}

// splitOutsideQuotes splits s at every separator that occurs outside single
// or double quotes. Empty pieces are dropped and the rest trimmed.
func splitOutsideQuotes(s string, seps ...string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if piece := strings.TrimSpace(cur.String()); piece != "" {
			out = append(out, piece)
		}
		cur.Reset()
	}

outer:
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' && i+1 < len(s) {
				cur.WriteByte(c)
				i++
				cur.WriteByte(s[i])
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\\' && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
			continue
		case c == '\'' || c == '"':
			quote = c
		default:
			for _, sep := range seps {
				if strings.HasPrefix(s[i:], sep) {
					flush()
					i += len(sep) - 1
					continue outer
				}
			}
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}

// lineSeparators end a command the same way ';' does.
var lineSeparators = []string{"\r\n", "\n", "\r"}

// SplitSegments splits a compound command on &&, ||, ; and newlines
// outside quotes. Pipes stay inside their segment.
func SplitSegments(command string) []string {
	return splitOutsideQuotes(command, append([]string{"&&", "||", ";"}, lineSeparators...)...)
}

// HasSubstitution reports whether command runs a nested command through
// $(...), backticks or process substitution. Only single quotes keep the
// shell from expanding them.
func HasSubstitution(command string) bool {
	var quote byte
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '\\' && i+1 < len(command):
			i++
		case c == '\'' && quote == 0:
			quote = c
		case c == '"':
			if quote == '"' {
				quote = 0
			} else {
				quote = c
			}
		case c == '`':
			return true
		case strings.HasPrefix(command[i:], "$("):
			return true
		case quote == 0 && (strings.HasPrefix(command[i:], "<(") || strings.HasPrefix(command[i:], ">(")):
			return true
		}
	}
	return false
}

// ExtractCommands returns the base names of the commands a shell line
// would execute. It returns nil when any part fails to tokenize, so
// callers fail closed.
//
// Tokenizing treats '#' as the start of a comment, as the shell does.
func ExtractCommands(command string) []string {
	var commands []string
	for _, segment := range splitOutsideQuotes(command, append([]string{";"}, lineSeparators...)...) {
		tokens, err := shlex.Split(segment)
		if err != nil {
			return nil
		}

		expectCommand := true
		for _, tok := range tokens {
			if commandSeparators[tok] {
				expectCommand = true
				continue
			}
			if shellKeywords[tok] || strings.HasPrefix(tok, "-") {
				continue
			}
			if strings.Contains(tok, "=") && !strings.HasPrefix(tok, "=") {
				continue
			}
			if expectCommand {
				commands = append(commands, filepath.Base(tok))
				expectCommand = false
			}
		}
	}
	return commands
}
