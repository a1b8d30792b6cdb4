// Package prompts renders the agent prompts bundled into the binary.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
)

// Name identifies a bundled prompt.
type Name string

const (
	Initializer   Name = "initializer"
	Coding        Name = "coding"
	Validator     Name = "validator"
	Review        Name = "review"
	Architect     Name = "architect"
	SpecCreate    Name = "spec_create"
	SpecValidate  Name = "spec_validate"
	SpecDecompose Name = "spec_decompose"
)

// Names lists every bundled prompt.
func Names() []Name {
	return []Name{Initializer, Coding, Validator, Review, Architect, SpecCreate, SpecValidate, SpecDecompose}
}

//go:embed templates/*.md
var bundled embed.FS

var templates = template.Must(template.New("prompts").ParseFS(bundled, "templates/*.md"))

// Data holds every value a prompt may reference. Templates ignore the
// fields they do not use.
type Data struct {
	SpecContent  string
	SpecPath     string
	FeatureCount int
	InitCommand  string
	DevCommand   string
	Goal         string
	Context      string
	Decisions    []architecture.Decision
}

// Render executes the named prompt with data.
func Render(name Name, data Data) (string, error) {
	t := templates.Lookup(string(name) + ".md")
	if t == nil {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	if data.SpecPath == "" {
		data.SpecPath = "app_spec.txt"
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}
