// internal/ledger/specs.go
package ledger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// Spec workflow file names.
const (
	SpecsDir             = "specs"
	SpecDraftFile        = "spec-draft.md"
	SpecValidatedFile    = "spec-validated.md"
	SpecValidationReport = "spec-validation.md"
	AppSpecFile          = "app_spec.txt"
)

// findSpecFile searches specs/<name>, then specs/*/<name>, then <name>.
func findSpecFile(dir, name string) string {
	direct := filepath.Join(dir, SpecsDir, name)
	if isFile(direct) {
		return direct
	}

	matches, err := doublestar.Glob(os.DirFS(dir), SpecsDir+"/*/"+name)
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		return filepath.Join(dir, filepath.FromSlash(matches[0]))
	}

	root := filepath.Join(dir, name)
	if isFile(root) {
		return root
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// FindSpecDraft locates spec-draft.md, or returns "".
func FindSpecDraft(dir string) string { return findSpecFile(dir, SpecDraftFile) }

// FindSpecValidated locates spec-validated.md, or returns "".
func FindSpecValidated(dir string) string { return findSpecFile(dir, SpecValidatedFile) }

// FindSpecValidationReport locates spec-validation.md, or returns "".
func FindSpecValidationReport(dir string) string {
	return findSpecFile(dir, SpecValidationReport)
}

var (
	rootSpecWarnOnce sync.Once
	// Warnings receives one-time deprecation notices.
	Warnings io.Writer = os.Stderr
)

// FindSpecForCoding returns the spec coding and validator agents read.
// Search priority:
//
//  1. specs/spec-validated.md
//  2. specs/app_spec.txt
//  3. app_spec.txt in the project root (legacy, warns once per process)
//
// It returns "" when none exists.
func FindSpecForCoding(dir string) string {
	if p := filepath.Join(dir, SpecsDir, SpecValidatedFile); isFile(p) {
		return p
	}
	if p := filepath.Join(dir, SpecsDir, AppSpecFile); isFile(p) {
		return p
	}
	if p := filepath.Join(dir, AppSpecFile); isFile(p) {
		rootSpecWarnOnce.Do(func() {
			fmt.Fprintf(Warnings, "Warning: app_spec.txt found in project root. Move it to %s/%s; the root location is deprecated.\n",
				SpecsDir, AppSpecFile)
		})
		return p
	}
	return ""
}

// WriteSpecToProject copies an external spec into specs/app_spec.txt and
// returns the path coding agents should read. Specs already inside the
// project's specs/ directory are returned unchanged.
func WriteSpecToProject(dir, sourcePath, content string) (string, error) {
	specsDir := filepath.Join(dir, SpecsDir)
	if sourcePath != "" {
		if abs, err := filepath.Abs(sourcePath); err == nil {
			if absSpecs, err := filepath.Abs(specsDir); err == nil &&
				strings.HasPrefix(abs, absSpecs+string(filepath.Separator)) {
				return sourcePath, nil
			}
		}
	}

	if isFile(filepath.Join(specsDir, SpecValidatedFile)) {
		fmt.Fprintf(Warnings, "Warning: %s/%s already exists. The external spec will be written to %s/%s but %s will take priority for coding agents.\n",
			SpecsDir, SpecValidatedFile, SpecsDir, AppSpecFile, SpecValidatedFile)
	}

	if err := os.MkdirAll(specsDir, 0o755); err != nil {
		return "", fmt.Errorf("create specs dir: %w", err)
	}
	target := filepath.Join(specsDir, AppSpecFile)
	if err := fileutil.AtomicWrite(target, []byte(content)); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}
