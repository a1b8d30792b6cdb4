// internal/ledger/workflow.go
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// WorkflowFile holds the spec workflow state.
const WorkflowFile = "spec-workflow.json"

// SpecPhase is how far the spec workflow has progressed.
type SpecPhase string

const (
	PhaseNone       SpecPhase = "none"
	PhaseCreated    SpecPhase = "created"
	PhaseValidated  SpecPhase = "validated"
	PhaseDecomposed SpecPhase = "decomposed"
)

// Spec workflow steps.
const (
	StepCreate    = "create"
	StepValidate  = "validate"
	StepDecompose = "decompose"

	// StepFailed is the status of a step that did not produce its output.
	StepFailed = "failed"
)

var stepPhases = map[string]SpecPhase{
	StepCreate:    PhaseCreated,
	StepValidate:  PhaseValidated,
	StepDecompose: PhaseDecomposed,
}

// WorkflowState is the content of spec-workflow.json.
type WorkflowState struct {
	Phase     SpecPhase        `json:"phase"`
	SpecFile  *string          `json:"spec_file"`
	History   []map[string]any `json:"history"`
	CreatedAt string           `json:"created_at,omitempty"`
	UpdatedAt string           `json:"updated_at,omitempty"`
}

func emptyWorkflow() WorkflowState {
	return WorkflowState{Phase: PhaseNone, History: []map[string]any{}}
}

// LoadWorkflow reads the workflow state, filling defaults for missing
// keys. Missing or corrupt files give the empty state.
func LoadWorkflow(dir string) WorkflowState {
	data, err := os.ReadFile(filepath.Join(dir, WorkflowFile))
	if err != nil {
		return emptyWorkflow()
	}
	var s WorkflowState
	if err := json.Unmarshal(data, &s); err != nil {
		return emptyWorkflow()
	}
	if s.Phase == "" {
		s.Phase = PhaseNone
	}
	if s.History == nil {
		s.History = []map[string]any{}
	}
	return s
}

// SaveWorkflow writes the state, stamping created_at on first save and
// refreshing updated_at every time.
func SaveWorkflow(dir string, s *WorkflowState) error {
	ts := timestamp()
	if s.CreatedAt == "" {
		s.CreatedAt = ts
	}
	s.UpdatedAt = ts
	if s.History == nil {
		s.History = []map[string]any{}
	}
	return fileutil.AtomicWriteJSON(filepath.Join(dir, WorkflowFile), s)
}

// RecordSpecStep records a finished workflow step. result is copied into
// the history entry; an "output_file" key also becomes the spec_file. A
// result with status "failed" is recorded without advancing the phase.
func RecordSpecStep(dir, step string, result map[string]any) error {
	s := LoadWorkflow(dir)
	if phase, ok := stepPhases[step]; ok && result["status"] != StepFailed {
		s.Phase = phase
	}
	if out, ok := result["output_file"].(string); ok {
		s.SpecFile = &out
	}

	entry := map[string]any{"step": step, "timestamp": timestamp()}
	for k, v := range result {
		entry[k] = v
	}
	s.History = append(s.History, entry)
	return SaveWorkflow(dir, &s)
}

// DerivePhase infers the phase from which files exist, most complete
// first.
func DerivePhase(dir string) SpecPhase {
	switch {
	case Exists(dir):
		return PhaseDecomposed
	case FindSpecValidated(dir) != "":
		return PhaseValidated
	case FindSpecDraft(dir) != "":
		return PhaseCreated
	default:
		return PhaseNone
	}
}
