package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
)

// Outcome is how a run ended.
type Outcome int

const (
	// OutcomeComplete means the validator approved, or automated work is
	// complete with the validator disabled.
	OutcomeComplete Outcome = iota
	// OutcomeError means the run could not continue.
	OutcomeError
	// OutcomeMaxIterations means the iteration limit was reached.
	OutcomeMaxIterations
	// OutcomeMaxRejections means the validator rejected too often and a
	// human should review the project.
	OutcomeMaxRejections
	// OutcomeNeedsVerification means the validator gave no usable verdict.
	OutcomeNeedsVerification
	// OutcomeAborted means the user declined to continue after the spec
	// review.
	OutcomeAborted
)

var outcomeNames = map[Outcome]string{
	OutcomeComplete:          "complete",
	OutcomeError:             "error",
	OutcomeMaxIterations:     "max_iterations",
	OutcomeMaxRejections:     "max_rejections",
	OutcomeNeedsVerification: "needs_verification",
	OutcomeAborted:           "aborted",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ExitCode is the process exit status for o.
func (o Outcome) ExitCode() int {
	return int(o)
}

// Agent types used for prompts, logs and evaluation sections.
const (
	AgentInitializer   = "initializer"
	AgentCoding        = "coding"
	AgentValidator     = "validator"
	AgentReview        = "review"
	AgentArchitect     = "architect"
	AgentSpecCreate    = "spec_create"
	AgentSpecValidate  = "spec_validate"
	AgentSpecDecompose = "spec_decompose"
)

// Options configures a run.
type Options struct {
	ProjectDir string
	Stack      string

	// SpecContent and SpecPath describe the user's spec. Only the
	// first run reads them.
	SpecContent string
	SpecPath    string
	Features    int
	Review      bool

	Model    string
	MaxTurns int
	// MaxIterations of 0 means unlimited.
	MaxIterations     int
	AutoContinueDelay time.Duration
	SessionTimeout    time.Duration

	ValidatorEnabled  bool
	ValidatorModel    string
	ValidatorMaxTurns int
	MaxRejections     int

	ArchitectureEnabled  bool
	ArchitectureRequired bool
}

// OptionsFromConfig builds run options from merged configuration. stack
// is the resolved stack.
func OptionsFromConfig(cfg *config.Config, stack string) Options {
	return Options{
		ProjectDir:           cfg.ProjectDir,
		Stack:                stack,
		SpecContent:          cfg.SpecContent(),
		SpecPath:             cfg.SpecPath(),
		Features:             cfg.Features,
		Review:               cfg.Review,
		Model:                cfg.Agent.Model,
		MaxTurns:             cfg.Agent.MaxTurns,
		MaxIterations:        cfg.Agent.MaxIterations,
		AutoContinueDelay:    time.Duration(cfg.Agent.AutoContinueDelay) * time.Second,
		SessionTimeout:       cfg.Agent.SessionTimeout.Duration(),
		ValidatorEnabled:     cfg.Validator.Enabled,
		ValidatorModel:       cfg.ValidatorModel(),
		ValidatorMaxTurns:    cfg.Validator.MaxTurns,
		MaxRejections:        cfg.Validator.MaxRejections,
		ArchitectureEnabled:  cfg.Architecture.Enabled && !cfg.SkipArchitecture,
		ArchitectureRequired: cfg.Architecture.Required,
	}
}

// Violation is a problem a gate found after a session.
type Violation struct {
	Type        ViolationType `json:"type"`
	AgentType   string        `json:"agent_type"`
	Description string        `json:"description"`
	Severity    Severity      `json:"severity"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// ViolationType categorizes violations.
type ViolationType string

const (
	ViolationEvaluationIncomplete ViolationType = "evaluation_incomplete"
	ViolationFeatureRegressed     ViolationType = "feature_regressed"
	ViolationBundledFeatures      ViolationType = "bundled_features"
	ViolationArchitectureInvalid  ViolationType = "architecture_invalid"
	ViolationLedgerUnreadable     ViolationType = "ledger_unreadable"
)

// Severity indicates how serious a violation is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Gate inspects a finished session.
type Gate interface {
	// Name returns the gate identifier.
	Name() string

	// Check returns the violations found in report.
	Check(ctx context.Context, report *SessionReport) []Violation
}
