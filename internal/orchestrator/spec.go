package orchestrator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/prompts"
	"github.com/fyrsmithlabs/claude-agent/internal/session"
	"github.com/fyrsmithlabs/claude-agent/internal/verdict"
)

// SpecResult is the outcome of one spec workflow step.
type SpecResult struct {
	Success    bool
	OutputFile string
	Report     *verdict.ReportVerdict
	Message    string
}

// RunSpecCreate runs a session that turns a goal into specs/spec-draft.md.
func (o *Orchestrator) RunSpecCreate(ctx context.Context, goal, extra string) (SpecResult, error) {
	dir := o.opts.ProjectDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SpecResult{}, fmt.Errorf("create project dir: %w", err)
	}
	o.banner("SPEC CREATION")
	fmt.Fprintf(o.out, "Goal: %s\n", goal)

	if err := o.specSession(ctx, AgentSpecCreate, prompts.SpecCreate, prompts.Data{Goal: goal, Context: extra}); err != nil {
		return SpecResult{}, err
	}

	draft := ledger.FindSpecDraft(dir)
	if draft == "" {
		return SpecResult{Message: "Spec draft was not created"}, nil
	}
	o.recordStep(ctx, ledger.StepCreate, map[string]any{
		"status":      "complete",
		"output_file": draft,
	})
	fmt.Fprintf(o.out, "Spec draft created: %s\n", draft)
	return SpecResult{Success: true, OutputFile: draft}, nil
}

// RunSpecValidate runs a session that reviews a spec and writes
// specs/spec-validation.md, plus specs/spec-validated.md when it passes.
// An empty specPath selects the draft.
func (o *Orchestrator) RunSpecValidate(ctx context.Context, specPath string) (SpecResult, error) {
	dir := o.opts.ProjectDir
	content, specPath, err := o.readSpec(specPath, ledger.FindSpecDraft,
		"No spec draft found.", "claude-agent spec create --goal '...'")
	if err != nil {
		return SpecResult{}, err
	}
	o.banner("SPEC VALIDATION")
	fmt.Fprintf(o.out, "Validating: %s\n", specPath)

	if err := o.specSession(ctx, AgentSpecValidate, prompts.SpecValidate, prompts.Data{SpecContent: content, SpecPath: specPath}); err != nil {
		return SpecResult{}, err
	}

	report := verdict.ParseValidationReport(dir)
	validated := ledger.FindSpecValidated(dir)
	passed := validated != "" && report.Verdict != "FAIL"
	status := "complete"
	if !passed {
		status = ledger.StepFailed
	}
	result := map[string]any{
		"status":   status,
		"passed":   passed,
		"blocking": report.Blocking,
		"warnings": report.Warnings,
	}
	if passed {
		result["output_file"] = validated
	}
	o.recordStep(ctx, ledger.StepValidate, result)

	fmt.Fprintf(o.out, "Verdict: %s (blocking %d, warnings %d, suggestions %d)\n",
		report.Verdict, report.Blocking, report.Warnings, report.Suggestions)
	res := SpecResult{Success: passed, OutputFile: validated, Report: &report}
	if !passed {
		res.Message = "Spec validation failed; see specs/spec-validation.md"
	}
	return res, nil
}

// RunSpecDecompose runs the initializer-style session that turns a spec
// into feature_list.json. An empty specPath selects the validated spec.
func (o *Orchestrator) RunSpecDecompose(ctx context.Context, specPath string, features int) (SpecResult, error) {
	dir := o.opts.ProjectDir
	content, specPath, err := o.readSpec(specPath, ledger.FindSpecValidated,
		"No validated spec found.", "claude-agent spec validate")
	if err != nil {
		return SpecResult{}, err
	}
	if features <= 0 {
		features = o.opts.Features
	}
	o.banner("SPEC DECOMPOSITION")
	fmt.Fprintf(o.out, "Decomposing %s into %d features\n", specPath, features)

	if err := o.specSession(ctx, AgentSpecDecompose, prompts.SpecDecompose, prompts.Data{SpecContent: content, FeatureCount: features}); err != nil {
		return SpecResult{}, err
	}

	if !ledger.Exists(dir) {
		o.recordStep(ctx, ledger.StepDecompose, map[string]any{"status": ledger.StepFailed})
		return SpecResult{Message: "feature_list.json was not created"}, nil
	}
	_, total := ledger.CountPassing(dir)
	o.recordStep(ctx, ledger.StepDecompose, map[string]any{
		"status":        "complete",
		"feature_count": total,
	})
	if _, err := ledger.WriteSpecToProject(dir, specPath, content); err != nil {
		return SpecResult{}, err
	}
	fmt.Fprintf(o.out, "Created feature_list.json with %d features\n", total)
	return SpecResult{Success: true, OutputFile: ledger.Path(dir)}, nil
}

// RunSpecWorkflow runs create, validate and decompose in order and stops
// at the first step that fails.
func (o *Orchestrator) RunSpecWorkflow(ctx context.Context, goal, extra string) (bool, error) {
	o.banner("SPEC WORKFLOW - AUTO MODE")
	fmt.Fprintf(o.out, "Goal: %s\n", goal)

	steps := []struct {
		name string
		run  func() (SpecResult, error)
	}{
		{ledger.StepCreate, func() (SpecResult, error) { return o.RunSpecCreate(ctx, goal, extra) }},
		{ledger.StepValidate, func() (SpecResult, error) { return o.RunSpecValidate(ctx, "") }},
		{ledger.StepDecompose, func() (SpecResult, error) { return o.RunSpecDecompose(ctx, "", 0) }},
	}
	for _, step := range steps {
		res, err := step.run()
		if err != nil {
			return false, err
		}
		if !res.Success {
			fmt.Fprintf(o.out, "\nSpec workflow stopped at %s: %s\n", step.name, res.Message)
			return false, nil
		}
	}
	o.banner("SPEC WORKFLOW COMPLETE", "Run claude-agent to start coding.")
	return true, nil
}

// readSpec loads path, or the file find locates when path is empty.
func (o *Orchestrator) readSpec(path string, find func(string) string, missing, next string) (content, resolved string, err error) {
	if path == "" {
		path = find(o.opts.ProjectDir)
	}
	if path == "" {
		return "", "", clierr.New(missing, "", next, "claude-agent spec status")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", clierr.MissingFile(path, next, "")
	}
	return string(data), path, nil
}

// specSession runs one spec workflow session. A session error is
// returned as an error; spec steps are not retried.
func (o *Orchestrator) specSession(ctx context.Context, agent string, name prompts.Name, data prompts.Data) error {
	prompt, err := prompts.Render(name, data)
	if err != nil {
		return err
	}
	run, err := o.runSession(ctx, session.Request{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTurns:  o.opts.MaxTurns,
		AgentType: agent,
	})
	if err != nil {
		return err
	}
	o.finish(run)
	if run.res.Status == session.StatusError {
		return fmt.Errorf("%s session failed: %s", agent, run.res.Text)
	}
	return nil
}

func (o *Orchestrator) recordStep(ctx context.Context, step string, result map[string]any) {
	if err := ledger.RecordSpecStep(o.opts.ProjectDir, step, result); err != nil {
		o.logger.Warn(ctx, "failed to record spec workflow step", zap.String("step", step), zap.Error(err))
	}
}
