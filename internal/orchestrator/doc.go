// Package orchestrator drives autonomous coding sessions for a project.
//
// # Overview
//
// An Orchestrator runs one agent session at a time through a
// session.Runner and decides what to run next from the feature ledger
// (feature_list.json):
//
//	fresh → initialized → in_progress → pending_validation → validating → complete
//
// While automated tests fail it runs coding sessions (the initializer on
// the first run). Once automated work is complete it runs the validator,
// whose verdict either ends the run or marks features failed and resumes
// coding.
//
// # Outcomes
//
// Run returns an Outcome whose ExitCode is the process exit status:
//   - OutcomeComplete: the validator approved, or is disabled
//   - OutcomeMaxIterations: the iteration limit was reached
//   - OutcomeMaxRejections: too many rejections, manual review needed
//   - OutcomeNeedsVerification: no verdict could be parsed
//   - OutcomeAborted: the user declined after the spec review
//   - OutcomeError: the runner failed to start or the run was cancelled
//
// A session that ends with status error is not an outcome. The loop
// waits the auto-continue delay and retries the same decision point
// without touching the ledger.
//
// # Gates
//
// Gates inspect every finished session:
//   - EvaluationGate: required evaluation sections are present
//   - RegressionGate: no passing feature flipped back to failing
//   - BundleGate: at most one feature completed per coding session
//   - ArchitectureGate: the locked architecture files still validate
//   - LedgerGate: the ledger is still readable
//
// Warnings and errors are logged and printed. A critical violation stops
// the run with OutcomeError.
//
// Each session is also a span named "session.<agent>" on Deps.Telemetry,
// with matching session count, duration and turn metrics.
//
// # Usage
//
//	runner := session.NewClaudeRunner(cfg.Agent.ClaudePath, exe, session.NewConsole(os.Stdout), logger)
//	orch := orchestrator.New(orchestrator.OptionsFromConfig(cfg, stack), orchestrator.Deps{
//	    Runner:  runner,
//	    Logger:  logger,
//	    Metrics: store,
//	    Out:     os.Stdout,
//	})
//	outcome, err := orch.Run(ctx)
//	os.Exit(outcome.ExitCode())
//
// The spec workflow (RunSpecCreate, RunSpecValidate, RunSpecDecompose
// and RunSpecWorkflow) uses the same orchestrator to produce the spec and
// ledger that Run consumes.
package orchestrator
