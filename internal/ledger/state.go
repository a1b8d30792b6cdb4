// internal/ledger/state.go
package ledger

// SessionState is the coarse progress state of a project.
type SessionState string

const (
	StateFresh             SessionState = "fresh"
	StateInitialized       SessionState = "initialized"
	StateInProgress        SessionState = "in_progress"
	StatePendingValidation SessionState = "pending_validation"
	StateValidating        SessionState = "validating"
	StateComplete          SessionState = "complete"
)

// State derives the session state from the ledger and validation history.
//
//	fresh               no feature_list.json
//	initialized         ledger with zero features
//	in_progress         some automated test failing
//	pending_validation  automated tests pass, manual tests remain
//	validating          everything passes, not yet approved
//	complete            everything passes and the last attempt approved
func State(dir string) SessionState {
	if !Exists(dir) {
		return StateFresh
	}
	counts := CountByType(dir)
	switch {
	case counts.Total == 0:
		return StateInitialized
	case counts.Passing == counts.Total:
		if LastApproved(dir) {
			return StateComplete
		}
		return StateValidating
	case counts.AutomatedComplete():
		return StatePendingValidation
	default:
		return StateInProgress
	}
}
