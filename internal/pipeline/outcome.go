package pipeline

import "github.com/vidsyncd/vidsyncd/internal/models"

// outcomeForError maps a task's returned error to the status-word
// advancement its error kind prescribes: risk control abandons the attempt
// without counting it against the retry budget, an invariant violation is a
// state the implementation doesn't expect to see so it's treated as
// permanently skipped, a well-formed "this does not exist"/"forbidden"
// response is a genuine fetch failure so it's driven straight to the retry
// ceiling instead of being retried, and everything else (network,
// malformed, filesystem, remux) is an ordinary retryable failure.
func outcomeForError(err error) models.TaskOutcome {
	if err == nil {
		return models.OutcomeSucceeded
	}
	switch models.KindOf(err) {
	case models.KindRiskControl:
		return models.OutcomeRiskControl
	case models.KindNotFound, models.KindForbidden:
		return models.OutcomeFailedTerminal
	case models.KindInvariantViolation, models.KindPolicySkipped:
		return models.OutcomeIgnored
	default:
		return models.OutcomeFailed
	}
}
