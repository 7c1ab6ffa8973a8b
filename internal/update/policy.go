package update

import "github.com/tracklinkhq/tracklink/internal/models"

// Policy decides whether a build's outcome warrants remote updates.
//
// Two modes: update regardless of outcome, or update only when the outcome
// is at least as good as a configured minimum.
type Policy struct {
	AlwaysUpdate bool
	MinOutcome   models.Outcome
}

// DefaultPolicy updates for builds that are at least unstable.
func DefaultPolicy() Policy {
	return Policy{MinOutcome: models.OutcomeUnstable}
}

// ShouldUpdate reports whether remote updates should be attempted for a
// build with the given outcome.
func (p Policy) ShouldUpdate(outcome models.Outcome) bool {
	if p.AlwaysUpdate {
		return true
	}
	return outcome.BetterOrEqual(p.MinOutcome)
}

// Threshold returns the outcome level used to mark the build degraded when
// the derived resolution step fails. The always-update mode reports the
// strictest level, FAILURE; the minimum-outcome mode reports its configured
// minimum. The asymmetry is deliberate and matches long-standing behavior.
func (p Policy) Threshold() models.Outcome {
	if p.AlwaysUpdate {
		return models.OutcomeFailure
	}
	return p.MinOutcome
}
