package models

import "fmt"

// Outcome represents the final result level of a build, ordered from best
// to worst. The ordering is total: every outcome is comparable to every
// other via BetterOrEqual.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnstable
	OutcomeFailure
	OutcomeNotBuilt
	OutcomeAborted
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:  "SUCCESS",
	OutcomeUnstable: "UNSTABLE",
	OutcomeFailure:  "FAILURE",
	OutcomeNotBuilt: "NOT_BUILT",
	OutcomeAborted:  "ABORTED",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// BetterOrEqual reports whether o is at least as good as other.
func (o Outcome) BetterOrEqual(other Outcome) bool {
	return o <= other
}

// Worse returns the worse of o and other. Used when degrading a build's
// recorded outcome: an existing worse outcome is never improved.
func (o Outcome) Worse(other Outcome) Outcome {
	if other > o {
		return other
	}
	return o
}

// Icon returns the 16x16 status icon file name used in wiki-style comments.
func (o Outcome) Icon() string {
	switch o {
	case OutcomeSuccess:
		return "blue.gif"
	case OutcomeUnstable:
		return "yellow.gif"
	case OutcomeAborted, OutcomeNotBuilt:
		return "grey.gif"
	default:
		return "red.gif"
	}
}

// ParseOutcome converts an outcome label such as "SUCCESS" into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}
	return OutcomeFailure, fmt.Errorf("unknown outcome: %q", s)
}
