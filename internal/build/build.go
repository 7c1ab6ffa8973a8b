// Package build models one finished build as handed over by the
// surrounding build engine: its outcome, change set, parameters, and the
// change sets of dependency builds that newly became reachable.
package build

import (
	"fmt"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// DependencyBuild is one upstream build inside a dependency range, carrying
// its own change set to be scanned.
type DependencyBuild struct {
	Job     string
	Number  int
	Changes []models.ChangeEntry
}

// DependencyChange is the range of builds of one upstream job that newly
// became reachable since the previous build of the downstream job.
type DependencyChange struct {
	Job    string
	Builds []DependencyBuild
}

// Record is one build under evaluation. It is the concrete form of the
// build abstraction: the engine adapter fills in carry-forward state from
// the previous build before the pipeline runs.
type Record struct {
	Job          string
	Number       int
	URL          string
	Outcome      models.Outcome
	MatrixMember bool

	Parameters  map[string]string
	Environment map[string]string

	// IssueParameters are issue keys supplied explicitly as build
	// parameters of the issue-reference type; they bypass pattern matching.
	IssueParameters []string

	Changes      []models.ChangeEntry
	Dependencies []DependencyChange

	// CarriedOver holds the previous build's carry-forward set, or nil
	// when there is no previous build. Populated by the engine adapter.
	CarriedOver *models.TokenSet
}

// DisplayName is the human-readable build name used in comments,
// e.g. "frontend #12".
func (r *Record) DisplayName() string {
	return fmt.Sprintf("%s #%d", r.Job, r.Number)
}

// WorsenOutcome degrades the recorded outcome to o if o is worse than the
// current one. A better outcome never overwrites a worse one.
func (r *Record) WorsenOutcome(o models.Outcome) {
	r.Outcome = r.Outcome.Worse(o)
}

// Bindings merges the build's environment with its declared parameters.
// Parameters are merged second and win on key collision.
func (r *Record) Bindings() map[string]string {
	vars := make(map[string]string, len(r.Environment)+len(r.Parameters))
	for k, v := range r.Environment {
		vars[k] = v
	}
	for k, v := range r.Parameters {
		vars[k] = v
	}
	return vars
}
