// Package collect aggregates candidate issue tokens for one build. It
// performs no remote calls: candidates are gathered purely from local
// build state, so collection works even before the tracker project exists
// and is safely retryable.
package collect

import (
	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/extract"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

// Selector is the strategy for finding the issue ids a build should
// update. Implementations return likely candidates and must not check
// remote existence; that is the resolver's job.
type Selector interface {
	FindIssueIDs(rec *build.Record, site *tracker.Site, log extract.Logger) *models.TokenSet
}

// DefaultSelector implements the standard collection strategy:
// carry-forward from the previous build, the build's own change set, the
// change sets of newly-reachable dependency builds, and explicit
// issue-reference build parameters.
type DefaultSelector struct{}

func (DefaultSelector) FindIssueIDs(rec *build.Record, site *tracker.Site, log extract.Logger) *models.TokenSet {
	ids := models.NewTokenSet()

	// Issues carried forward from the previous build, if any.
	if rec.CarriedOver != nil {
		ids.AddAll(rec.CarriedOver)
	}

	// Issues mentioned in this build's own change set.
	scanChanges(rec.Changes, ids, site, log)

	// Issues fixed in dependency builds that newly became reachable.
	for _, dep := range rec.Dependencies {
		for _, depBuild := range dep.Builds {
			scanChanges(depBuild.Changes, ids, site, log)
		}
	}

	// Explicit issue-reference parameters bypass pattern matching.
	ids.Add(rec.IssueParameters...)

	return ids
}

func scanChanges(changes []models.ChangeEntry, ids *models.TokenSet, site *tracker.Site, log extract.Logger) {
	if site.IssuePattern == nil {
		return
	}
	for _, change := range changes {
		ids.Add(extract.Tokens(change.Message(), site.IssuePattern, log)...)
	}
}
