// Package resolve turns candidate issue tokens into confirmed tracker
// issues and persists the result once per build.
package resolve

import (
	"context"
	"fmt"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/collect"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/store"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

// Logger is the build-console sink resolution reports to. Satisfied by
// output.UI.
type Logger interface {
	Info(format string, a ...any)
	Warning(format string, a ...any)
	VerboseLog(format string, a ...any)
}

// Resolver validates candidate tokens against the tracker and owns the
// build's persisted resolved-issue result.
type Resolver struct {
	Store    store.Store
	Site     *tracker.Site
	Selector collect.Selector
}

// New creates a Resolver with the default collection strategy.
func New(st store.Store, site *tracker.Site) *Resolver {
	return &Resolver{Store: st, Site: site, Selector: collect.DefaultSelector{}}
}

// Resolve checks every candidate for remote existence, in input order, and
// fetches detail for the ones that exist. Tokens the tracker reports as
// nonexistent are dropped silently: plenty of strings match an issue
// pattern without being issues (version tags, for one). An error from the
// existence check itself fails the whole batch, since the caller can no
// longer tell real issues from noise.
func Resolve(ctx context.Context, session tracker.Session, candidates *models.TokenSet, log Logger) ([]*models.Issue, error) {
	issues := make([]*models.Issue, 0, candidates.Len())
	for _, id := range candidates.Tokens() {
		exists, err := session.ExistsIssue(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		if !exists {
			log.VerboseLog("%s looked like an issue key but it wasn't", id)
			continue
		}

		issue, err := session.GetIssue(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// IssuesFor returns the build's resolved-issue list, reusing the persisted
// result when resolution already ran for this build. On first demand it
// collects candidates with the configured selector, resolves them over
// session, and stores the outcome so downstream consumers (the
// custom-field updater, for one) never trigger a second round of remote
// lookups.
func (r *Resolver) IssuesFor(ctx context.Context, session tracker.Session, rec *build.Record, log Logger) ([]*models.Issue, error) {
	if issues, ok, err := r.Store.Result(ctx, rec.Job, rec.Number); err != nil {
		return nil, err
	} else if ok {
		log.VerboseLog("reusing resolved issues for %s", rec.DisplayName())
		return issues, nil
	}

	candidates := r.Selector.FindIssueIDs(rec, r.Site, log)
	if candidates.Len() == 0 {
		log.VerboseLog("no issue ids found in %s", rec.DisplayName())
	}

	issues, err := Resolve(ctx, session, candidates, log)
	if err != nil {
		return nil, err
	}

	if err := r.Store.SaveResult(ctx, rec.Job, rec.Number, issues); err != nil {
		return nil, err
	}
	return issues, nil
}
