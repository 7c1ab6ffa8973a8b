// Package update drives the remote side of the pipeline: deciding from
// build outcome whether updates run at all, submitting comments and
// custom-field values per issue, and writing the carry-forward set for the
// next build.
package update

import (
	"context"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/collect"
	"github.com/tracklinkhq/tracklink/internal/comment"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/resolve"
	"github.com/tracklinkhq/tracklink/internal/store"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

// Logger is the build console sink. Satisfied by output.UI.
type Logger interface {
	Info(format string, a ...any)
	Warning(format string, a ...any)
	Error(format string, a ...any)
	VerboseLog(format string, a ...any)
}

// Orchestrator runs the comment-update step for one finished build.
type Orchestrator struct {
	Store    store.Store
	Site     *tracker.Site
	Resolver *resolve.Resolver
	Policy   Policy

	// Sessions overrides how remote sessions are opened; defaults to the
	// site itself.
	Sessions tracker.SessionOpener

	// Comment rendering options.
	WikiStyle     bool
	RecordChanges bool
	RootURL       string
	Browser       comment.Browser

	Log Logger
}

// Run evaluates one build: collects and resolves issue references, submits
// a per-issue comment when the outcome policy allows it, and stores the
// carry-forward set for the next build of the job.
//
// Failures of the tracker never overwrite the build's real verdict; only a
// missing site configuration or a resolution failure degrade the recorded
// outcome, and only down to the policy threshold.
func (o *Orchestrator) Run(ctx context.Context, rec *build.Record) error {
	// Individual matrix runs are covered by their parent aggregate build;
	// updating per-run would duplicate every comment.
	if rec.MatrixMember {
		o.Log.VerboseLog("skipping matrix member build %s", rec.DisplayName())
		return nil
	}

	if o.Site == nil || o.Site.URL == "" {
		o.Log.Error("no tracker site configured for %s", rec.Job)
		rec.WorsenOutcome(models.OutcomeFailure)
		return nil
	}

	if err := o.Store.RecordBuild(ctx, rec.Job, rec.Number); err != nil {
		return err
	}

	candidates := o.selector().FindIssueIDs(rec, o.Site, o.Log)

	if !o.Policy.ShouldUpdate(rec.Outcome) {
		// No remote side effects; keep every candidate alive for the next
		// build so nothing is lost while the job is broken.
		o.Log.VerboseLog("outcome %s below update threshold, carrying %d issue id(s) forward",
			rec.Outcome, candidates.Len())
		return o.Store.SaveCarryForward(ctx, rec.Job, rec.Number, candidates.Tokens())
	}

	session, err := o.opener().OpenSession(ctx)
	if err != nil {
		// Service-level failure: abandon the whole update attempt but do
		// not touch the build's verdict.
		o.Log.Error("couldn't obtain tracker session: %v", err)
		return o.Store.SaveCarryForward(ctx, rec.Job, rec.Number, candidates.Tokens())
	}

	issues, err := o.Resolver.IssuesFor(ctx, session, rec, o.Log)
	if err != nil {
		o.Log.Error("error looking up tracker issues: %v", err)
		rec.WorsenOutcome(o.Policy.Threshold())
		return o.Store.SaveCarryForward(ctx, rec.Job, rec.Number, candidates.Tokens())
	}

	if len(issues) == 0 {
		o.Log.VerboseLog("no tracker issues found for %s", rec.DisplayName())
		return o.Store.SaveCarryForward(ctx, rec.Job, rec.Number, nil)
	}

	pending := o.submitComments(ctx, session, rec, issues)

	// Only transiently-failed issues survive to the next build.
	return o.Store.SaveCarryForward(ctx, rec.Job, rec.Number, pending)
}

func (o *Orchestrator) opener() tracker.SessionOpener {
	if o.Sessions != nil {
		return o.Sessions
	}
	return o.Site
}

func (o *Orchestrator) selector() collect.Selector {
	if o.Resolver != nil && o.Resolver.Selector != nil {
		return o.Resolver.Selector
	}
	return collect.DefaultSelector{}
}

// submitComments posts one scoped comment per issue and returns the ids
// that failed transiently. Iteration works on a defensive copy because
// permanently-invalid issues are removed from the working list as they are
// found, so they are never carried forward and retried for eternity.
func (o *Orchestrator) submitComments(ctx context.Context, session tracker.Session, rec *build.Record, issues []*models.Issue) []string {
	composer := &comment.Composer{
		BuildName:     rec.DisplayName(),
		BuildURL:      rec.URL,
		RootURL:       o.RootURL,
		Outcome:       rec.Outcome,
		WikiStyle:     o.WikiStyle,
		RecordChanges: o.RecordChanges,
		Changes:       rec.Changes,
		Browser:       o.Browser,
		Log:           o.Log,
	}

	var pending []string
	working := append([]*models.Issue(nil), issues...)
	for _, issue := range working {
		o.Log.Info("updating %s", issue.ID)

		err := session.AddComment(ctx, issue.ID, composer.Compose(issue),
			o.Site.GroupVisibility, o.Site.RoleVisibility)

		switch {
		case err == nil:
			o.recordRun(ctx, rec, issue.ID, "comment", "ok", "")
		case tracker.IsNotPermitted(err):
			// The tracker can't tell "no such issue" from "no permission";
			// either way the reference is permanently invalid here and
			// must not be retried on the next build. Removing it from the
			// persisted result keeps later passes (the custom-field
			// updater, for one) from re-submitting to it.
			o.Log.Warning("looks like %s is not a valid issue or you don't have permission to update it; it will not be updated: %v",
				issue.ID, err)
			o.recordRun(ctx, rec, issue.ID, "comment", "dropped", err.Error())
			if rmErr := o.Store.RemoveResultIssue(ctx, rec.Job, rec.Number, issue.ID); rmErr != nil {
				o.Log.Warning("couldn't remove %s from the stored result: %v", issue.ID, rmErr)
			}
		default:
			o.Log.Warning("couldn't add comment to %s: %v", issue.ID, err)
			o.recordRun(ctx, rec, issue.ID, "comment", "skipped", err.Error())
			pending = append(pending, issue.ID)
		}
	}
	return pending
}

func (o *Orchestrator) recordRun(ctx context.Context, rec *build.Record, issueID, action, status, detail string) {
	err := o.Store.RecordUpdateRun(ctx, &store.UpdateRun{
		Job:     rec.Job,
		Number:  rec.Number,
		IssueID: issueID,
		Action:  action,
		Status:  status,
		Detail:  detail,
	})
	if err != nil {
		o.Log.Warning("couldn't record update run for %s: %v", issueID, err)
	}
}
