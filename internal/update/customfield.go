package update

import (
	"context"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/resolve"
	"github.com/tracklinkhq/tracklink/internal/store"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

// CustomFieldUpdater sets a custom field on every issue resolved for a
// build, reusing the persisted resolution result rather than re-scanning.
type CustomFieldUpdater struct {
	Store    store.Store
	Site     *tracker.Site
	Resolver *resolve.Resolver
	Policy   Policy

	// Sessions overrides how remote sessions are opened; defaults to the
	// site itself.
	Sessions tracker.SessionOpener

	FieldID    string // tracker field identifier, e.g. customfield_10010
	FieldValue string // template; $NAME placeholders expand from build bindings

	Log Logger
}

// Run submits the substituted field value to each resolved issue when the
// build outcome meets the policy. Individual failures are logged and that
// issue skipped; unlike comment submission, nothing is dropped from the
// list, since a field-update failure here says nothing about whether the
// reference is permanently invalid.
func (u *CustomFieldUpdater) Run(ctx context.Context, rec *build.Record) error {
	if rec.MatrixMember {
		u.Log.VerboseLog("skipping matrix member build %s", rec.DisplayName())
		return nil
	}

	opener := u.Sessions
	if opener == nil {
		opener = u.Site
	}
	session, err := opener.OpenSession(ctx)
	if err != nil {
		u.Log.Error("couldn't obtain tracker session: %v", err)
		return nil
	}

	if !u.Policy.ShouldUpdate(rec.Outcome) {
		u.Log.VerboseLog("outcome %s below update threshold, not setting custom field", rec.Outcome)
		return nil
	}

	issues, err := u.Resolver.IssuesFor(ctx, session, rec, u.Log)
	if err != nil {
		u.Log.Error("error looking up tracker issues: %v", err)
		rec.WorsenOutcome(u.Policy.Threshold())
		return nil
	}
	if len(issues) == 0 {
		return nil
	}

	value := Substitute(u.FieldValue, rec.Bindings())
	u.submit(ctx, session, rec, issues, value)
	return nil
}

func (u *CustomFieldUpdater) submit(ctx context.Context, session tracker.Session, rec *build.Record, issues []*models.Issue, value string) {
	working := append([]*models.Issue(nil), issues...)
	for _, issue := range working {
		u.Log.Info("setting field %s on %s to %q", u.FieldID, issue.ID, value)

		if err := session.UpdateCustomField(ctx, issue.ID, u.FieldID, value); err != nil {
			u.Log.Warning("couldn't update %s with field [%s, %s]: %v", issue.ID, u.FieldID, value, err)
			u.recordRun(ctx, rec, issue.ID, "skipped", err.Error())
			continue
		}
		u.recordRun(ctx, rec, issue.ID, "ok", "")
	}
}

func (u *CustomFieldUpdater) recordRun(ctx context.Context, rec *build.Record, issueID, status, detail string) {
	err := u.Store.RecordUpdateRun(ctx, &store.UpdateRun{
		Job:     rec.Job,
		Number:  rec.Number,
		IssueID: issueID,
		Action:  "custom-field",
		Status:  status,
		Detail:  detail,
	})
	if err != nil {
		u.Log.Warning("couldn't record update run for %s: %v", issueID, err)
	}
}
