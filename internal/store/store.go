// Package store persists per-build integration state: carry-forward token
// sets, resolved-issue results, and an audit trail of update runs.
package store

import (
	"context"
	"time"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// UpdateRun is one per-issue submission attempt recorded for auditing.
type UpdateRun struct {
	ID        string
	Job       string
	Number    int
	IssueID   string
	Action    string // "comment" or "custom-field"
	Status    string // "ok", "dropped", "skipped"
	Detail    string
	CreatedAt time.Time
}

// Store defines the persistence interface for tracklink build state.
//
// Carry-forward sets and results are owned by the build that writes them:
// written once during that build's evaluation. The only later mutation is
// removing an issue the tracker refused as permanently invalid, so that
// follow-up passes over the same build never retry it.
type Store interface {
	// RecordBuild registers that a build was evaluated, so later builds of
	// the same job can locate their predecessor.
	RecordBuild(ctx context.Context, job string, number int) error

	// LatestBuildBefore returns the highest recorded build number of job
	// strictly below number. ok is false when no such build exists.
	LatestBuildBefore(ctx context.Context, job string, number int) (n int, ok bool, err error)

	// SaveCarryForward stores the token set surviving from this build to
	// the next one. An empty set is a valid, meaningful value.
	SaveCarryForward(ctx context.Context, job string, number int, tokens []string) error

	// CarryForward returns the stored token set for a build; ok is false
	// when none was recorded.
	CarryForward(ctx context.Context, job string, number int) (tokens []string, ok bool, err error)

	// SaveResult stores the resolved-issue list for a build. The first
	// successful write wins; later writes for the same build are no-ops.
	SaveResult(ctx context.Context, job string, number int, issues []*models.Issue) error

	// Result returns the persisted resolved-issue list for a build; ok is
	// false when resolution has not run for it.
	Result(ctx context.Context, job string, number int) (issues []*models.Issue, ok bool, err error)

	// RemoveResultIssue deletes one issue from a build's persisted result,
	// for references the tracker refused as permanently invalid. A missing
	// result or issue is a no-op.
	RemoveResultIssue(ctx context.Context, job string, number int, issueID string) error

	// RecordUpdateRun appends one submission-attempt audit row.
	RecordUpdateRun(ctx context.Context, run *UpdateRun) error

	// ListUpdateRuns returns the audit rows for a build, oldest first.
	ListUpdateRuns(ctx context.Context, job string, number int) ([]*UpdateRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
