package update

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/resolve"
	"github.com/tracklinkhq/tracklink/internal/store"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

type testLogger struct{}

func (testLogger) Info(format string, a ...any)       {}
func (testLogger) Warning(format string, a ...any)    {}
func (testLogger) Error(format string, a ...any)      {}
func (testLogger) VerboseLog(format string, a ...any) {}

type commentCall struct {
	issueID string
	body    string
	group   string
	role    string
}

// mockSession records comment and field submissions and can fail them
// per issue.
type mockSession struct {
	issues      map[string]*models.Issue
	existsErr   error
	commentErrs map[string]error
	fieldErrs   map[string]error

	comments []commentCall
	fields   map[string]string
}

func (m *mockSession) ExistsIssue(ctx context.Context, id string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.issues[id]
	return ok, nil
}

func (m *mockSession) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tracker.ErrNotPermitted, id)
	}
	return issue, nil
}

func (m *mockSession) AddComment(ctx context.Context, id, body, group, role string) error {
	if err := m.commentErrs[id]; err != nil {
		return err
	}
	m.comments = append(m.comments, commentCall{issueID: id, body: body, group: group, role: role})
	return nil
}

func (m *mockSession) UpdateCustomField(ctx context.Context, id, fieldID, value string) error {
	if err := m.fieldErrs[id]; err != nil {
		return err
	}
	if m.fields == nil {
		m.fields = map[string]string{}
	}
	m.fields[id] = value
	return nil
}

// mockOpener hands out a fixed session, or fails.
type mockOpener struct {
	session tracker.Session
	err     error
	calls   int
}

func (m *mockOpener) OpenSession(ctx context.Context) (tracker.Session, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

// mockStore keeps all build state in maps.
type mockStore struct {
	builds       map[string]bool
	carryForward map[string][]string
	results      map[string][]*models.Issue
	runs         []*store.UpdateRun
}

func newMockStore() *mockStore {
	return &mockStore{
		builds:       map[string]bool{},
		carryForward: map[string][]string{},
		results:      map[string][]*models.Issue{},
	}
}

func key(job string, number int) string { return fmt.Sprintf("%s#%d", job, number) }

func (m *mockStore) RecordBuild(ctx context.Context, job string, number int) error {
	m.builds[key(job, number)] = true
	return nil
}

func (m *mockStore) LatestBuildBefore(ctx context.Context, job string, number int) (int, bool, error) {
	return 0, false, nil
}

func (m *mockStore) SaveCarryForward(ctx context.Context, job string, number int, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}
	m.carryForward[key(job, number)] = tokens
	return nil
}

func (m *mockStore) CarryForward(ctx context.Context, job string, number int) ([]string, bool, error) {
	tokens, ok := m.carryForward[key(job, number)]
	return tokens, ok, nil
}

func (m *mockStore) SaveResult(ctx context.Context, job string, number int, issues []*models.Issue) error {
	if _, ok := m.results[key(job, number)]; !ok {
		m.results[key(job, number)] = issues
	}
	return nil
}

func (m *mockStore) Result(ctx context.Context, job string, number int) ([]*models.Issue, bool, error) {
	issues, ok := m.results[key(job, number)]
	return issues, ok, nil
}

func (m *mockStore) RemoveResultIssue(ctx context.Context, job string, number int, issueID string) error {
	issues, ok := m.results[key(job, number)]
	if !ok {
		return nil
	}
	kept := make([]*models.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.ID != issueID {
			kept = append(kept, issue)
		}
	}
	m.results[key(job, number)] = kept
	return nil
}

func (m *mockStore) RecordUpdateRun(ctx context.Context, run *store.UpdateRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockStore) ListUpdateRuns(ctx context.Context, job string, number int) ([]*store.UpdateRun, error) {
	return m.runs, nil
}

func (m *mockStore) Migrate(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                      { return nil }

func testSite() *tracker.Site {
	return &tracker.Site{
		URL:          "https://tracker.example.com",
		IssuePattern: regexp.MustCompile(`([A-Z]+-\d+)`),
	}
}

func testRecord(msgs ...string) *build.Record {
	rec := &build.Record{
		Job:     "frontend",
		Number:  12,
		URL:     "http://ci/job/frontend/12/",
		Outcome: models.OutcomeSuccess,
	}
	for _, msg := range msgs {
		rec.Changes = append(rec.Changes, &models.Change{Msg: msg})
	}
	return rec
}

func newOrchestrator(st *mockStore, site *tracker.Site, opener tracker.SessionOpener) *Orchestrator {
	return &Orchestrator{
		Store:    st,
		Site:     site,
		Resolver: resolve.New(st, site),
		Policy:   DefaultPolicy(),
		Sessions: opener,
		Log:      testLogger{},
	}
}

func TestRun_SubmitsScopedCommentPerIssue(t *testing.T) {
	session := &mockSession{issues: map[string]*models.Issue{
		"PROJ-1": {ID: "PROJ-1"},
		"PROJ-2": {ID: "PROJ-2"},
	}}
	st := newMockStore()
	site := testSite()
	site.GroupVisibility = "jira-developers"
	o := newOrchestrator(st, site, &mockOpener{session: session})

	rec := testRecord("PROJ-1: fix login", "PROJ-2: new dashboard")
	require.NoError(t, o.Run(context.Background(), rec))

	require.Len(t, session.comments, 2)
	assert.Equal(t, "PROJ-1", session.comments[0].issueID)
	assert.Contains(t, session.comments[0].body, "fix login")
	assert.NotContains(t, session.comments[0].body, "new dashboard")
	assert.Equal(t, "jira-developers", session.comments[0].group)

	// Fully successful pass: nothing carries forward.
	assert.Equal(t, []string{}, st.carryForward[key("frontend", 12)])
}

func TestRun_PermissionFailureDropsIssueFromCarryForward(t *testing.T) {
	session := &mockSession{
		issues: map[string]*models.Issue{
			"PROJ-1": {ID: "PROJ-1"},
			"PROJ-2": {ID: "PROJ-2"},
		},
		commentErrs: map[string]error{
			"PROJ-1": fmt.Errorf("add comment: %w", tracker.ErrNotPermitted),
		},
	}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), &mockOpener{session: session})

	rec := testRecord("PROJ-1: fix", "PROJ-2: feature")
	require.NoError(t, o.Run(context.Background(), rec))

	// PROJ-2 was still commented; PROJ-1 is gone for good.
	require.Len(t, session.comments, 1)
	assert.Equal(t, "PROJ-2", session.comments[0].issueID)
	assert.Equal(t, []string{}, st.carryForward[key("frontend", 12)])

	// The drop also reaches the stored result, so a follow-up field-update
	// pass over the same build never touches PROJ-1 again.
	result, ok, err := st.Result(context.Background(), "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, result, 1)
	assert.Equal(t, "PROJ-2", result[0].ID)
}

func TestRun_PermissionDropNotRetriedByFieldUpdater(t *testing.T) {
	session := &mockSession{
		issues: map[string]*models.Issue{
			"PROJ-1": {ID: "PROJ-1"},
			"PROJ-2": {ID: "PROJ-2"},
		},
		commentErrs: map[string]error{
			"PROJ-1": fmt.Errorf("add comment: %w", tracker.ErrNotPermitted),
		},
	}
	st := newMockStore()
	opener := &mockOpener{session: session}
	o := newOrchestrator(st, testSite(), opener)

	rec := testRecord("PROJ-1: fix", "PROJ-2: feature")
	require.NoError(t, o.Run(context.Background(), rec))

	u := newFieldUpdater(st, opener)
	u.FieldValue = "released"
	require.NoError(t, u.Run(context.Background(), rec))

	assert.NotContains(t, session.fields, "PROJ-1")
	assert.Equal(t, "released", session.fields["PROJ-2"])
}

func TestRun_TransientCommentFailureCarriesIssueForward(t *testing.T) {
	session := &mockSession{
		issues: map[string]*models.Issue{
			"PROJ-1": {ID: "PROJ-1"},
		},
		commentErrs: map[string]error{
			"PROJ-1": errors.New("503 service unavailable"),
		},
	}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), &mockOpener{session: session})

	rec := testRecord("PROJ-1: fix")
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Equal(t, []string{"PROJ-1"}, st.carryForward[key("frontend", 12)])
	assert.Equal(t, models.OutcomeSuccess, rec.Outcome, "transient failure must not touch the verdict")
}

func TestRun_SkipsMatrixMember(t *testing.T) {
	opener := &mockOpener{session: &mockSession{}}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), opener)

	rec := testRecord("PROJ-1: fix")
	rec.MatrixMember = true
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Zero(t, opener.calls)
	assert.Empty(t, st.carryForward)
}

func TestRun_NoSiteMarksBuildFailed(t *testing.T) {
	st := newMockStore()
	o := newOrchestrator(st, nil, &mockOpener{})
	o.Site = nil

	rec := testRecord("PROJ-1: fix")
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Equal(t, models.OutcomeFailure, rec.Outcome)
}

func TestRun_BelowThresholdCarriesCandidatesWithoutRemoteCalls(t *testing.T) {
	opener := &mockOpener{session: &mockSession{}}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), opener)

	rec := testRecord("PROJ-1: fix")
	rec.Outcome = models.OutcomeFailure
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Zero(t, opener.calls, "no session may be opened below threshold")
	assert.Equal(t, []string{"PROJ-1"}, st.carryForward[key("frontend", 12)])
	assert.Equal(t, models.OutcomeFailure, rec.Outcome)
}

func TestRun_SessionFailureIsSoft(t *testing.T) {
	st := newMockStore()
	o := newOrchestrator(st, testSite(), &mockOpener{err: errors.New("connection refused")})

	rec := testRecord("PROJ-1: fix")
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Equal(t, models.OutcomeSuccess, rec.Outcome, "session failure must not overwrite the verdict")
	assert.Equal(t, []string{"PROJ-1"}, st.carryForward[key("frontend", 12)])
}

func TestRun_ResolutionFailureDegradesToThreshold(t *testing.T) {
	session := &mockSession{existsErr: errors.New("connection reset")}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), &mockOpener{session: session})

	rec := testRecord("PROJ-1: fix")
	require.NoError(t, o.Run(context.Background(), rec))

	assert.Equal(t, models.OutcomeUnstable, rec.Outcome)
	assert.Equal(t, []string{"PROJ-1"}, st.carryForward[key("frontend", 12)])
}

func TestRun_CarriedForwardTokensAreRetried(t *testing.T) {
	session := &mockSession{issues: map[string]*models.Issue{
		"OLD-1": {ID: "OLD-1"},
	}}
	st := newMockStore()
	o := newOrchestrator(st, testSite(), &mockOpener{session: session})

	rec := testRecord() // no own changes
	rec.CarriedOver = models.NewTokenSet("OLD-1")
	require.NoError(t, o.Run(context.Background(), rec))

	require.Len(t, session.comments, 1)
	assert.Equal(t, "OLD-1", session.comments[0].issueID)
}
