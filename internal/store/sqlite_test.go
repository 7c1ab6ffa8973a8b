package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklinkhq/tracklink/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Builds ---

func TestLatestBuildBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordBuild(ctx, "frontend", 3))
	require.NoError(t, s.RecordBuild(ctx, "frontend", 7))
	require.NoError(t, s.RecordBuild(ctx, "frontend", 12))
	require.NoError(t, s.RecordBuild(ctx, "backend", 11))

	n, ok, err := s.LatestBuildBefore(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, n)

	// First build of a job has no predecessor
	_, ok, err = s.LatestBuildBefore(ctx, "frontend", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other jobs' builds don't count
	_, ok, err = s.LatestBuildBefore(ctx, "deploy", 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordBuild_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordBuild(ctx, "frontend", 12))
	assert.NoError(t, s.RecordBuild(ctx, "frontend", 12))
}

// --- Carry-forward ---

func TestCarryForward_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCarryForward(ctx, "frontend", 12, []string{"PROJ-1", "PROJ-2"}))

	tokens, ok, err := s.CarryForward(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2"}, tokens)
}

func TestCarryForward_EmptyIsDistinctFromMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Never written: not found
	_, ok, err := s.CarryForward(ctx, "frontend", 12)
	require.NoError(t, err)
	assert.False(t, ok)

	// Written as empty (fully successful build): found, zero tokens
	require.NoError(t, s.SaveCarryForward(ctx, "frontend", 12, nil))

	tokens, ok, err := s.CarryForward(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, tokens)
}

func TestCarryForward_OverwritesOnRewrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCarryForward(ctx, "frontend", 12, []string{"PROJ-1"}))
	require.NoError(t, s.SaveCarryForward(ctx, "frontend", 12, []string{"PROJ-2"}))

	tokens, ok, err := s.CarryForward(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"PROJ-2"}, tokens)
}

// --- Build results ---

func TestSaveResult_FirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []*models.Issue{{ID: "PROJ-1", Summary: "fix login"}}
	require.NoError(t, s.SaveResult(ctx, "frontend", 12, first))
	require.NoError(t, s.SaveResult(ctx, "frontend", 12, []*models.Issue{{ID: "PROJ-9"}}))

	issues, ok, err := s.Result(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "PROJ-1", issues[0].ID)
	assert.Equal(t, "fix login", issues[0].Summary)
}

func TestRemoveResultIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, "frontend", 12, []*models.Issue{
		{ID: "PROJ-1"}, {ID: "PROJ-2"},
	}))

	require.NoError(t, s.RemoveResultIssue(ctx, "frontend", 12, "PROJ-1"))

	issues, ok, err := s.Result(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "PROJ-2", issues[0].ID)

	// Removing an absent issue or from an absent build is a no-op
	assert.NoError(t, s.RemoveResultIssue(ctx, "frontend", 12, "PROJ-9"))
	assert.NoError(t, s.RemoveResultIssue(ctx, "frontend", 99, "PROJ-1"))
}

func TestResult_MissingBuild(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Result(context.Background(), "frontend", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveResult_EmptyResolution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, "frontend", 12, nil))

	issues, ok, err := s.Result(ctx, "frontend", 12)
	require.NoError(t, err)
	require.True(t, ok, "an empty resolution is still a resolution")
	assert.Empty(t, issues)
}

// --- Update runs ---

func TestUpdateRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &UpdateRun{
		Job:     "frontend",
		Number:  12,
		IssueID: "PROJ-1",
		Action:  "comment",
		Status:  "ok",
	}
	require.NoError(t, s.RecordUpdateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	require.NoError(t, s.RecordUpdateRun(ctx, &UpdateRun{
		Job:     "frontend",
		Number:  12,
		IssueID: "PROJ-2",
		Action:  "comment",
		Status:  "skipped",
		Detail:  "503 service unavailable",
	}))

	runs, err := s.ListUpdateRuns(ctx, "frontend", 12)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "PROJ-1", runs[0].IssueID)
	assert.Equal(t, "skipped", runs[1].Status)
	assert.Equal(t, "503 service unavailable", runs[1].Detail)

	other, err := s.ListUpdateRuns(ctx, "frontend", 13)
	require.NoError(t, err)
	assert.Empty(t, other)
}
