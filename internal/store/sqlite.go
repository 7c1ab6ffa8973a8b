package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tracklinkhq/tracklink/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all DB access through Go's connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Builds ---

func (s *SQLiteStore) RecordBuild(ctx context.Context, job string, number int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (job, number) VALUES (?, ?)
		ON CONFLICT (job, number) DO NOTHING`,
		job, number,
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestBuildBefore(ctx context.Context, job string, number int) (int, bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT number FROM builds WHERE job = ? AND number < ? ORDER BY number DESC LIMIT 1`,
		job, number,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find previous build: %w", err)
	}
	return n, true, nil
}

// --- Carry-forward ---

func (s *SQLiteStore) SaveCarryForward(ctx context.Context, job string, number int, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode carry-forward: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO carry_forward (job, number, tokens) VALUES (?, ?, ?)
		ON CONFLICT (job, number) DO UPDATE SET tokens = excluded.tokens`,
		job, number, string(data),
	)
	if err != nil {
		return fmt.Errorf("save carry-forward: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CarryForward(ctx context.Context, job string, number int) ([]string, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens FROM carry_forward WHERE job = ? AND number = ?`,
		job, number,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get carry-forward: %w", err)
	}

	var tokens []string
	if err := json.Unmarshal([]byte(data), &tokens); err != nil {
		return nil, false, fmt.Errorf("decode carry-forward: %w", err)
	}
	return tokens, true, nil
}

// --- Build results ---

func (s *SQLiteStore) SaveResult(ctx context.Context, job string, number int, issues []*models.Issue) error {
	if issues == nil {
		issues = []*models.Issue{}
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	// First successful resolution wins: later writes for the same build
	// are ignored so consumers always see one stable result.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO build_results (job, number, issues) VALUES (?, ?, ?)
		ON CONFLICT (job, number) DO NOTHING`,
		job, number, string(data),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Result(ctx context.Context, job string, number int) ([]*models.Issue, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT issues FROM build_results WHERE job = ? AND number = ?`,
		job, number,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get result: %w", err)
	}

	var issues []*models.Issue
	if err := json.Unmarshal([]byte(data), &issues); err != nil {
		return nil, false, fmt.Errorf("decode result: %w", err)
	}
	return issues, true, nil
}

func (s *SQLiteStore) RemoveResultIssue(ctx context.Context, job string, number int, issueID string) error {
	issues, ok, err := s.Result(ctx, job, number)
	if err != nil || !ok {
		return err
	}

	kept := issues[:0]
	for _, issue := range issues {
		if issue.ID != issueID {
			kept = append(kept, issue)
		}
	}
	if len(kept) == len(issues) {
		return nil
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE build_results SET issues = ? WHERE job = ? AND number = ?`,
		string(data), job, number,
	)
	if err != nil {
		return fmt.Errorf("remove %s from result: %w", issueID, err)
	}
	return nil
}

// --- Update runs ---

func (s *SQLiteStore) RecordUpdateRun(ctx context.Context, run *UpdateRun) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO update_runs (id, job, number, issue_id, action, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Job, run.Number, run.IssueID, run.Action, run.Status, run.Detail, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record update run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUpdateRuns(ctx context.Context, job string, number int) ([]*UpdateRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job, number, issue_id, action, status, detail, created_at
		FROM update_runs WHERE job = ? AND number = ? ORDER BY id`,
		job, number,
	)
	if err != nil {
		return nil, fmt.Errorf("list update runs: %w", err)
	}
	defer rows.Close()

	var runs []*UpdateRun
	for rows.Next() {
		run := &UpdateRun{}
		var detail sql.NullString
		if err := rows.Scan(&run.ID, &run.Job, &run.Number, &run.IssueID, &run.Action, &run.Status, &detail, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update run: %w", err)
		}
		run.Detail = detail.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
