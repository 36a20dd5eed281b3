package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/brigade/pkg/models"
)

const (
	// DriverSQLite is the pure Go driver (modernc.org/sqlite).
	DriverSQLite = "sqlite"
	// DriverSQLite3 is the cgo driver (github.com/mattn/go-sqlite3).
	DriverSQLite3 = "sqlite3"
)

// SQLiteStore persists task records in a SQLite database so several
// processes can share one namespace.
type SQLiteStore struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".brigade", "state.db")
}

// OpenSQLite opens a SQLite database at the given path with the named driver.
// It creates the parent directories if they don't exist and enables WAL mode
// so readers do not block the writer.
func OpenSQLite(path, driver string) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverSQLite3 {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &SQLiteStore{conn: conn, path: path, driver: driver}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStore) Driver() string {
	return s.driver
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Jobs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace TEXT NOT NULL,
	id TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	record TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_namespace ON tasks(namespace, seq);
`

const migrationV2Jobs = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	task_count INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// Get retrieves one record, or nil if absent.
func (s *SQLiteStore) Get(ctx context.Context, namespace, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record string
	err := s.conn.QueryRowContext(ctx,
		"SELECT record FROM tasks WHERE namespace = ? AND id = ?", namespace, id,
	).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeTask(record)
}

// Put upserts a record. An existing row keeps its position in scan order.
func (s *SQLiteStore) Put(ctx context.Context, namespace, id string, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("put %s/%s: nil task", namespace, id)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO tasks (namespace, id, role, status, record, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET
			role = excluded.role,
			status = excluded.status,
			record = excluded.record,
			updated_at = excluded.updated_at
	`, namespace, id, task.Role, string(task.Status), string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put task %s: %w", id, err)
	}
	return nil
}

// Scan returns the namespace's records in insertion order.
func (s *SQLiteStore) Scan(ctx context.Context, namespace string, limit int) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT record FROM tasks WHERE namespace = ? ORDER BY seq"
	args := []any{namespace}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", namespace, err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t, err := decodeTask(record)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", namespace, err)
	}
	return tasks, nil
}

// Namespaces lists namespaces in creation order.
func (s *SQLiteStore) Namespaces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx,
		"SELECT namespace FROM tasks GROUP BY namespace ORDER BY MIN(seq)")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Job CRUD operations

// CreateJob creates a new job row.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, mode, status, task_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.ID, j.Mode, string(j.Status), j.TaskCount, formatTime(j.StartedAt), nullableTime(j.FinishedAt))
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx, `
		SELECT id, mode, status, task_count, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id)

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// UpdateJob updates a job row.
func (s *SQLiteStore) UpdateJob(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET mode = ?, status = ?, task_count = ?, finished_at = ?
		WHERE id = ?
	`, j.Mode, string(j.Status), j.TaskCount, nullableTime(j.FinishedAt), j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job: job %s not found", j.ID)
	}
	return nil
}

// ListJobs lists all jobs, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, mode, status, task_count, started_at, finished_at
		FROM jobs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var j Job
	var status, startedAt string
	var finishedAt sql.NullString
	if err := r.Scan(&j.ID, &j.Mode, &status, &j.TaskCount, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.StartedAt, _ = parseTime(startedAt)
	j.FinishedAt = parseNullableTime(finishedAt)
	return &j, nil
}

func decodeTask(record string) (*models.Task, error) {
	var t models.Task
	if err := json.Unmarshal([]byte(record), &t); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	// Records written by another process may carry a status this build does
	// not know; scheduling on it would silently strand the task.
	if t.Status != "" && !t.Status.Valid() {
		return nil, fmt.Errorf("decode task %s: unknown status %q", t.ID, t.Status)
	}
	return &t, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
