// Package ledger maintains a queryable SQLite mirror of dispatch cost
// and token usage. It is not the source of truth (the per-dispatch
// JSON files under internal/dispatchstore are); it exists so operators
// can run SQL aggregates (cost per task, cost per role, cost per day)
// without re-reading every dispatch file from disk. The daemon itself
// only writes to it.
//
// Grounded on internal/events/store.go's SQLiteStore: schema-on-init
// via CREATE TABLE IF NOT EXISTS, parameterized INSERT/UPDATE, and the
// mattn/go-sqlite3 driver import pattern from the teacher repo.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/collabotd/collabot/internal/model"
)

// Ledger wraps a SQLite database recording one row per dispatch.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		dispatch_id TEXT PRIMARY KEY,
		task_slug TEXT NOT NULL,
		project TEXT NOT NULL,
		role TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL,
		cost REAL,
		input_tokens INTEGER,
		output_tokens INTEGER,
		cache_tokens INTEGER,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		parent_dispatch_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_dispatches_task ON dispatches(task_slug);
	CREATE INDEX IF NOT EXISTS idx_dispatches_project ON dispatches(project);
	CREATE INDEX IF NOT EXISTS idx_dispatches_role ON dispatches(role);
	CREATE INDEX IF NOT EXISTS idx_dispatches_started ON dispatches(started_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record upserts a row for the envelope's current state. The dispatch
// runtime calls it once, when a one-shot dispatch finalizes; a repeated
// call for the same dispatch id updates that row rather than adding one.
func (l *Ledger) Record(project string, env model.Envelope) error {
	var inputTokens, outputTokens, cacheTokens sql.NullInt64
	if env.Usage != nil {
		inputTokens = sql.NullInt64{Int64: int64(env.Usage.InputTokens), Valid: true}
		outputTokens = sql.NullInt64{Int64: int64(env.Usage.OutputTokens), Valid: true}
		cacheTokens = sql.NullInt64{Int64: int64(env.Usage.CacheTokens), Valid: true}
	}
	var cost sql.NullFloat64
	if env.Cost != nil {
		cost = sql.NullFloat64{Float64: *env.Cost, Valid: true}
	}
	var completedAt sql.NullTime
	if env.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *env.CompletedAt, Valid: true}
	}

	query := `
	INSERT INTO dispatches (
		dispatch_id, task_slug, project, role, model, status, cost,
		input_tokens, output_tokens, cache_tokens, started_at,
		completed_at, parent_dispatch_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dispatch_id) DO UPDATE SET
		status = excluded.status,
		cost = excluded.cost,
		input_tokens = excluded.input_tokens,
		output_tokens = excluded.output_tokens,
		cache_tokens = excluded.cache_tokens,
		completed_at = excluded.completed_at
	`
	_, err := l.db.Exec(query,
		env.DispatchID, env.TaskSlug, project, env.Role, env.Model, string(env.Status), cost,
		inputTokens, outputTokens, cacheTokens, env.StartedAt,
		completedAt, env.ParentDispatchID,
	)
	if err != nil {
		return fmt.Errorf("record dispatch %s: %w", env.DispatchID, err)
	}
	return nil
}

// TaskCost sums the recorded cost across every dispatch for a task.
func (l *Ledger) TaskCost(taskSlug string) (float64, error) {
	var total sql.NullFloat64
	row := l.db.QueryRow(`SELECT SUM(cost) FROM dispatches WHERE task_slug = ?`, taskSlug)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum task cost for %s: %w", taskSlug, err)
	}
	return total.Float64, nil
}

// ProjectCostSince sums recorded cost for a project over dispatches
// started at or after since.
func (l *Ledger) ProjectCostSince(project string, since time.Time) (float64, error) {
	var total sql.NullFloat64
	row := l.db.QueryRow(
		`SELECT SUM(cost) FROM dispatches WHERE project = ? AND started_at >= ?`,
		project, since,
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum project cost for %s: %w", project, err)
	}
	return total.Float64, nil
}

// RoleCost sums recorded cost across all dispatches of a given role,
// used for per-role cost reporting.
func (l *Ledger) RoleCost(role string) (float64, error) {
	var total sql.NullFloat64
	row := l.db.QueryRow(`SELECT SUM(cost) FROM dispatches WHERE role = ?`, role)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum role cost for %s: %w", role, err)
	}
	return total.Float64, nil
}

// CountRunning returns the number of dispatches currently recorded as
// running for a project.
func (l *Ledger) CountRunning(project string) (int, error) {
	var count int
	row := l.db.QueryRow(
		`SELECT COUNT(*) FROM dispatches WHERE project = ? AND status = ?`,
		project, string(model.DispatchRunning),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count running dispatches for %s: %w", project, err)
	}
	return count, nil
}
