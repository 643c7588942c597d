// Package catalog keeps a SQLite index of sessions and archived rounds.
//
// The filesystem archive is the source of truth; the catalog only makes
// listing fast. Every write is idempotent so re-indexing is always safe.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/NielsdaWheelz/ctrain/internal/core"
)

// Catalog is a SQLite-backed index.
type Catalog struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the catalog at path and runs migrations.
func Open(path string) (*Catalog, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			target_metric TEXT NOT NULL,
			target_threshold REAL NOT NULL,
			budget TEXT NOT NULL,
			dataset TEXT NOT NULL,
			verdict TEXT,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			session_id TEXT NOT NULL,
			round_index INTEGER NOT NULL,
			attempt INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			target_value REAL,
			metrics TEXT,
			failure_reason TEXT,
			checkpoint TEXT,
			PRIMARY KEY (session_id, round_index, attempt)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, round_index)`,
	}

	for _, m := range migrations {
		if _, err := c.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordSession indexes a session. Existing rows are left unchanged.
func (c *Catalog) RecordSession(ctx context.Context, s *core.Session) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at, target_metric, target_threshold, budget, dataset)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		s.ID, s.CreatedAt.UTC(), s.Target.Metric, s.Target.Threshold, s.Budget.String(), s.Config.Dataset)
	return err
}

// RecordRound indexes one archived attempt. Re-indexing the same key is a no-op.
func (c *Catalog) RecordRound(ctx context.Context, r core.RunRecord) error {
	var metric sql.NullString
	err := c.db.GetContext(ctx, &metric,
		`SELECT target_metric FROM sessions WHERE session_id = ?`, r.SessionID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	var target sql.NullFloat64
	if metric.Valid {
		if v, ok := r.Metric(metric.String); ok {
			target = sql.NullFloat64{Float64: v, Valid: true}
		}
	}

	var metricsJSON sql.NullString
	if len(r.Metrics) > 0 {
		data, err := json.Marshal(r.Metrics)
		if err != nil {
			return err
		}
		metricsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO rounds (session_id, round_index, attempt, status, started_at, finished_at,
			target_value, metrics, failure_reason, checkpoint)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, round_index, attempt) DO NOTHING`,
		r.SessionID, r.RoundIndex, r.Attempt, string(r.Status), r.StartedAt.UTC(), r.FinishedAt.UTC(),
		target, metricsJSON, nullString(r.FailureReason), nullString(r.ResumeCheckpoint()))
	return err
}

// RecordVerdict stores the terminal verdict of a session.
func (c *Catalog) RecordVerdict(ctx context.Context, sessionID string, v core.Verdict, endedAt time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE sessions SET verdict = ?, ended_at = ? WHERE session_id = ?`,
		string(v), endedAt.UTC(), sessionID)
	return err
}

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID        string
	CreatedAt time.Time
	Metric    string
	Threshold float64
	Budget    string

	// Rounds counts distinct rounds; Attempts counts every archived attempt.
	Rounds   int
	Attempts int

	// LastStatus is the status of the latest attempt, empty if none.
	LastStatus core.Status

	// Best is the highest target metric among SUCCEEDED attempts.
	Best *float64

	// Verdict is empty while the session is running or was interrupted.
	Verdict core.Verdict
}

// sessionRow is the scan target for ListSessions.
type sessionRow struct {
	ID         string          `db:"session_id"`
	CreatedAt  time.Time       `db:"created_at"`
	Metric     string          `db:"target_metric"`
	Threshold  float64         `db:"target_threshold"`
	Budget     string          `db:"budget"`
	Verdict    string          `db:"verdict"`
	Rounds     int             `db:"rounds"`
	Attempts   int             `db:"attempts"`
	LastStatus sql.NullString  `db:"last_status"`
	Best       sql.NullFloat64 `db:"best"`
}

// ListSessions returns sessions newest first.
func (c *Catalog) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var rows []sessionRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT s.session_id, s.created_at, s.target_metric, s.target_threshold, s.budget,
			COALESCE(s.verdict, '') AS verdict,
			(SELECT COUNT(DISTINCT r.round_index) FROM rounds r WHERE r.session_id = s.session_id) AS rounds,
			(SELECT COUNT(*) FROM rounds r WHERE r.session_id = s.session_id) AS attempts,
			(SELECT r.status FROM rounds r WHERE r.session_id = s.session_id
				ORDER BY r.round_index DESC, r.attempt DESC LIMIT 1) AS last_status,
			(SELECT MAX(r.target_value) FROM rounds r
				WHERE r.session_id = s.session_id AND r.status = 'SUCCEEDED') AS best
		FROM sessions s
		ORDER BY s.created_at DESC, s.session_id ASC`)
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		sum := SessionSummary{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			Metric:    row.Metric,
			Threshold: row.Threshold,
			Budget:    row.Budget,
			Rounds:    row.Rounds,
			Attempts:  row.Attempts,
			Verdict:   core.Verdict(row.Verdict),
		}
		if row.LastStatus.Valid {
			sum.LastStatus = core.Status(row.LastStatus.String)
		}
		if row.Best.Valid {
			v := row.Best.Float64
			sum.Best = &v
		}
		out = append(out, sum)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
