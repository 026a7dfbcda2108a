// Package alertlog persists every emitted alert transition to the
// optional Postgres-backed audit table (internal/platform/migrations'
// alert_history), for operators who want history beyond the in-memory
// Alert table the Evaluator keeps. It is wired as an additional
// evaluator.Emitter, never a replacement for the core publish path.
package alertlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/r3e-labs/ruleengine/internal/alert"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
)

// Store appends every emitted alert transition to the alert_history
// table.
type Store struct {
	db *sqlx.DB
}

// Open wraps an existing *sql.DB (already migrated via
// internal/platform/migrations.Apply) as a Store.
func Open(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

const insertHistory = `
INSERT INTO alert_history (rule_name, element, state, severity, description, actions, ctime, mtime)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Emit appends a's current fields as one audit row, retrying transient
// write failures with backoff before giving up (a single slow connection
// should not force the Evaluator to retry the whole fan-out next tick).
// Emit satisfies evaluator.Emitter so a Store can be composed alongside the
// live transport emitter (e.g. via a fan-out Emitter) without the
// Evaluator knowing about persistence at all.
func (s *Store) Emit(a *alert.Alert) error {
	return core.Retry(context.Background(), core.DefaultRetryPolicy, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.db.ExecContext(ctx, insertHistory,
			a.RuleName, a.Element, string(a.State), a.Severity, a.Description,
			pq.Array(a.Actions), a.Ctime, a.Mtime,
		)
		return err
	})
}

// History is one row read back from alert_history.
type History struct {
	ID          int64     `db:"id"`
	RuleName    string    `db:"rule_name"`
	Element     string    `db:"element"`
	State       string    `db:"state"`
	Severity    string    `db:"severity"`
	Description string    `db:"description"`
	Actions     []string  `db:"actions"`
	Ctime       time.Time `db:"ctime"`
	Mtime       time.Time `db:"mtime"`
	RecordedAt  time.Time `db:"recorded_at"`
}

// ForAlert returns the most recent history rows for one alert id
// (rule@element), newest first, bounded by limit.
func (s *Store) ForAlert(ctx context.Context, ruleName, element string, limit int) ([]History, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, rule_name, element, state, severity, description, actions, ctime, mtime, recorded_at
		FROM alert_history
		WHERE rule_name = $1 AND element = $2
		ORDER BY recorded_at DESC
		LIMIT $3`, ruleName, element, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var h History
		var actions pq.StringArray
		if err := rows.Scan(&h.ID, &h.RuleName, &h.Element, &h.State, &h.Severity, &h.Description, &actions, &h.Ctime, &h.Mtime, &h.RecordedAt); err != nil {
			return nil, err
		}
		h.Actions = []string(actions)
		out = append(out, h)
	}
	return out, rows.Err()
}
