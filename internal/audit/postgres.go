package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the objective_transitions table. Execute it via
// [PostgresSink.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS objective_transitions (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL,
    objective   TEXT NOT NULL,
    kind        TEXT NOT NULL,
    event       TEXT NOT NULL,
    from_state  TEXT NOT NULL,
    to_state    TEXT NOT NULL,
    data        JSONB NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_objective_transitions_session ON objective_transitions(session_id, id);
`

// DB is the database interface used by [PostgresSink]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink is a [Sink] backed by PostgreSQL.
type PostgresSink struct {
	db DB
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink returns a PostgresSink using db. The caller is responsible
// for calling [PostgresSink.Migrate] before recording.
func NewPostgresSink(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// Record implements [Sink].
func (s *PostgresSink) Record(ctx context.Context, r Record) error {
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("audit: marshal data: %w", err)
	}

	const query = `
		INSERT INTO objective_transitions
			(session_id, objective, kind, event, from_state, to_state, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.db.Exec(ctx, query,
		r.SessionID, r.Objective, r.Kind, r.Event, r.From, r.To, dataJSON, r.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("audit: insert transition: %w", err)
	}
	return nil
}

// List returns the records of one session in insertion order.
func (s *PostgresSink) List(ctx context.Context, sessionID string) ([]Record, error) {
	const query = `
		SELECT session_id, objective, kind, event, from_state, to_state, data, occurred_at
		FROM objective_transitions
		WHERE session_id = $1
		ORDER BY id`
	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("audit: list transitions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			dataJSON []byte
			at       time.Time
		)
		if err := rows.Scan(&r.SessionID, &r.Objective, &r.Kind, &r.Event, &r.From, &r.To, &dataJSON, &at); err != nil {
			return nil, fmt.Errorf("audit: scan transition: %w", err)
		}
		if len(dataJSON) > 0 && string(dataJSON) != "{}" {
			if err := json.Unmarshal(dataJSON, &r.Data); err != nil {
				return nil, fmt.Errorf("audit: unmarshal data: %w", err)
			}
		}
		r.Timestamp = at
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate transitions: %w", err)
	}
	return out, nil
}
