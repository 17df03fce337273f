package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/repository"
)

const schema = `CREATE TABLE IF NOT EXISTS origination_attempts (
	request_id    UUID PRIMARY KEY,
	connection_id UUID,
	family        TEXT NOT NULL,
	handle        TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	cause         TEXT,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ
)`

// AttemptRepository implements repository.AttemptRepository using PostgreSQL.
type AttemptRepository struct {
	db *sqlx.DB
}

var _ repository.AttemptRepository = (*AttemptRepository)(nil)

// NewAttemptRepository constructs a new repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// EnsureSchema creates the attempts table when missing.
func (r *AttemptRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("attempt repo: ensure schema: %w", err)
	}
	return nil
}

// Record inserts an attempt; a replayed request keeps the first row.
func (r *AttemptRepository) Record(ctx context.Context, attempt *domain.OriginationAttempt) error {
	q := `INSERT INTO origination_attempts (
		request_id, connection_id, family, handle, outcome, cause, detail, created_at, ended_at
	) VALUES (
		:request_id, :connection_id, :family, :handle, :outcome, :cause, :detail, :created_at, :ended_at
	) ON CONFLICT (request_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, q, newAttemptRecord(attempt)); err != nil {
		return fmt.Errorf("attempt repo: insert: %w", err)
	}
	return nil
}

// MarkEnded sets ended_at on a connected attempt that has not ended yet.
func (r *AttemptRepository) MarkEnded(ctx context.Context, requestID uuid.UUID, endedAt time.Time) error {
	return withTx(ctx, r.db, readCommitted, func(tx *sqlx.Tx) error {
		var outcome string
		err := tx.GetContext(ctx, &outcome,
			`SELECT outcome FROM origination_attempts WHERE request_id = $1 FOR UPDATE`, requestID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("attempt repo: lock: %w", err)
		}
		if domain.OriginationOutcome(outcome) != domain.OutcomeConnected {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE origination_attempts SET ended_at = $2 WHERE request_id = $1 AND ended_at IS NULL`,
			requestID, endedAt,
		); err != nil {
			return fmt.Errorf("attempt repo: mark ended: %w", err)
		}
		return nil
	})
}

// Get fetches an attempt by request id.
func (r *AttemptRepository) Get(ctx context.Context, requestID uuid.UUID) (*domain.OriginationAttempt, error) {
	q := `SELECT request_id, connection_id, family, handle, outcome, cause, detail, created_at, ended_at
	  FROM origination_attempts WHERE request_id = $1`

	var record attemptRecord
	if err := r.db.QueryRowxContext(ctx, q, requestID).StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("attempt repo: get: %w", err)
	}
	return record.toDomain()
}

// ListRecent returns the newest attempts first.
func (r *AttemptRepository) ListRecent(ctx context.Context, limit int) ([]*domain.OriginationAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT request_id, connection_id, family, handle, outcome, cause, detail, created_at, ended_at
	  FROM origination_attempts ORDER BY created_at DESC LIMIT $1`

	var records []attemptRecord
	if err := r.db.SelectContext(ctx, &records, q, limit); err != nil {
		return nil, fmt.Errorf("attempt repo: list: %w", err)
	}

	out := make([]*domain.OriginationAttempt, 0, len(records))
	for _, rec := range records {
		a, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type attemptRecord struct {
	RequestID    uuid.UUID      `db:"request_id"`
	ConnectionID *uuid.UUID     `db:"connection_id"`
	Family       string         `db:"family"`
	Handle       string         `db:"handle"`
	Outcome      string         `db:"outcome"`
	Cause        sql.NullString `db:"cause"`
	Detail       string         `db:"detail"`
	CreatedAt    time.Time      `db:"created_at"`
	EndedAt      *time.Time     `db:"ended_at"`
}

func newAttemptRecord(a *domain.OriginationAttempt) attemptRecord {
	rec := attemptRecord{
		RequestID:    a.RequestID,
		ConnectionID: a.ConnectionID,
		Family:       a.Family,
		Handle:       a.Handle,
		Outcome:      string(a.Outcome),
		Detail:       a.Detail,
		CreatedAt:    a.CreatedAt,
		EndedAt:      a.EndedAt,
	}
	if a.Cause != nil {
		rec.Cause = sql.NullString{String: a.Cause.String(), Valid: true}
	}
	return rec
}

func (r attemptRecord) toDomain() (*domain.OriginationAttempt, error) {
	a := &domain.OriginationAttempt{
		RequestID:    r.RequestID,
		ConnectionID: r.ConnectionID,
		Family:       r.Family,
		Handle:       r.Handle,
		Outcome:      domain.OriginationOutcome(r.Outcome),
		Detail:       r.Detail,
		CreatedAt:    r.CreatedAt,
		EndedAt:      r.EndedAt,
	}
	if r.Cause.Valid {
		cause, err := domain.ParseDisconnectCause(r.Cause.String)
		if err != nil {
			return nil, fmt.Errorf("attempt repo: %w", err)
		}
		a.Cause = &cause
	}
	return a, nil
}
