// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresStore keeps each aggregate as a JSONB document with a version
// column for optimistic concurrency.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresStore creates a store on an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("motorbid/store"),
	}
}

// Schema creates the auctions table. The cmd wiring applies it on
// startup.
const Schema = `
CREATE TABLE IF NOT EXISTS auctions (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	status TEXT NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	next_offer_expiry TIMESTAMPTZ,
	data JSONB NOT NULL,
	version INT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_auctions_start ON auctions (status, start_date);
CREATE INDEX IF NOT EXISTS idx_auctions_end ON auctions (status, end_date);
CREATE INDEX IF NOT EXISTS idx_auctions_offer_expiry ON auctions (next_offer_expiry) WHERE next_offer_expiry IS NOT NULL;
`

func (s *PostgresStore) Create(ctx context.Context, r Record) error {
	ctx, span := s.tracer.Start(ctx, "store.create",
		trace.WithAttributes(attribute.String("aggregate.id", r.ID.String())),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auctions (id, owner_id, status, start_date, end_date, next_offer_expiry, data, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
	`, r.ID, r.OwnerID, r.Status, r.StartDate, r.EndDate, r.NextOfferExpiry, []byte(r.Data), r.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert aggregate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "store.load",
		trace.WithAttributes(attribute.String("aggregate.id", id.String())),
	)
	defer span.End()

	var r Record
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, start_date, end_date, next_offer_expiry, data, version, updated_at
		FROM auctions WHERE id = $1
	`, id).Scan(&r.ID, &r.OwnerID, &r.Status, &r.StartDate, &r.EndDate, &r.NextOfferExpiry, &data, &r.Version, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query aggregate: %w", err)
	}
	r.Data = data
	span.SetAttributes(attribute.Int("aggregate.version", r.Version))
	return r, nil
}

// Save writes the record if and only if the stored version still
// matches expectedVersion.
func (s *PostgresStore) Save(ctx context.Context, r Record, expectedVersion int) error {
	ctx, span := s.tracer.Start(ctx, "store.save",
		trace.WithAttributes(
			attribute.String("aggregate.id", r.ID.String()),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = $2, start_date = $3, end_date = $4, next_offer_expiry = $5,
		    data = $6, version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8
	`, r.ID, r.Status, r.StartDate, r.EndDate, r.NextOfferExpiry, []byte(r.Data), r.UpdatedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return ErrConcurrencyConflict
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete aggregate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DueByStart(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.queryIDs(ctx, `
		SELECT id FROM auctions
		WHERE status = $1 AND start_date <= $2
		ORDER BY start_date
		LIMIT $3
	`, status, now, limit)
}

func (s *PostgresStore) DueByEnd(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.queryIDs(ctx, `
		SELECT id FROM auctions
		WHERE status = $1 AND end_date <= $2
		ORDER BY end_date
		LIMIT $3
	`, status, now, limit)
}

func (s *PostgresStore) DueOfferExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM auctions
		WHERE next_offer_expiry IS NOT NULL AND next_offer_expiry < $1
		ORDER BY next_offer_expiry
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due offer expiry: %w", err)
	}
	return scanIDs(rows)
}

func (s *PostgresStore) queryIDs(ctx context.Context, query, status string, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, query, status, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due aggregates: %w", err)
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
