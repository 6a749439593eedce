// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("aggregate not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAlreadyExists       = errors.New("aggregate already exists")
)

// Record is one persisted aggregate: an opaque JSON document plus the
// denormalized columns that scheduling and sweep queries index on. The
// store knows nothing about the document's shape.
type Record struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Status          string
	StartDate       time.Time
	EndDate         time.Time
	NextOfferExpiry *time.Time
	Data            json.RawMessage
	Version         int
	UpdatedAt       time.Time
}

// Store persists aggregate records with optimistic concurrency. Load
// returns the current version token; Save must present it back and
// fails with ErrConcurrencyConflict when a concurrent writer got there
// first, so the caller reloads and revalidates against fresh state.
type Store interface {
	Create(ctx context.Context, r Record) error
	Load(ctx context.Context, id uuid.UUID) (Record, error)
	Save(ctx context.Context, r Record, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DueByStart lists records in the given status whose start date has
	// passed, oldest first.
	DueByStart(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error)
	// DueByEnd lists records in the given status whose end date has
	// passed, oldest first.
	DueByEnd(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error)
	// DueOfferExpiry lists records holding an open offer whose
	// negotiation deadline has passed.
	DueOfferExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
