// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same optimistic-concurrency
// semantics as the Postgres implementation. Records are copied on the
// way in and out so callers never share memory with stored state.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record

	// SaveHook, when set, runs once before the next Save, under the
	// store lock. Tests use it to interleave a competing write.
	SaveHook func()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func copyRecord(r Record) Record {
	c := r
	c.Data = append([]byte(nil), r.Data...)
	if r.NextOfferExpiry != nil {
		t := *r.NextOfferExpiry
		c.NextOfferExpiry = &t
	}
	return c
}

func (s *MemoryStore) Create(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return ErrAlreadyExists
	}
	r.Version = 1
	s.records[r.ID] = copyRecord(r)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Save(ctx context.Context, r Record, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveHook != nil {
		hook := s.SaveHook
		s.SaveHook = nil
		hook()
	}
	rec, ok := s.records[r.ID]
	if !ok {
		return ErrNotFound
	}
	if rec.Version != expectedVersion {
		return ErrConcurrencyConflict
	}
	r.Version = rec.Version + 1
	s.records[r.ID] = copyRecord(r)
	return nil
}

// Bump applies a competing write, bumping the version. Only call from
// inside a SaveHook, where the store lock is already held.
func (s *MemoryStore) Bump(id uuid.UUID, mutate func(r *Record)) error {
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	c := copyRecord(rec)
	if mutate != nil {
		mutate(&c)
	}
	c.Version = rec.Version + 1
	s.records[id] = c
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) DueByStart(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.scan(limit, func(r Record) bool {
		return r.Status == status && !r.StartDate.After(now)
	})
}

func (s *MemoryStore) DueByEnd(ctx context.Context, status string, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.scan(limit, func(r Record) bool {
		return r.Status == status && !r.EndDate.After(now)
	})
}

func (s *MemoryStore) DueOfferExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.scan(limit, func(r Record) bool {
		return r.NextOfferExpiry != nil && r.NextOfferExpiry.Before(now)
	})
}

func (s *MemoryStore) scan(limit int, match func(Record) bool) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, rec := range s.records {
		if match(rec) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
