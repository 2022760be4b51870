package cache

import (
	"context"
	"sync"
	"time"

	"BCRPSentinel/internal/model"
)

// MemoryStore keeps entries in process memory. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	fresh   freshness
}

// NewMemoryStore creates an empty in-memory store evaluating freshness in loc.
func NewMemoryStore(loc *time.Location) *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), fresh: newFreshness(loc)}
}

// SetClock overrides the clock used for freshness and timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) { s.fresh.now = now }

func (s *MemoryStore) Get(_ context.Context, code string, mode LookupMode) (*Entry, error) {
	s.mu.RLock()
	ent, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok || !s.fresh.accept(ent.RetrievedAt, mode) {
		return nil, ErrNotFound
	}
	return &Entry{Record: ent.Record.Clone(), RetrievedAt: ent.RetrievedAt}, nil
}

func (s *MemoryStore) Upsert(_ context.Context, code string, rec *model.SeriesRecord) error {
	ent := Entry{Record: rec.Clone(), RetrievedAt: s.fresh.now()}
	s.mu.Lock()
	s.entries[code] = ent
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached codes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
