// Package memory implements the run-yield history store in memory. It is
// the default when no database is configured, and what tests use.
package memory

import (
	"context"
	"sync"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Store keeps per-source yield records, newest first.
type Store struct {
	mu       sync.RWMutex
	bySource map[string][]techwatch.YieldRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{bySource: make(map[string][]techwatch.YieldRecord)}
}

// Record prepends the records to each source's history.
func (s *Store) Record(_ context.Context, recs []techwatch.YieldRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.bySource[rec.Source] = append([]techwatch.YieldRecord{rec}, s.bySource[rec.Source]...)
	}
	return nil
}

// RecentYields returns up to limit records for source, newest first.
func (s *Store) RecentYields(_ context.Context, source string, limit int) ([]techwatch.YieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.bySource[source]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]techwatch.YieldRecord, len(recs))
	copy(out, recs)
	return out, nil
}
