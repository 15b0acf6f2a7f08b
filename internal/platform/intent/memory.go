package intent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/inkwell-press/api/internal/domain"
)

// MemoryStore provides an in-memory implementation useful for testing and
// local development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]domain.PaymentIntent
	now     func() time.Time
}

// MemoryOption customises the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock injects a custom clock for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore constructs an empty memory-backed intent store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		records: make(map[string]domain.PaymentIntent),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Put implements the Store interface.
func (s *MemoryStore) Put(_ context.Context, record domain.PaymentIntent) error {
	reference := strings.TrimSpace(record.Reference)
	if reference == "" {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[reference]; ok && !existing.Expired(s.now().UTC()) {
		return ErrAlreadyExists
	}
	s.records[reference] = record
	return nil
}

// Get implements the Store interface.
func (s *MemoryStore) Get(_ context.Context, reference string) (domain.PaymentIntent, error) {
	reference = strings.TrimSpace(reference)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[reference]
	if !ok {
		return domain.PaymentIntent{}, ErrNotFound
	}
	return record, nil
}

// Delete implements the Store interface.
func (s *MemoryStore) Delete(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, strings.TrimSpace(reference))
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	removed := 0
	for reference, record := range s.records {
		if !record.Expired(now) {
			continue
		}
		delete(s.records, reference)
		removed++
		if removed >= limit {
			break
		}
	}
	return removed, nil
}
