package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
)

type entry struct {
	history   *domain.CartHistory
	expiresAt time.Time
}

// MemoryStore holds histories in process memory. Entries expire ttl after
// their last write and are dropped lazily on read or by Sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, customerID uuid.UUID) (*domain.CartHistory, error) {
	s.mu.RLock()
	e, ok := s.entries[customerID]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return nil, nil
	}
	return e.history.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, customerID uuid.UUID, h *domain.CartHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[customerID] = entry{history: h.Clone(), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, customerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, customerID)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("expired cart histories dropped", zap.Int("count", n))
			}
		}
	}
}

func (s *MemoryStore) expired(e entry) bool {
	return s.ttl > 0 && s.now().After(e.expiresAt)
}
