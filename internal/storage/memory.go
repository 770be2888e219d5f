package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swuota-server/swuota-server/internal/models"
)

// MemoryStore keeps the most recent events in memory. Used when no database
// is configured and as the test double.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*models.Event
	cap    int
}

// NewMemoryStore creates a memory store retaining at most cap events
// (default 1000 when cap <= 0).
func NewMemoryStore(cap int) *MemoryStore {
	if cap <= 0 {
		cap = 1000
	}
	return &MemoryStore{cap: cap}
}

// SaveEvent persists one session event
func (s *MemoryStore) SaveEvent(_ context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
	return nil
}

// ListEvents lists events newest first, optionally filtered by device
func (s *MemoryStore) ListEvents(_ context.Context, deviceID string, limit, offset int) ([]*models.Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if deviceID != "" && e.DeviceID != deviceID {
			continue
		}
		matched = append(matched, e)
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// Close implements Store
func (s *MemoryStore) Close() error { return nil }
