package storage

import (
	"context"
	"errors"

	"github.com/swuota-server/swuota-server/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the event-trail storage interface
type Store interface {
	// SaveEvent persists one session event.
	SaveEvent(ctx context.Context, event *models.Event) error

	// ListEvents returns events newest first, optionally filtered by
	// device identity, plus the total match count.
	ListEvents(ctx context.Context, deviceID string, limit, offset int) ([]*models.Event, int64, error)

	Close() error
}
