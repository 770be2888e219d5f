// Package events fans session events out to the configured sinks: the event
// store always, NATS when configured.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/models"
	"github.com/swuota-server/swuota-server/internal/storage"
)

// Recorder accepts session events. Implementations must not block the
// calling session for long; recording failures are logged, never surfaced
// to the device.
type Recorder interface {
	Record(ctx context.Context, event *models.Event)
}

// New builds a populated event.
func New(deviceID, login string, typ models.EventType, level models.EventLevel, description string, details models.Variables) *models.Event {
	return &models.Event{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		DeviceID:    deviceID,
		Login:       login,
		Type:        typ,
		Level:       level,
		Description: description,
		Details:     details,
	}
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.Event) {}

// StoreRecorder persists events to the event store.
type StoreRecorder struct {
	store storage.Store
}

// NewStoreRecorder creates a recorder backed by the given store.
func NewStoreRecorder(store storage.Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, event *models.Event) {
	if err := r.store.SaveEvent(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("device", event.DeviceID).
			Str("type", string(event.Type)).
			Msg("Failed to save event")
	}
}

// MultiRecorder forwards each event to every recorder.
type MultiRecorder []Recorder

// NewMultiRecorder combines recorders, skipping nils.
func NewMultiRecorder(recorders ...Recorder) MultiRecorder {
	var out MultiRecorder
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiRecorder) Record(ctx context.Context, event *models.Event) {
	for _, r := range m {
		r.Record(ctx, event)
	}
}
