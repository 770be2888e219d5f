package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/models"
)

// NATSRecorder publishes events as JSON on dm.event.<type> subjects so
// external integrations can react to upgrade confirmations and auth
// failures without polling the API.
type NATSRecorder struct {
	nc *nats.Conn
}

// NewNATSRecorder creates a recorder publishing to the given connection.
func NewNATSRecorder(nc *nats.Conn) *NATSRecorder {
	return &NATSRecorder{nc: nc}
}

func (r *NATSRecorder) Record(_ context.Context, event *models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	subject := "dm.event." + strings.ToLower(string(event.Type))
	if err := r.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("Failed to publish event")
	}
}
