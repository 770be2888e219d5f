package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents one operator-visible occurrence on a device session.
type Event struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	DeviceID string `json:"deviceId" db:"device_id"`
	Login    string `json:"login,omitempty" db:"login"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	EventTypeSessionStart     EventType = "SESSION_START"
	EventTypeAuthSuccess      EventType = "AUTH_SUCCESS"
	EventTypeAuthFailure      EventType = "AUTH_FAILURE"
	EventTypeUnknownUser      EventType = "UNKNOWN_USER"
	EventTypePropertyReplace  EventType = "PROPERTY_REPLACE"
	EventTypeStateChange      EventType = "STATE_CHANGE"
	EventTypeUpgradeConfirmed EventType = "UPGRADE_CONFIRMED"
	EventTypeUpgradeDeclined  EventType = "UPGRADE_DECLINED"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

// Variables is a string map stored as JSONB.
type Variables map[string]string

// Value implements driver.Valuer
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner
func (v *Variables) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Variables", src)
	}
	return json.Unmarshal(b, v)
}
