package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the ops API view of one device-management session.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`

	DeviceID  string `json:"deviceId"`
	Login     string `json:"login"`
	ServerID  string `json:"serverId,omitempty"`
	SessionID string `json:"sessionId"`

	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	KnownUser     bool   `json:"knownUser"`

	ServerMsgID int `json:"serverMsgId"`
	MaxMsgSize  int `json:"maxMsgSize,omitempty"`
	MaxObjSize  int `json:"maxObjSize,omitempty"`

	Properties map[string]string `json:"properties,omitempty"`
}
