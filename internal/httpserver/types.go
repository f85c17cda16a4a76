package httpserver

import (
	"encoding/json"

	"go-offline-proxy/internal/models"
)

// ErrorResponse is returned by every failing control-plane call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MessageResponse acknowledges a control message
type MessageResponse struct {
	Accepted bool `json:"accepted"`
}

// AgentStatusResponse describes the interception agent lifecycle
type AgentStatusResponse struct {
	State           models.AgentState `json:"state"`
	Version         string            `json:"version,omitempty"`
	ActiveVersion   string            `json:"active_version,omitempty"`
	Registered      bool              `json:"registered"`
	UpdateAvailable bool              `json:"update_available"`
}

// CacheEntryResponse carries one tiered cache value
type CacheEntryResponse struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// QueueResponse lists queued mutations
type QueueResponse struct {
	Offline bool                     `json:"offline"`
	Length  int                      `json:"length"`
	Items   []*models.QueuedMutation `json:"items"`
}
