package models

import (
	"encoding/json"
	"time"
)

// QueuedMutation is a write buffered while the upstream is unreachable
type QueuedMutation struct {
	ID         string          `json:"id"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueued_at"` // epoch milliseconds
}

// Age returns how long the mutation has been queued at now
func (m *QueuedMutation) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-m.EnqueuedAt) * time.Millisecond
}

// OfflineRecord is a locally saved value kept for offline reads
type OfflineRecord struct {
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
	SavedAt int64           `json:"saved_at"` // epoch milliseconds
}
