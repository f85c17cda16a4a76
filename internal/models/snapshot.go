package models

import (
	"net/http"
	"time"
)

// Snapshot is a stored response inside a named partition
type Snapshot struct {
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// OK mirrors the fetch notion of a successful response
func (s *Snapshot) OK() bool {
	return s.Status >= 200 && s.Status < 300
}

// Date parses the response Date header
func (s *Snapshot) Date() (time.Time, bool) {
	raw := s.Header.Get("Date")
	if raw == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PartitionInfo describes one partition for diagnostics
type PartitionInfo struct {
	EntryCount int      `json:"entry_count"`
	URLs       []string `json:"urls"`
}

// PartitionStats aggregates every partition
type PartitionStats struct {
	PartitionCount int                      `json:"partition_count"`
	Partitions     map[string]PartitionInfo `json:"partitions"`
}
