package models

import (
	"encoding/json"
	"time"
)

// DefaultTTL is applied when Set is called without a positive TTL
const DefaultTTL = 300_000 * time.Millisecond

// CacheEntry is the unit stored in both cache tiers
type CacheEntry struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"` // epoch milliseconds of the write
	TTL        int64           `json:"ttl"`       // milliseconds
	Compressed bool            `json:"compressed"`
}

// NewCacheEntry creates an entry written at now
func NewCacheEntry(data []byte, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
}

// IsExpired reports whether now - timestamp exceeds the TTL
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > e.TTL
}

// ExpiresAt returns the last instant at which the entry is still valid
func (e *CacheEntry) ExpiresAt() time.Time {
	return time.UnixMilli(e.Timestamp + e.TTL)
}

// Remaining returns how long the entry stays valid after now
func (e *CacheEntry) Remaining(now time.Time) time.Duration {
	d := e.ExpiresAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
