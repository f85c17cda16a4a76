package interfaces

import (
	"context"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=cache.go -destination=mock/cache.go

// Tier is one level of the tiered cache store. Tiers return entries as stored;
// expiry is judged by the caller.
type Tier interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, bool) // returns entry and found flag
	Set(ctx context.Context, key string, entry *models.CacheEntry) error
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context) error
}

// ScannableTier is a tier that can be walked, used for the fast tier sweep and stats
type ScannableTier interface {
	Tier
	// Range calls fn for every entry with its encoded size; returning false stops the walk
	Range(fn func(key string, entry *models.CacheEntry, size int) bool)
	Len() int
}

// Pinger is implemented by tiers whose availability can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// Compressor is the payload compression hook used for large cache values
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}
