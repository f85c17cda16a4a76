package l1

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// Ensure BigCache implements interfaces.ScannableTier
var _ interfaces.ScannableTier = (*BigCache)(nil)

// defaultLifeWindow applies when the configuration sets none. Entry expiry is
// judged from the entry TTL by the tiered store; bigcache still drops entries
// older than the life window on write, so it must cover the longest TTL.
const defaultLifeWindow = 30 * 24 * time.Hour

// BigCache implements the fast tier using BigCache
type BigCache struct {
	cache      *bigcache.BigCache
	lifeWindow time.Duration
	logger     *zap.Logger
}

// NewBigCache creates a new BigCache instance
func NewBigCache(cfg *config.FastTierConfig, logger *zap.Logger) (*BigCache, error) {
	lifeWindow := cfg.LifeWindow
	if lifeWindow <= 0 {
		lifeWindow = defaultLifeWindow
	}

	bcConfig := bigcache.DefaultConfig(lifeWindow)
	bcConfig.CleanWindow = 0
	bcConfig.HardMaxCacheSize = cfg.Size // Size in MB
	bcConfig.Verbose = false
	if cfg.MaxEntrySize > 0 {
		bcConfig.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.Shards > 0 {
		bcConfig.Shards = cfg.Shards
	}

	cache, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	return &BigCache{
		cache:      cache,
		lifeWindow: lifeWindow,
		logger:     logger,
	}, nil
}

// LifeWindow is the longest an entry survives in the fast tier
func (bc *BigCache) LifeWindow() time.Duration {
	return bc.lifeWindow
}

// Get retrieves the stored entry, expired or not
func (bc *BigCache) Get(_ context.Context, key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			metrics.RecordCacheError("fast", "read")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal fast tier entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("fast", "decode")
		_ = bc.cache.Delete(key) // Remove corrupted entry
		return nil, false
	}

	return &entry, true
}

// Set stores the entry, replacing any previous value for key
func (bc *BigCache) Set(_ context.Context, key string, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		metrics.RecordCacheError("fast", "encode")
		return err
	}

	if err := bc.cache.Set(key, data); err != nil {
		bc.logger.Error("Failed to set fast tier entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("fast", "write")
		return err
	}
	return nil
}

// Delete removes entry from cache
func (bc *BigCache) Delete(_ context.Context, key string) {
	_ = bc.cache.Delete(key)
}

// Clear removes every entry
func (bc *BigCache) Clear(_ context.Context) error {
	return bc.cache.Reset()
}

// Range walks a snapshot of the cache. Keys are collected before fn runs so
// fn may delete entries.
func (bc *BigCache) Range(fn func(key string, entry *models.CacheEntry, size int) bool) {
	type item struct {
		key  string
		data []byte
	}

	var items []item
	it := bc.cache.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		items = append(items, item{key: info.Key(), data: info.Value()})
	}

	for _, it := range items {
		var entry models.CacheEntry
		if err := json.Unmarshal(it.data, &entry); err != nil {
			metrics.RecordCacheError("fast", "decode")
			_ = bc.cache.Delete(it.key)
			continue
		}
		if !fn(it.key, &entry, len(it.data)) {
			return
		}
	}
}

// Len returns the number of stored entries
func (bc *BigCache) Len() int {
	return bc.cache.Len()
}

// Capacity returns the bytes allocated by the underlying shards
func (bc *BigCache) Capacity() int {
	return bc.cache.Capacity()
}

// Close closes the cache
func (bc *BigCache) Close() error {
	return bc.cache.Close()
}
