package tiered

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/scheduler"
)

const (
	levelFast       = "fast"
	levelPersistent = "persistent"

	// DefaultCompressThreshold is the encoded size above which values are compressed
	DefaultCompressThreshold = 1024
	// DefaultCleanupInterval is how often the fast tier is swept
	DefaultCleanupInterval = 5 * time.Minute
)

// Options tunes the tiered store
type Options struct {
	DefaultTTL        time.Duration
	CompressThreshold int
	CleanupInterval   time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = models.DefaultTTL
	}
	if o.CompressThreshold <= 0 {
		o.CompressThreshold = DefaultCompressThreshold
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
}

// Stats describes the current state of the store
type Stats struct {
	FastEntries         int   `json:"fast_entries"`
	FastBytes           int64 `json:"fast_bytes"`
	PersistentAvailable bool  `json:"persistent_available"`
}

// Store is a two-level key/value cache. Reads go fast tier first and promote
// persistent hits; writes go to both tiers.
type Store struct {
	fast                interfaces.ScannableTier
	persistent          interfaces.Tier
	persistentAvailable bool
	compressor          interfaces.Compressor
	clock               clock.Clock
	opts                Options
	logger              *zap.Logger
	cleanup             *scheduler.Scheduler
}

// New creates a store. When persistent implements interfaces.Pinger it is
// probed once here; a failed probe leaves the store running on the fast tier only.
func New(
	ctx context.Context,
	fast interfaces.ScannableTier,
	persistent interfaces.Tier,
	compressor interfaces.Compressor,
	clk clock.Clock,
	opts Options,
	logger *zap.Logger,
) *Store {
	opts.applyDefaults()

	s := &Store{
		fast:       fast,
		persistent: persistent,
		compressor: compressor,
		clock:      clk,
		opts:       opts,
		logger:     logger,
	}
	s.persistentAvailable = s.probePersistent(ctx)
	metrics.SetPersistentAvailable(s.persistentAvailable)

	s.cleanup = scheduler.NewWithClock(opts.CleanupInterval, func() {
		if n := s.Cleanup(); n > 0 {
			s.logger.Debug("Swept expired fast tier entries", zap.Int("evicted", n))
		}
	}, clk)

	return s
}

func (s *Store) probePersistent(ctx context.Context) bool {
	if s.persistent == nil {
		s.logger.Warn("Persistent cache tier not configured, using fast tier only")
		return false
	}
	pinger, ok := s.persistent.(interfaces.Pinger)
	if !ok {
		return true
	}
	if err := pinger.Ping(ctx); err != nil {
		s.logger.Warn("Persistent cache tier unavailable, using fast tier only", zap.Error(err))
		return false
	}
	return true
}

// Start begins the periodic fast tier sweep. It is a no-op when already running.
func (s *Store) Start() {
	s.cleanup.Start()
}

// Stop ends the periodic sweep
func (s *Store) Stop() {
	s.cleanup.Stop()
}

// PersistentAvailable reports the capability flag set at construction
func (s *Store) PersistentAvailable() bool {
	return s.persistentAvailable
}

// Get decodes the value stored under key into dest. It reports false when the
// key is absent or expired in both tiers.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, found, err := s.GetRaw(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.Delete(ctx, key)
		return false, fmt.Errorf("failed to decode cached value for %q: %w", key, err)
	}
	return true, nil
}

// GetRaw returns the JSON encoding of the value stored under key
func (s *Store) GetRaw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	timer := metrics.TimeCacheOperation("get")
	defer timer()
	metrics.RecordCacheRequest("store")

	entry, found := s.lookup(ctx, key)
	if !found {
		metrics.RecordCacheMiss("store")
		return nil, false, nil
	}

	data, err := s.decode(entry)
	if err != nil {
		s.Delete(ctx, key)
		return nil, false, fmt.Errorf("failed to read cached value for %q: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) lookup(ctx context.Context, key string) (*models.CacheEntry, bool) {
	now := s.clock.Now()

	if entry, ok := s.fast.Get(ctx, key); ok {
		if !entry.IsExpired(now) {
			metrics.RecordCacheHit(levelFast)
			return entry, true
		}
		s.fast.Delete(ctx, key)
		metrics.RecordCacheEviction(levelFast, "read", 1)
	}

	if !s.persistentAvailable {
		return nil, false
	}

	entry, ok := s.persistent.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if entry.IsExpired(now) {
		s.persistent.Delete(ctx, key)
		metrics.RecordCacheEviction(levelPersistent, "read", 1)
		return nil, false
	}

	// Promote with the original timestamp so expiry stays aligned across tiers
	if err := s.fast.Set(ctx, key, entry); err != nil {
		s.logger.Debug("Failed to promote entry to fast tier", zap.String("key", key), zap.Error(err))
	}
	metrics.RecordCacheHit(levelPersistent)
	return entry, true
}

// Set stores value under key in both tiers. A ttl <= 0 uses the default TTL.
// Persistent tier failures are logged and not returned.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	timer := metrics.TimeCacheOperation("set")
	defer timer()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	entry := models.NewCacheEntry(raw, s.clock.Now(), ttl)
	s.maybeCompress(key, entry)

	if err := s.fast.Set(ctx, key, entry); err != nil {
		return fmt.Errorf("failed to write %q to fast tier: %w", key, err)
	}

	if s.persistentAvailable {
		if err := s.persistent.Set(ctx, key, entry); err != nil {
			s.logger.Warn("Failed to write persistent cache tier", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) maybeCompress(key string, entry *models.CacheEntry) {
	if s.compressor == nil || len(entry.Data) <= s.opts.CompressThreshold {
		return
	}
	compressed, err := s.compressor.Compress(entry.Data)
	if err != nil {
		s.logger.Warn("Failed to compress cache value, storing plain", zap.String("key", key), zap.Error(err))
		return
	}
	// Compressed bytes travel as a base64 JSON string so the entry stays valid JSON
	encoded, err := json.Marshal(compressed)
	if err != nil {
		return
	}
	entry.Data = encoded
	entry.Compressed = true
}

func (s *Store) decode(entry *models.CacheEntry) (json.RawMessage, error) {
	if !entry.Compressed {
		return entry.Data, nil
	}
	if s.compressor == nil {
		return nil, errors.New("entry is compressed but no compressor is configured")
	}
	var compressed []byte
	if err := json.Unmarshal(entry.Data, &compressed); err != nil {
		return nil, err
	}
	return s.compressor.Decompress(compressed)
}

// Delete removes key from both tiers
func (s *Store) Delete(ctx context.Context, key string) {
	s.fast.Delete(ctx, key)
	if s.persistentAvailable {
		s.persistent.Delete(ctx, key)
	}
}

// Cleanup evicts expired fast tier entries and returns how many were removed.
// The persistent tier expires keys on its own.
func (s *Store) Cleanup() int {
	now := s.clock.Now()
	ctx := context.Background()

	var expired []string
	s.fast.Range(func(key string, entry *models.CacheEntry, _ int) bool {
		if entry.IsExpired(now) {
			expired = append(expired, key)
		}
		return true
	})

	for _, key := range expired {
		s.fast.Delete(ctx, key)
	}
	metrics.RecordCacheEviction(levelFast, "sweep", len(expired))
	return len(expired)
}

// Clear empties both tiers
func (s *Store) Clear(ctx context.Context) error {
	if err := s.fast.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear fast tier: %w", err)
	}
	if s.persistentAvailable {
		if err := s.persistent.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear persistent tier: %w", err)
		}
	}
	return nil
}

// Stats returns fast tier usage and persistent tier availability
func (s *Store) Stats() Stats {
	stats := Stats{PersistentAvailable: s.persistentAvailable}
	s.fast.Range(func(_ string, _ *models.CacheEntry, size int) bool {
		stats.FastEntries++
		stats.FastBytes += int64(size)
		return true
	})
	return stats
}

// Fetch reads key from store and decodes it as T
func Fetch[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var value T
	found, err := s.Get(ctx, key, &value)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return value, true, nil
}
