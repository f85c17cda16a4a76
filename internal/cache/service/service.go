package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-offline-proxy/internal/cache/tiered"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/scheduler"
)

// Loader produces a fresh value when the cache has none
type Loader func(ctx context.Context) (any, error)

// CacheService handles cache-then-load operations on top of the tiered store
type CacheService struct {
	store   *tiered.Store
	group   singleflight.Group
	logger  *zap.Logger
	metrics *scheduler.Scheduler
}

// NewCacheService creates a new cache service instance
func NewCacheService(store *tiered.Store, statsInterval time.Duration, logger *zap.Logger) *CacheService {
	s := &CacheService{
		store:  store,
		logger: logger,
	}
	s.metrics = scheduler.New(statsInterval, s.updateCacheMetrics)
	return s
}

// Start begins periodic stats collection
func (s *CacheService) Start() {
	s.updateCacheMetrics()
	s.metrics.Start()
}

// Stop ends periodic stats collection
func (s *CacheService) Stop() {
	s.metrics.Stop()
}

// Store returns the underlying tiered store
func (s *CacheService) Store() *tiered.Store {
	return s.store
}

// GetOrLoad returns the cached JSON for key or calls loader, stores its result
// and returns it. Concurrent callers for the same key share one loader call.
func (s *CacheService) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader) (json.RawMessage, error) {
	data, found, err := s.store.GetRaw(ctx, key)
	if err != nil {
		s.logger.Warn("Cached value unreadable, reloading", zap.String("key", key), zap.Error(err))
	}
	if found {
		return data, nil
	}
	return s.load(ctx, key, ttl, loader)
}

// Refresh bypasses the cache, reloads key and stores the result
func (s *CacheService) Refresh(ctx context.Context, key string, ttl time.Duration, loader Loader) (json.RawMessage, error) {
	return s.load(ctx, key, ttl, loader)
}

func (s *CacheService) load(ctx context.Context, key string, ttl time.Duration, loader Loader) (json.RawMessage, error) {
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode loaded value: %w", err)
		}
		if err := s.store.Set(ctx, key, json.RawMessage(raw), ttl); err != nil {
			s.logger.Warn("Failed to cache loaded value", zap.String("key", key), zap.Error(err))
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return v.(json.RawMessage), nil
}

// updateCacheMetrics publishes tier usage gauges
func (s *CacheService) updateCacheMetrics() {
	stats := s.store.Stats()
	metrics.UpdateTierUsage("fast", stats.FastEntries, stats.FastBytes)
	metrics.SetPersistentAvailable(stats.PersistentAvailable)
}
