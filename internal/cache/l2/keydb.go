package l2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// Ensure KeyDBCache implements the persistent tier contracts
var (
	_ interfaces.Tier   = (*KeyDBCache)(nil)
	_ interfaces.Pinger = (*KeyDBCache)(nil)
)

const scanBatch = 500

// KeyDBCache implements the persistent tier using Redis/KeyDB
type KeyDBCache struct {
	client interfaces.KeyDbClient
	config *config.KeyDBConfig
	logger *zap.Logger
}

// NewKeyDBCache creates a new KeyDBCache instance with provided client
func NewKeyDBCache(cfg *config.KeyDBConfig, client interfaces.KeyDbClient, logger *zap.Logger) *KeyDBCache {
	return &KeyDBCache{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func (kc *KeyDBCache) key(key string) string {
	return kc.config.KeyPrefix + key
}

func (kc *KeyDBCache) readTimeout() time.Duration {
	if kc.config.Connection.ReadTimeout > 0 {
		return kc.config.Connection.ReadTimeout
	}
	return time.Second
}

func (kc *KeyDBCache) sendTimeout() time.Duration {
	if kc.config.Connection.SendTimeout > 0 {
		return kc.config.Connection.SendTimeout
	}
	return time.Second
}

// Get retrieves the stored entry, expired or not
func (kc *KeyDBCache) Get(ctx context.Context, key string) (*models.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(ctx, kc.readTimeout())
	defer cancel()

	data, err := kc.client.Get(ctx, kc.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			kc.logger.Error("Persistent tier get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("persistent", "read")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		kc.logger.Error("Failed to unmarshal persistent tier entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("persistent", "decode")
		kc.client.Del(ctx, kc.key(key))
		return nil, false
	}

	return &entry, true
}

// Set stores the entry; the key expires with the entry TTL
func (kc *KeyDBCache) Set(ctx context.Context, key string, entry *models.CacheEntry) error {
	ctx, cancel := context.WithTimeout(ctx, kc.sendTimeout())
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal persistent tier entry: %w", err)
	}

	expiration := time.Duration(entry.TTL) * time.Millisecond
	if expiration <= 0 {
		expiration = time.Millisecond
	}

	if err := kc.client.Set(ctx, kc.key(key), data, expiration).Err(); err != nil {
		metrics.RecordCacheError("persistent", "write")
		return fmt.Errorf("failed to set persistent tier entry: %w", err)
	}
	return nil
}

// Delete removes entry from KeyDB cache
func (kc *KeyDBCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, kc.sendTimeout())
	defer cancel()

	if err := kc.client.Del(ctx, kc.key(key)).Err(); err != nil {
		kc.logger.Error("Failed to delete persistent tier entry", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every key under the configured prefix
func (kc *KeyDBCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := kc.client.Scan(ctx, cursor, kc.config.KeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan persistent tier: %w", err)
		}
		if len(keys) > 0 {
			if err := kc.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear persistent tier: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping tests connectivity
func (kc *KeyDBCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, kc.readTimeout())
	defer cancel()
	return kc.client.Ping(ctx).Err()
}

// Close closes the KeyDB connection
func (kc *KeyDBCache) Close() error {
	return kc.client.Close()
}
