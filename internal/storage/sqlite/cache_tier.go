package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure CacheTier implements the persistent tier contracts
var (
	_ interfaces.Tier   = (*CacheTier)(nil)
	_ interfaces.Pinger = (*CacheTier)(nil)
)

// CacheTier exposes the cache_entries table as the persistent tier of the tiered store
type CacheTier struct {
	store *Store
}

// CacheTier returns the persistent cache tier view of the store
func (s *Store) CacheTier() *CacheTier {
	return &CacheTier{store: s}
}

// Get retrieves the stored entry, expired or not
func (c *CacheTier) Get(ctx context.Context, key string) (*models.CacheEntry, bool) {
	var raw string
	err := c.store.sqlDB.QueryRowContext(ctx,
		`SELECT entry FROM cache_entries WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.store.logger.Error("Persistent tier get error", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.store.logger.Error("Failed to unmarshal persistent tier entry", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return nil, false
	}
	return &entry, true
}

// Set stores the entry
func (c *CacheTier) Set(ctx context.Context, key string, entry *models.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal persistent tier entry: %w", err)
	}
	if _, err := c.store.sqlDB.ExecContext(ctx, `
INSERT INTO cache_entries (key, entry, expires_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET entry = excluded.entry, expires_at = excluded.expires_at
`, key, string(raw), entry.Timestamp+entry.TTL); err != nil {
		return fmt.Errorf("failed to set persistent tier entry: %w", err)
	}
	return nil
}

// Delete removes key
func (c *CacheTier) Delete(ctx context.Context, key string) {
	if _, err := c.store.sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		c.store.logger.Error("Failed to delete persistent tier entry", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every entry
func (c *CacheTier) Clear(ctx context.Context) error {
	if _, err := c.store.sqlDB.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear persistent tier: %w", err)
	}
	return nil
}

// PurgeExpired removes entries whose expiry is before nowMillis
func (c *CacheTier) PurgeExpired(ctx context.Context, nowMillis int64) (int64, error) {
	res, err := c.store.sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at < ?`, nowMillis)
	if err != nil {
		return 0, fmt.Errorf("failed to purge persistent tier: %w", err)
	}
	return res.RowsAffected()
}

// Ping tests connectivity
func (c *CacheTier) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
