package l2

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
)

// Ensure RedisKeyDbClient implements interfaces.KeyDbClient
var _ interfaces.KeyDbClient = (*RedisKeyDbClient)(nil)

// RedisKeyDbClient wraps redis.Client to implement KeyDbClient interface
type RedisKeyDbClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisKeyDbClient creates a client from a redis:// or rediss:// URL. Credentials
// and database number come from the URL; timeouts and pool size from keydbCfg.
func NewRedisKeyDbClient(keydbCfg *config.KeyDBConfig, keydbURL string, logger *zap.Logger) (*RedisKeyDbClient, error) {
	opts, err := redis.ParseURL(keydbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KeyDB URL: %w", err)
	}
	applyConnectionSettings(opts, keydbCfg)

	// Reachability is probed once by the tiered store, not here
	logger.Info("Created KeyDB client",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Bool("tls", opts.TLSConfig != nil),
		zap.Duration("connect_timeout", opts.DialTimeout),
		zap.Int("pool_size", opts.PoolSize))

	return &RedisKeyDbClient{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

// applyConnectionSettings overrides URL-derived options with configured values
func applyConnectionSettings(opts *redis.Options, cfg *config.KeyDBConfig) {
	if cfg.Connection.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.Connection.ConnectTimeout
	}
	if cfg.Connection.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.Connection.ReadTimeout
	}
	if cfg.Connection.SendTimeout > 0 {
		opts.WriteTimeout = cfg.Connection.SendTimeout
	}
	if cfg.Keepalive.PoolSize > 0 {
		opts.PoolSize = cfg.Keepalive.PoolSize
	}
	if cfg.Keepalive.MaxIdleTimeout > 0 {
		opts.IdleTimeout = cfg.Keepalive.MaxIdleTimeout
	}
}

// Get retrieves a value by key
func (r *RedisKeyDbClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.client.Get(ctx, key)
}

// Set stores a value with expiration
func (r *RedisKeyDbClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return r.client.Set(ctx, key, value, expiration)
}

// Del deletes one or more keys
func (r *RedisKeyDbClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return r.client.Del(ctx, keys...)
}

// Scan iterates keys matching a pattern
func (r *RedisKeyDbClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	return r.client.Scan(ctx, cursor, match, count)
}

// Ping tests connectivity
func (r *RedisKeyDbClient) Ping(ctx context.Context) *redis.StatusCmd {
	return r.client.Ping(ctx)
}

// Close closes the client connection
func (r *RedisKeyDbClient) Close() error {
	return r.client.Close()
}
