package l2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/config"
)

func TestNewRedisKeyDbClient(t *testing.T) {
	cfg := &config.KeyDBConfig{
		Connection: config.ConnectionConfig{
			ConnectTimeout: 2 * time.Second,
			SendTimeout:    3 * time.Second,
			ReadTimeout:    4 * time.Second,
		},
		Keepalive: config.KeepaliveConfig{PoolSize: 7, MaxIdleTimeout: 20 * time.Second},
	}

	t.Run("url with password and db", func(t *testing.T) {
		c, err := NewRedisKeyDbClient(cfg, "redis://:secret@keydb:6380/3", zaptest.NewLogger(t))
		require.NoError(t, err)
		defer c.Close()

		opts := c.client.Options()
		assert.Equal(t, "keydb:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
		assert.Equal(t, 3*time.Second, opts.WriteTimeout)
		assert.Equal(t, 4*time.Second, opts.ReadTimeout)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, 20*time.Second, opts.IdleTimeout)
	})

	t.Run("default port", func(t *testing.T) {
		c, err := NewRedisKeyDbClient(cfg, "redis://keydb", zaptest.NewLogger(t))
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "keydb:6379", c.client.Options().Addr)
	})

	t.Run("invalid scheme", func(t *testing.T) {
		_, err := NewRedisKeyDbClient(cfg, "http://keydb:6379", zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}
