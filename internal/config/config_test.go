package config

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func createTestConfigFile(t *testing.T, content string) string {
	tmpFile, err := os.CreateTemp("", "offline_proxy_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}

	if err := tmpFile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpFile.Name()
}

func TestLoadConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)

	validConfig := `
agent:
  version: v2
  upstream_url: http://backend:3000
  manifest:
    - /
    - /app.js
  max_entry_age: 48h

fast_tier:
  size: 200

persistent:
  backend: redis

keydb:
  url: redis://keydb:6379/1
  connection:
    connect_timeout: 2s
    send_timeout: 2s
    read_timeout: 2s
  keepalive:
    pool_size: 20
    max_idle_timeout: 20s

tiered:
  default_ttl: 1m
  cleanup_interval: 10m
`

	configFile := createTestConfigFile(t, validConfig)
	defer os.Remove(configFile)

	config, err := LoadConfig(configFile, logger)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Agent.Version != "v2" {
		t.Errorf("LoadConfig() Agent.Version = %v, want v2", config.Agent.Version)
	}
	if len(config.Agent.Manifest) != 2 || config.Agent.Manifest[1] != "/app.js" {
		t.Errorf("LoadConfig() Agent.Manifest = %v, want [/ /app.js]", config.Agent.Manifest)
	}
	if config.Agent.MaxEntryAge != 48*time.Hour {
		t.Errorf("LoadConfig() Agent.MaxEntryAge = %v, want 48h", config.Agent.MaxEntryAge)
	}
	if config.FastTier.Size != 200 {
		t.Errorf("LoadConfig() FastTier.Size = %v, want 200", config.FastTier.Size)
	}
	if config.Persistent.Backend != BackendRedis {
		t.Errorf("LoadConfig() Persistent.Backend = %v, want redis", config.Persistent.Backend)
	}
	if config.KeyDB.Connection.ConnectTimeout != 2*time.Second {
		t.Errorf("LoadConfig() KeyDB.Connection.ConnectTimeout = %v, want 2s", config.KeyDB.Connection.ConnectTimeout)
	}
	if config.KeyDB.Keepalive.PoolSize != 20 {
		t.Errorf("LoadConfig() KeyDB.Keepalive.PoolSize = %v, want 20", config.KeyDB.Keepalive.PoolSize)
	}
	if config.Tiered.DefaultTTL != time.Minute {
		t.Errorf("LoadConfig() Tiered.DefaultTTL = %v, want 1m", config.Tiered.DefaultTTL)
	}
}

func TestLoadConfig_WithDefaults(t *testing.T) {
	logger := zaptest.NewLogger(t)

	minimalConfig := `
agent:
  version: v1
  upstream_url: http://backend:3000
`

	configFile := createTestConfigFile(t, minimalConfig)
	defer os.Remove(configFile)

	config, err := LoadConfig(configFile, logger)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(config.Agent.Manifest) != 4 {
		t.Errorf("LoadConfig() Agent.Manifest = %v, want 4 default assets", config.Agent.Manifest)
	}
	if config.Agent.MaxEntryAge != 7*24*time.Hour {
		t.Errorf("LoadConfig() Agent.MaxEntryAge = %v, want 168h (default)", config.Agent.MaxEntryAge)
	}
	if config.Persistent.Backend != BackendSQLite {
		t.Errorf("LoadConfig() Persistent.Backend = %v, want sqlite (default)", config.Persistent.Backend)
	}
	if config.Tiered.DefaultTTL != 300*time.Second {
		t.Errorf("LoadConfig() Tiered.DefaultTTL = %v, want 5m (default)", config.Tiered.DefaultTTL)
	}
	if config.Tiered.CompressThreshold != 1024 {
		t.Errorf("LoadConfig() Tiered.CompressThreshold = %v, want 1024 (default)", config.Tiered.CompressThreshold)
	}
	if config.Tiered.CleanupInterval != 5*time.Minute {
		t.Errorf("LoadConfig() Tiered.CleanupInterval = %v, want 5m (default)", config.Tiered.CleanupInterval)
	}
	if config.Queue.PruneAge != 7*24*time.Hour {
		t.Errorf("LoadConfig() Queue.PruneAge = %v, want 168h (default)", config.Queue.PruneAge)
	}
	if config.Controller.CleanupInterval != time.Hour {
		t.Errorf("LoadConfig() Controller.CleanupInterval = %v, want 1h (default)", config.Controller.CleanupInterval)
	}
	if config.FastTier.LifeWindow != 30*24*time.Hour {
		t.Errorf("LoadConfig() FastTier.LifeWindow = %v, want 720h (default)", config.FastTier.LifeWindow)
	}
	if config.SyncURL() != "http://backend:3000/api/sync" {
		t.Errorf("SyncURL() = %v, want upstream sync endpoint", config.SyncURL())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("OFFLINE_PROXY_AGENT_VERSION", "v9")
	t.Setenv("OFFLINE_PROXY_PERSISTENT_BACKEND", "none")
	t.Setenv("OFFLINE_PROXY_AGENT_MANIFEST", "/,/index.js")

	configFile := createTestConfigFile(t, `
agent:
  version: v1
  upstream_url: http://backend:3000
`)
	defer os.Remove(configFile)

	config, err := LoadConfig(configFile, logger)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Agent.Version != "v9" {
		t.Errorf("LoadConfig() Agent.Version = %v, want v9 from env", config.Agent.Version)
	}
	if config.Persistent.Backend != BackendNone {
		t.Errorf("LoadConfig() Persistent.Backend = %v, want none from env", config.Persistent.Backend)
	}
	if len(config.Agent.Manifest) != 2 {
		t.Errorf("LoadConfig() Agent.Manifest = %v, want 2 entries from env", config.Agent.Manifest)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := LoadConfig("/nonexistent/file.yaml", logger)
	if err == nil {
		t.Fatal("LoadConfig() should return error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	logger := zaptest.NewLogger(t)

	invalidConfig := `
agent:
  version: v1
  invalid yaml syntax [
`

	configFile := createTestConfigFile(t, invalidConfig)
	defer os.Remove(configFile)

	_, err := LoadConfig(configFile, logger)
	if err == nil {
		t.Fatal("LoadConfig() should return error for invalid YAML")
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing version",
			content: `
agent:
  upstream_url: http://backend:3000
`,
		},
		{
			name: "invalid upstream",
			content: `
agent:
  version: v1
  upstream_url: not a url
`,
		},
		{
			name: "unknown backend",
			content: `
agent:
  version: v1
  upstream_url: http://backend:3000
persistent:
  backend: memcached
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createTestConfigFile(t, tt.content)
			defer os.Remove(configFile)

			if _, err := LoadConfig(configFile, logger); err == nil {
				t.Fatal("LoadConfig() should return a validation error")
			}
		})
	}
}

func TestConfig_PartialDefaults(t *testing.T) {
	config := &Config{
		FastTier: FastTierConfig{
			Size: 250, // Custom value
		},
		KeyDB: KeyDBConfig{
			Connection: ConnectionConfig{
				ConnectTimeout: 2 * time.Second, // Custom value
			},
		},
	}

	config.applyDefaults()

	// Custom values should be preserved
	if config.FastTier.Size != 250 {
		t.Errorf("applyDefaults() should preserve custom FastTier.Size = %v", config.FastTier.Size)
	}
	if config.KeyDB.Connection.ConnectTimeout != 2*time.Second {
		t.Errorf("applyDefaults() should preserve custom ConnectTimeout = %v", config.KeyDB.Connection.ConnectTimeout)
	}

	// Missing values should get defaults
	if config.KeyDB.Connection.SendTimeout != time.Second {
		t.Errorf("applyDefaults() KeyDB.Connection.SendTimeout = %v, want 1s (default)", config.KeyDB.Connection.SendTimeout)
	}
	if config.KeyDB.Keepalive.PoolSize != 10 {
		t.Errorf("applyDefaults() KeyDB.Keepalive.PoolSize = %v, want 10 (default)", config.KeyDB.Keepalive.PoolSize)
	}
}

func TestConfig_LifeWindowCoversDefaultTTL(t *testing.T) {
	config := &Config{
		FastTier: FastTierConfig{LifeWindow: time.Hour},
		Tiered:   TieredConfig{DefaultTTL: 90 * 24 * time.Hour},
	}

	config.applyDefaults()

	if config.FastTier.LifeWindow != 90*24*time.Hour {
		t.Errorf("applyDefaults() FastTier.LifeWindow = %v, want the default TTL 2160h", config.FastTier.LifeWindow)
	}
}
