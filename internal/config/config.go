package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "OFFLINE_PROXY_"

// Persistent tier backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

var validate = validator.New()

// Config represents the main configuration structure
type Config struct {
	Agent        AgentConfig        `yaml:"agent" envPrefix:"AGENT_"`
	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	FastTier     FastTierConfig     `yaml:"fast_tier" envPrefix:"FAST_TIER_"`
	Persistent   PersistentConfig   `yaml:"persistent" envPrefix:"PERSISTENT_"`
	KeyDB        KeyDBConfig        `yaml:"keydb" envPrefix:"KEYDB_"`
	Storage      StorageConfig      `yaml:"storage" envPrefix:"STORAGE_"`
	Tiered       TieredConfig       `yaml:"tiered" envPrefix:"TIERED_"`
	Queue        QueueConfig        `yaml:"queue" envPrefix:"QUEUE_"`
	Connectivity ConnectivityConfig `yaml:"connectivity" envPrefix:"CONNECTIVITY_"`
	Breaker      BreakerConfig      `yaml:"breaker" envPrefix:"BREAKER_"`
	Controller   ControllerConfig   `yaml:"controller" envPrefix:"CONTROLLER_"`
}

// AgentConfig configures the interception agent
type AgentConfig struct {
	// Version is the build tag used to derive partition names
	Version        string        `yaml:"version" env:"VERSION" validate:"required"`
	UpstreamURL    string        `yaml:"upstream_url" env:"UPSTREAM_URL" validate:"required,url"`
	Manifest       []string      `yaml:"manifest" env:"MANIFEST" envSeparator:","`
	RootPath       string        `yaml:"root_path" env:"ROOT_PATH"`
	RulesPath      string        `yaml:"rules_path" env:"RULES_PATH"`
	MaxEntryAge    time.Duration `yaml:"max_entry_age" env:"MAX_ENTRY_AGE" validate:"gte=0"`
	InstallTimeout time.Duration `yaml:"install_timeout" env:"INSTALL_TIMEOUT" validate:"gte=0"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" validate:"gte=0"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// FastTierConfig configures the in-process cache tier
type FastTierConfig struct {
	Size         int           `yaml:"size" env:"SIZE" validate:"gte=0"` // MB
	MaxEntrySize int           `yaml:"max_entry_size" env:"MAX_ENTRY_SIZE" validate:"gte=0"`
	Shards       int           `yaml:"shards" env:"SHARDS" validate:"gte=0"`
	LifeWindow   time.Duration `yaml:"life_window" env:"LIFE_WINDOW" validate:"gte=0"` // longest an entry is kept, whatever its TTL
}

// PersistentConfig selects the persistent cache tier
type PersistentConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" validate:"omitempty,oneof=redis sqlite none"`
}

// KeyDBConfig configures the Redis/KeyDB persistent tier
type KeyDBConfig struct {
	URL        string           `yaml:"url" env:"URL"`
	KeyPrefix  string           `yaml:"key_prefix" env:"KEY_PREFIX"`
	Connection ConnectionConfig `yaml:"connection" envPrefix:"CONNECTION_"`
	Keepalive  KeepaliveConfig  `yaml:"keepalive" envPrefix:"KEEPALIVE_"`
}

// ConnectionConfig holds KeyDB timeouts
type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	SendTimeout    time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
}

// KeepaliveConfig holds KeyDB pool settings
type KeepaliveConfig struct {
	PoolSize       int           `yaml:"pool_size" env:"POOL_SIZE" validate:"gte=0"`
	MaxIdleTimeout time.Duration `yaml:"max_idle_timeout" env:"MAX_IDLE_TIMEOUT"`
}

// StorageConfig configures the SQLite database holding partitions and the offline queue
type StorageConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// TieredConfig configures the tiered cache store
type TieredConfig struct {
	DefaultTTL        time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL" validate:"gte=0"`
	CompressThreshold int           `yaml:"compress_threshold" env:"COMPRESS_THRESHOLD" validate:"gte=0"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL" validate:"gte=0"`
	StatsInterval     time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL" validate:"gte=0"`
}

// QueueConfig configures the offline write queue
type QueueConfig struct {
	SyncURL         string        `yaml:"sync_url" env:"SYNC_URL" validate:"omitempty,url"`
	PruneAge        time.Duration `yaml:"prune_age" env:"PRUNE_AGE" validate:"gte=0"`
	PruneInterval   time.Duration `yaml:"prune_interval" env:"PRUNE_INTERVAL" validate:"gte=0"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"DELIVERY_TIMEOUT" validate:"gte=0"`
}

// ConnectivityConfig configures the upstream reachability probe
type ConnectivityConfig struct {
	ProbePath string        `yaml:"probe_path" env:"PROBE_PATH"`
	Interval  time.Duration `yaml:"interval" env:"INTERVAL" validate:"gte=0"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
}

// BreakerConfig configures the upstream circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" env:"MAX_REQUESTS"`
	Interval         time.Duration `yaml:"interval" env:"INTERVAL"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	FailureThreshold float64       `yaml:"failure_threshold" env:"FAILURE_THRESHOLD" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" env:"MIN_REQUESTS"`
}

// ControllerConfig configures the page-side agent controller
type ControllerConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL" validate:"gte=0"`
}

// LoadConfig loads configuration from file path, then applies environment overrides
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if len(c.Agent.Manifest) == 0 {
		c.Agent.Manifest = []string{"/", "/static/js/bundle.js", "/static/css/main.css", "/manifest.json"}
	}
	if c.Agent.RootPath == "" {
		c.Agent.RootPath = "/"
	}
	if c.Agent.MaxEntryAge == 0 {
		c.Agent.MaxEntryAge = 7 * 24 * time.Hour
	}
	if c.Agent.InstallTimeout == 0 {
		c.Agent.InstallTimeout = 30 * time.Second
	}
	if c.Agent.FetchTimeout == 0 {
		c.Agent.FetchTimeout = 10 * time.Second
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}

	if c.FastTier.Size == 0 {
		c.FastTier.Size = 100
	}
	if c.FastTier.MaxEntrySize == 0 {
		c.FastTier.MaxEntrySize = 1024 * 1024
	}
	if c.FastTier.Shards == 0 {
		c.FastTier.Shards = 64
	}

	if c.Persistent.Backend == "" {
		c.Persistent.Backend = BackendSQLite
	}

	if c.KeyDB.KeyPrefix == "" {
		c.KeyDB.KeyPrefix = "tiered:"
	}
	if c.KeyDB.Connection.ConnectTimeout == 0 {
		c.KeyDB.Connection.ConnectTimeout = time.Second
	}
	if c.KeyDB.Connection.SendTimeout == 0 {
		c.KeyDB.Connection.SendTimeout = time.Second
	}
	if c.KeyDB.Connection.ReadTimeout == 0 {
		c.KeyDB.Connection.ReadTimeout = time.Second
	}
	if c.KeyDB.Keepalive.PoolSize == 0 {
		c.KeyDB.Keepalive.PoolSize = 10
	}
	if c.KeyDB.Keepalive.MaxIdleTimeout == 0 {
		c.KeyDB.Keepalive.MaxIdleTimeout = 10 * time.Second
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/app/data/offline-proxy.db"
	}

	if c.Tiered.DefaultTTL == 0 {
		c.Tiered.DefaultTTL = 300_000 * time.Millisecond
	}
	if c.Tiered.CompressThreshold == 0 {
		c.Tiered.CompressThreshold = 1024
	}
	if c.Tiered.CleanupInterval == 0 {
		c.Tiered.CleanupInterval = 5 * time.Minute
	}
	if c.Tiered.StatsInterval == 0 {
		c.Tiered.StatsInterval = 30 * time.Second
	}
	if c.FastTier.LifeWindow == 0 {
		c.FastTier.LifeWindow = 30 * 24 * time.Hour
	}
	if c.FastTier.LifeWindow < c.Tiered.DefaultTTL {
		c.FastTier.LifeWindow = c.Tiered.DefaultTTL
	}

	if c.Queue.PruneAge == 0 {
		c.Queue.PruneAge = 7 * 24 * time.Hour
	}
	if c.Queue.PruneInterval == 0 {
		c.Queue.PruneInterval = time.Hour
	}
	if c.Queue.DeliveryTimeout == 0 {
		c.Queue.DeliveryTimeout = 10 * time.Second
	}

	if c.Connectivity.ProbePath == "" {
		c.Connectivity.ProbePath = "/health"
	}
	if c.Connectivity.Interval == 0 {
		c.Connectivity.Interval = 15 * time.Second
	}
	if c.Connectivity.Timeout == 0 {
		c.Connectivity.Timeout = 3 * time.Second
	}

	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 5
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = 30 * time.Second
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 0.8
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 5
	}

	if c.Controller.CleanupInterval == 0 {
		c.Controller.CleanupInterval = time.Hour
	}
}

// SyncURL returns the base URL used to replay queued mutations
func (c *Config) SyncURL() string {
	if c.Queue.SyncURL != "" {
		return c.Queue.SyncURL
	}
	return c.Agent.UpstreamURL + "/api/sync"
}
