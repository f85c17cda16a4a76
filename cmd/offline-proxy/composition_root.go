package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-offline-proxy/internal/agent"
	"go-offline-proxy/internal/cache"
	"go-offline-proxy/internal/cache/l1"
	"go-offline-proxy/internal/cache/l2"
	"go-offline-proxy/internal/cache/noop"
	"go-offline-proxy/internal/cache/service"
	"go-offline-proxy/internal/cache/tiered"
	"go-offline-proxy/internal/cache_rules"
	"go-offline-proxy/internal/compress"
	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/connectivity"
	"go-offline-proxy/internal/controller"
	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/httpserver"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/lifecycle"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/network"
	"go-offline-proxy/internal/offline"
	"go-offline-proxy/internal/scheduler"
	"go-offline-proxy/internal/storage/sqlite"
)

// CompositionRoot holds all application dependencies and provides a centralized
// place for dependency injection and service initialization.
type CompositionRoot struct {
	// Configuration
	Config     *config.Config
	Logger     *zap.Logger
	Classifier interfaces.ResourceClassifier
	KeyBuilder interfaces.KeyBuilder
	Clock      clock.Clock
	Bus        *events.Bus

	// Storage
	Storage        *sqlite.Store
	FastTier       *l1.BigCache
	PersistentTier interfaces.Tier
	Compressor     *compress.Zstd
	TieredStore    *tiered.Store
	CacheService   *service.CacheService

	// Upstream and offline handling
	Client  *network.Client
	Monitor *connectivity.Monitor
	Queue   *offline.Queue

	// Interception agent
	Agents     *agentFactory
	Host       *lifecycle.Host
	Controller *controller.Controller

	HTTPServer    *httpserver.Server
	ConfigWatcher *config.Watcher

	purge    *scheduler.Scheduler
	detachQ  func()
	shutdown []func()
}

// NewCompositionRoot creates and initializes all application dependencies.
//
// Initialization order:
// 1. Logger and configuration
// 2. Routing rules and key builder
// 3. Storage (SQLite, fast tier, persistent tier, tiered store)
// 4. Upstream client, connectivity monitor and offline queue
// 5. Agent host and controller
// 6. HTTP server
func NewCompositionRoot(ctx context.Context) (*CompositionRoot, error) {
	root := &CompositionRoot{Clock: clock.New()}

	// Initialize logger first
	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"load configuration", root.loadConfig},
		{"load routing rules", root.loadRoutingRules},
		{"initialize storage", root.initStorage},
		{"initialize cache components", root.initCacheComponents},
		{"initialize upstream", root.initUpstream},
		{"initialize offline queue", root.initQueue},
		{"initialize agent", root.initAgent},
		{"initialize HTTP server", root.initHTTPServer},
		{"watch configuration", root.initConfigWatcher},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			_ = root.Cleanup()
			return nil, fmt.Errorf("failed to %s: %w", step.name, err)
		}
	}

	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	r.Bus = events.NewBus(logger)
	return nil
}

// loadConfig loads the application configuration
func (r *CompositionRoot) loadConfig(context.Context) error {
	cfg, err := config.LoadConfig(GetConfigPath(), r.Logger)
	if err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

// loadRoutingRules loads the resource routing rules
func (r *CompositionRoot) loadRoutingRules(context.Context) error {
	rules, err := cache_rules.LoadRoutingRules(r.Config.Agent.RulesPath, r.Logger)
	if err != nil {
		return err
	}
	r.Classifier = cache_rules.NewClassifier(r.Logger, rules)
	r.KeyBuilder = cache.NewKeyBuilder()
	return nil
}

// initStorage opens the SQLite database holding partitions and the offline queue
func (r *CompositionRoot) initStorage(ctx context.Context) error {
	store, err := sqlite.Open(ctx, r.Config.Storage.Path, r.Logger)
	if err != nil {
		return err
	}
	r.Storage = store
	r.addShutdown(func() {
		if err := store.Close(); err != nil {
			r.Logger.Error("Failed to close storage", zap.Error(err))
		}
	})
	return nil
}

// initCacheComponents initializes the tiered cache store
func (r *CompositionRoot) initCacheComponents(ctx context.Context) error {
	fast, err := l1.NewBigCache(&r.Config.FastTier, r.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize fast tier: %w", err)
	}
	r.FastTier = fast
	r.addShutdown(func() {
		if err := fast.Close(); err != nil {
			r.Logger.Error("Failed to close fast tier", zap.Error(err))
		}
	})
	r.Logger.Info("BigCache fast tier initialized", zap.Int("size_mb", r.Config.FastTier.Size))

	r.initPersistentTier()

	compressor, err := compress.NewZstd()
	if err != nil {
		return fmt.Errorf("failed to initialize compressor: %w", err)
	}
	r.Compressor = compressor
	r.addShutdown(compressor.Close)

	r.TieredStore = tiered.New(ctx, r.FastTier, r.PersistentTier, compressor, r.Clock, tiered.Options{
		DefaultTTL:        r.Config.Tiered.DefaultTTL,
		CompressThreshold: r.Config.Tiered.CompressThreshold,
		CleanupInterval:   r.Config.Tiered.CleanupInterval,
	}, r.Logger)
	r.CacheService = service.NewCacheService(r.TieredStore, r.Config.Tiered.StatsInterval, r.Logger)
	return nil
}

// initPersistentTier selects the persistent tier backend
func (r *CompositionRoot) initPersistentTier() {
	switch r.Config.Persistent.Backend {
	case config.BackendRedis:
		keydbURL := GetKeyDBURL(&r.Config.KeyDB, r.Logger)

		// Create KeyDB client
		keydbClient, err := l2.NewRedisKeyDbClient(&r.Config.KeyDB, keydbURL, r.Logger)
		if err != nil {
			r.Logger.Warn("Failed to connect to KeyDB, falling back to no persistent tier",
				zap.String("keydb_url", keydbURL),
				zap.Error(err))
			r.PersistentTier = noop.NewNoOpCache()
			return
		}

		keydb := l2.NewKeyDBCache(&r.Config.KeyDB, keydbClient, r.Logger)
		r.PersistentTier = keydb
		r.addShutdown(func() {
			if err := keydb.Close(); err != nil {
				r.Logger.Error("Failed to close KeyDB tier", zap.Error(err))
			}
		})
		r.Logger.Info("KeyDB persistent tier initialized", zap.String("keydb_url", keydbURL))
	case config.BackendSQLite:
		tier := r.Storage.CacheTier()
		r.PersistentTier = tier
		r.purge = scheduler.NewWithClock(r.Config.Tiered.CleanupInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := tier.PurgeExpired(ctx, r.Clock.Now().UnixMilli())
			if err != nil {
				r.Logger.Warn("Failed to purge expired persistent entries", zap.Error(err))
				return
			}
			if n > 0 {
				metrics.RecordCacheEviction("persistent", "expired", int(n))
			}
		}, r.Clock)
		r.Logger.Info("SQLite persistent tier initialized", zap.String("path", r.Config.Storage.Path))
	default:
		r.PersistentTier = noop.NewNoOpCache()
		r.Logger.Info("Persistent tier disabled")
	}
}

// initUpstream creates the upstream client and connectivity monitor
func (r *CompositionRoot) initUpstream(context.Context) error {
	client, err := network.NewClient(r.Config.Agent.UpstreamURL, r.Config.Agent.FetchTimeout, r.Config.Breaker, r.Logger)
	if err != nil {
		return err
	}
	r.Client = client
	r.Monitor = connectivity.NewMonitor(client, r.Config.Connectivity, r.Bus, r.Logger)
	return nil
}

// initQueue creates the offline write queue and restores persisted mutations
func (r *CompositionRoot) initQueue(ctx context.Context) error {
	deliverer := offline.NewHTTPDeliverer(r.Config.SyncURL(), r.Config.Queue.DeliveryTimeout, r.Logger)
	r.Queue = offline.NewQueue(r.Storage, deliverer, r.Clock, r.Config.Queue, r.Logger)
	if err := r.Queue.Restore(ctx); err != nil {
		return err
	}
	r.detachQ = r.Queue.Attach(r.Bus)
	return nil
}

// initAgent wires the agent factory, lifecycle host and controller
func (r *CompositionRoot) initAgent(context.Context) error {
	r.Agents = newAgentFactory(r.Config.Agent, agent.Deps{
		Store:      r.Storage,
		Fetcher:    r.Client,
		Classifier: r.Classifier,
		Keys:       r.KeyBuilder,
		Syncer:     r.Queue,
		Bus:        r.Bus,
		Clock:      r.Clock,
	}, r.Logger)

	r.Host = lifecycle.NewHost(r.Agents.Build, r.Client, r.Storage, r.Bus, r.Logger)
	r.Controller = controller.New(r.Host, r.Storage, r.KeyBuilder, r.Bus, reloadHook(r.Logger), controller.Options{
		Version:         r.Config.Agent.Version,
		CleanupInterval: r.Config.Controller.CleanupInterval,
	}, r.Logger)
	return nil
}

// initHTTPServer initializes the HTTP server
func (r *CompositionRoot) initHTTPServer(context.Context) error {
	r.HTTPServer = httpserver.NewServer(
		r.Host,
		r.Host,
		r.Controller,
		r.CacheService,
		r.Queue,
		r.Client,
		r.Logger,
	)
	return nil
}

// initConfigWatcher reloads the agent version when the configuration file changes
func (r *CompositionRoot) initConfigWatcher(ctx context.Context) error {
	watcher, err := config.NewWatcher(GetConfigPath(), func(cfg *config.Config) {
		if err := r.ApplyConfig(context.WithoutCancel(ctx), cfg); err != nil {
			r.Logger.Error("Failed to apply reloaded configuration", zap.Error(err))
		}
	}, r.Logger)
	if err != nil {
		return err
	}
	r.ConfigWatcher = watcher
	r.addShutdown(watcher.Stop)
	return nil
}

// Start launches background workers and registers the configured agent version
func (r *CompositionRoot) Start(ctx context.Context) error {
	r.TieredStore.Start()
	r.CacheService.Start()
	if r.purge != nil {
		r.purge.Start()
	}
	r.Queue.Start()
	r.Monitor.Start(ctx)
	r.Host.Start()
	r.ConfigWatcher.Start()

	return r.Controller.Register(ctx)
}

// Reload re-reads the configuration file and applies it
func (r *CompositionRoot) Reload(ctx context.Context) error {
	cfg, err := config.LoadConfig(GetConfigPath(), r.Logger)
	if err != nil {
		return err
	}
	return r.ApplyConfig(ctx, cfg)
}

// ApplyConfig installs the configured agent version when it changed.
// The new version waits until an update is applied.
func (r *CompositionRoot) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	active, waiting := r.Host.Versions()
	if cfg.Agent.Version == active || cfg.Agent.Version == waiting {
		r.Logger.Info("Agent version unchanged", zap.String("version", cfg.Agent.Version))
		return nil
	}

	r.Agents.Update(cfg.Agent)
	return r.Host.Register(ctx, cfg.Agent.Version)
}

// Stop stops background workers
func (r *CompositionRoot) Stop() {
	r.ConfigWatcher.Stop()
	r.Controller.Close()
	r.Host.Stop()
	r.Monitor.Stop()
	if r.detachQ != nil {
		r.detachQ()
	}
	r.Queue.Stop()
	if r.purge != nil {
		r.purge.Stop()
	}
	r.CacheService.Stop()
	r.TieredStore.Stop()
	r.Agents.Wait()
}

func (r *CompositionRoot) addShutdown(fn func()) {
	r.shutdown = append(r.shutdown, fn)
}

// Cleanup performs cleanup of all resources
func (r *CompositionRoot) Cleanup() error {
	// Close in reverse order of creation
	for i := len(r.shutdown) - 1; i >= 0; i-- {
		r.shutdown[i]()
	}
	r.shutdown = nil

	// Sync logger
	if r.Logger != nil {
		if err := r.Logger.Sync(); err != nil {
			return fmt.Errorf("failed to sync logger: %w", err)
		}
	}
	return nil
}
