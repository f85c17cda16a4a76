package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"go-offline-proxy/internal/agent"
	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/scheduler"
)

// Host is the agent runtime supervised by the controller
type Host interface {
	Register(ctx context.Context, version string) error
	PostMessage(msg models.Message)
	State() models.AgentState
	Versions() (active, waiting string)
}

// Options configures the controller
type Options struct {
	Version         string
	CleanupInterval time.Duration
}

// Controller registers the interception agent, relays its lifecycle to the
// application and sends it control messages
type Controller struct {
	host   Host
	store  interfaces.PartitionStore
	keys   interfaces.KeyBuilder
	bus    *events.Bus
	reload func()
	opts   Options
	logger *zap.Logger

	cleanup *scheduler.Scheduler

	registerMu      sync.Mutex
	registered      atomic.Bool
	updateAvailable atomic.Bool
	unsubscribe     []func()
}

// New creates a controller. reload is called after an update has been applied.
func New(host Host, store interfaces.PartitionStore, keys interfaces.KeyBuilder, bus *events.Bus, reload func(), opts Options, logger *zap.Logger) *Controller {
	c := &Controller{
		host:   host,
		store:  store,
		keys:   keys,
		bus:    bus,
		reload: reload,
		opts:   opts,
		logger: logger,
	}
	c.cleanup = scheduler.New(opts.CleanupInterval, c.CleanupCache)
	return c
}

// IsSupported reports whether an agent runtime and partition storage are available
func (c *Controller) IsSupported(ctx context.Context) bool {
	if c.host == nil || c.store == nil {
		return false
	}
	if pinger, ok := c.store.(interfaces.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			c.logger.Warn("Partition storage unavailable", zap.Error(err))
			return false
		}
	}
	return true
}

// Register registers the configured agent version and starts listening to it.
// Calling Register again is a no-op.
func (c *Controller) Register(ctx context.Context) error {
	c.registerMu.Lock()
	defer c.registerMu.Unlock()

	if c.registered.Load() {
		return nil
	}
	if !c.IsSupported(ctx) {
		c.logger.Warn("Interception agent not supported, skipping registration")
		return nil
	}

	c.unsubscribe = append(c.unsubscribe,
		c.bus.Subscribe(events.TopicStateChange, c.onStateChange),
		c.bus.Subscribe(events.TopicNotification, c.onNotification),
	)

	c.logger.Info("Registering interception agent", zap.String("version", c.opts.Version))
	if err := c.host.Register(ctx, c.opts.Version); err != nil {
		c.logger.Error("Agent registration failed", zap.Error(err))
		c.detach()
		return err
	}

	c.registered.Store(true)
	c.cleanup.Start()
	return nil
}

func (c *Controller) onStateChange(e events.Event) {
	change, ok := e.Payload.(models.StateChange)
	if !ok {
		return
	}

	switch change.State {
	case models.AgentStateInstalledWaiting:
		if change.ActiveVersion == "" || change.ActiveVersion == change.Version {
			return
		}
		c.updateAvailable.Store(true)
		c.logger.Info("Agent update ready",
			zap.String("version", change.Version),
			zap.String("active_version", change.ActiveVersion))
		c.bus.Publish(events.TopicUpdateAvailable, change.Version)
	case models.AgentStateActive:
		if _, waiting := c.host.Versions(); waiting == "" {
			c.updateAvailable.Store(false)
		}
	}
}

func (c *Controller) onNotification(e events.Event) {
	n, ok := e.Payload.(models.Notification)
	if !ok {
		return
	}
	switch n.Type {
	case models.NotificationCacheUpdated:
		c.logger.Info("Cache updated", zap.String("url", n.URL))
	case models.NotificationOfflineFallback:
		c.logger.Info("Offline fallback served", zap.String("url", n.URL))
	default:
		c.logger.Debug("Agent notification", zap.String("type", string(n.Type)))
	}
}

// ApplyUpdate tells the waiting agent to take over and then triggers the reload hook
func (c *Controller) ApplyUpdate(ctx context.Context) error {
	if !c.updateAvailable.Load() {
		c.logger.Warn("No agent update available")
		return nil
	}
	if _, waiting := c.host.Versions(); waiting == "" {
		c.logger.Warn("No agent update available")
		return nil
	}

	c.logger.Info("Applying agent update")
	c.host.PostMessage(models.Message{Type: models.MessageSkipWaiting})
	if c.reload != nil {
		c.reload()
	}
	return nil
}

// CleanupCache asks the active agent to drop stale snapshots
func (c *Controller) CleanupCache() {
	if active, _ := c.host.Versions(); active == "" {
		return
	}
	c.logger.Debug("Requesting cache cleanup")
	c.host.PostMessage(models.Message{Type: models.MessageCleanCache})
}

// ForceSync asks the active agent to replay the offline queue
func (c *Controller) ForceSync() {
	if active, _ := c.host.Versions(); active == "" {
		return
	}
	c.logger.Debug("Requesting forced sync")
	c.host.PostMessage(models.Message{Type: models.MessageForceSync})
}

// CacheStats returns partition statistics
func (c *Controller) CacheStats(ctx context.Context) (*models.PartitionStats, error) {
	return agent.CollectStats(ctx, c.store, c.keys)
}

// Subscribe registers fn for a lifecycle topic such as update-available, online or offline
func (c *Controller) Subscribe(topic events.Topic, fn events.Handler) func() {
	return c.bus.Subscribe(topic, fn)
}

// IsRegistered reports whether Register succeeded
func (c *Controller) IsRegistered() bool {
	return c.registered.Load()
}

// IsUpdateAvailable reports whether a new version is waiting
func (c *Controller) IsUpdateAvailable() bool {
	return c.updateAvailable.Load()
}

// State returns the agent lifecycle state
func (c *Controller) State() models.AgentState {
	return c.host.State()
}

// Close stops the cleanup timer and event relays
func (c *Controller) Close() {
	c.cleanup.Stop()
	c.registerMu.Lock()
	defer c.registerMu.Unlock()
	c.detach()
}

func (c *Controller) detach() {
	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil
}
