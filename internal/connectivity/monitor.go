package connectivity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/scheduler"
)

// Prober checks upstream reachability
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// Monitor tracks whether the upstream is reachable and publishes
// online/offline transitions on the event bus
type Monitor struct {
	prober    Prober
	config    config.ConnectivityConfig
	bus       *events.Bus
	scheduler *scheduler.Scheduler
	logger    *zap.Logger

	mu      sync.RWMutex
	online  bool
	settled bool
}

// NewMonitor creates a monitor that assumes the upstream is reachable until a probe fails
func NewMonitor(prober Prober, cfg config.ConnectivityConfig, bus *events.Bus, logger *zap.Logger) *Monitor {
	m := &Monitor{
		prober: prober,
		config: cfg,
		bus:    bus,
		logger: logger,
		online: true,
	}
	m.scheduler = scheduler.New(cfg.Interval, func() {
		m.Check(context.Background())
	})
	metrics.SetOnline(true)
	return m
}

// Start probes once and then at the configured interval
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)
	m.scheduler.Start()
}

// Stop ends periodic probing
func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

// Check probes the upstream and records the result
func (m *Monitor) Check(ctx context.Context) bool {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	err := m.prober.Probe(ctx, m.config.ProbePath)
	if err != nil {
		m.logger.Debug("Upstream probe failed", zap.Error(err))
	}
	m.SetOnline(err == nil)
	return err == nil
}

// SetOnline records connectivity. The first result and every later transition
// are published as online or offline events.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := !m.settled || m.online != online
	m.online = online
	m.settled = true
	m.mu.Unlock()

	metrics.SetOnline(online)
	if !changed {
		return
	}

	if online {
		m.logger.Info("Upstream reachable")
		m.bus.Publish(events.TopicOnline, nil)
	} else {
		m.logger.Warn("Upstream unreachable, switching to offline mode")
		m.bus.Publish(events.TopicOffline, nil)
	}
}

// IsOnline returns the last known connectivity
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}
