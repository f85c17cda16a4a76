package main

import (
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-offline-proxy/internal/agent"
	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/lifecycle"
)

// agentFactory builds interception agents from the current agent configuration.
// The configuration can be swapped on reload; agents already built keep theirs.
type agentFactory struct {
	deps   agent.Deps
	logger *zap.Logger

	mu  sync.RWMutex
	cfg config.AgentConfig

	builtMu sync.Mutex
	built   []*agent.Agent
}

func newAgentFactory(cfg config.AgentConfig, deps agent.Deps, logger *zap.Logger) *agentFactory {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &agentFactory{cfg: cfg, deps: deps, logger: logger}
}

// Build implements lifecycle.Factory
func (f *agentFactory) Build(version string) lifecycle.Agent {
	f.mu.RLock()
	cfg := f.cfg
	f.mu.RUnlock()

	a := agent.New(agent.Options{
		Version:        version,
		Manifest:       cfg.Manifest,
		RootPath:       cfg.RootPath,
		MaxEntryAge:    cfg.MaxEntryAge,
		InstallTimeout: cfg.InstallTimeout,
	}, f.deps, f.logger.With(zap.String("agent_version", version)))

	f.builtMu.Lock()
	f.built = append(f.built, a)
	f.builtMu.Unlock()
	return a
}

// Update replaces the configuration used for agents built from now on
func (f *agentFactory) Update(cfg config.AgentConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Wait blocks until every agent built so far has finished background work
func (f *agentFactory) Wait() {
	f.builtMu.Lock()
	built := append([]*agent.Agent(nil), f.built...)
	f.builtMu.Unlock()

	for _, a := range built {
		a.Wait()
	}
}

// reloadHook runs after an update was applied. Clients of the proxy pick up
// the new version on their next navigation.
func reloadHook(logger *zap.Logger) func() {
	return func() {
		logger.Info("Agent update applied, clients should reload")
	}
}
