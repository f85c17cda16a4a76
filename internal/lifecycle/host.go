package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/utils"
)

// ErrNoWaitingAgent is returned by SkipWaiting when no installed version is waiting
var ErrNoWaitingAgent = errors.New("no waiting agent")

// messageBuffer bounds undelivered control messages
const messageBuffer = 64

var allStates = []string{
	string(models.AgentStateUnregistered),
	string(models.AgentStateInstalling),
	string(models.AgentStateInstalledWaiting),
	string(models.AgentStateActive),
	string(models.AgentStateUpdating),
}

// Agent is one installable version of the interception agent
type Agent interface {
	Version() string
	Install(ctx context.Context) error
	Activate(ctx context.Context) error
	Respond(r *http.Request) *models.Snapshot
	HandleMessage(ctx context.Context, msg models.Message) error
}

// Factory builds the agent for a version
type Factory func(version string) Agent

// StateStore persists the activated version across restarts
type StateStore interface {
	ActiveVersion(ctx context.Context) (string, error)
	SaveActiveVersion(ctx context.Context, version string) error
}

// Host runs interception agents: it installs versions, keeps a newer version
// waiting while another one is active and delivers control messages.
type Host struct {
	factory Factory
	fetcher interfaces.Fetcher
	states  StateStore
	bus     *events.Bus
	logger  *zap.Logger

	registerMu sync.Mutex

	mu      sync.RWMutex
	state   models.AgentState
	active  Agent
	waiting Agent

	msgMu    sync.RWMutex
	closed   bool
	messages chan models.Message
	wg       sync.WaitGroup
}

// NewHost creates a host. Requests arriving while no agent is active are
// forwarded through fetcher. states may be nil, in which case every process
// start installs its version from the upstream again.
func NewHost(factory Factory, fetcher interfaces.Fetcher, states StateStore, bus *events.Bus, logger *zap.Logger) *Host {
	return &Host{
		factory:  factory,
		fetcher:  fetcher,
		states:   states,
		bus:      bus,
		logger:   logger,
		state:    models.AgentStateUnregistered,
		messages: make(chan models.Message, messageBuffer),
	}
}

// Start launches the message worker
func (h *Host) Start() {
	h.wg.Add(1)
	go h.processMessages()
}

// Stop stops accepting messages and waits for queued ones to be handled
func (h *Host) Stop() {
	h.msgMu.Lock()
	if h.closed {
		h.msgMu.Unlock()
		return
	}
	h.closed = true
	close(h.messages)
	h.msgMu.Unlock()

	h.wg.Wait()
}

// Register installs version. Without an active agent the new version is
// activated at once; otherwise it waits for SkipWaiting. A failed install
// leaves the host as it was. On the first call after a restart the version
// activated by the previous process is restored from storage before anything
// is installed.
func (h *Host) Register(ctx context.Context, version string) error {
	h.registerMu.Lock()
	defer h.registerMu.Unlock()

	h.mu.RLock()
	active, waiting, previous := h.active, h.waiting, h.state
	h.mu.RUnlock()

	if active == nil && waiting == nil {
		if restored := h.restoreActive(ctx); restored != nil {
			active, previous = restored, models.AgentStateActive
		}
	}

	if active != nil && active.Version() == version {
		return nil
	}
	if waiting != nil && waiting.Version() == version {
		return nil
	}

	candidate := h.factory(version)
	if active == nil {
		h.setState(version, models.AgentStateInstalling)
	} else {
		h.setState(version, models.AgentStateUpdating)
	}

	if err := candidate.Install(ctx); err != nil {
		h.restoreState(version, previous)
		return fmt.Errorf("install %s: %w", version, err)
	}

	if active != nil {
		h.mu.Lock()
		h.waiting = candidate
		h.mu.Unlock()
		h.setState(version, models.AgentStateInstalledWaiting)
		h.logger.Info("New agent version waiting",
			zap.String("version", version),
			zap.String("active_version", active.Version()))
		return nil
	}

	if err := candidate.Activate(ctx); err != nil {
		h.restoreState(version, previous)
		return fmt.Errorf("activate %s: %w", version, err)
	}
	h.mu.Lock()
	h.active = candidate
	h.mu.Unlock()
	h.setState(version, models.AgentStateActive)
	h.saveActive(ctx, version)
	return nil
}

// restoreActive re-activates the version recorded by a previous process
// from what is already stored, without contacting the upstream
func (h *Host) restoreActive(ctx context.Context) Agent {
	if h.states == nil {
		return nil
	}
	version, err := h.states.ActiveVersion(ctx)
	if err != nil {
		h.logger.Warn("Failed to load active version", zap.Error(err))
		return nil
	}
	if version == "" {
		return nil
	}

	agent := h.factory(version)
	if err := agent.Activate(ctx); err != nil {
		h.logger.Warn("Failed to restore active version", zap.String("version", version), zap.Error(err))
		return nil
	}
	h.mu.Lock()
	h.active = agent
	h.mu.Unlock()
	h.setState(version, models.AgentStateActive)
	h.logger.Info("Restored active agent version", zap.String("version", version))
	return agent
}

func (h *Host) saveActive(ctx context.Context, version string) {
	if h.states == nil {
		return
	}
	if err := h.states.SaveActiveVersion(ctx, version); err != nil {
		h.logger.Warn("Failed to persist active version", zap.String("version", version), zap.Error(err))
	}
}

// SkipWaiting activates the waiting version in place of the active one
func (h *Host) SkipWaiting(ctx context.Context) error {
	h.registerMu.Lock()
	defer h.registerMu.Unlock()

	h.mu.RLock()
	waiting := h.waiting
	h.mu.RUnlock()
	if waiting == nil {
		return ErrNoWaitingAgent
	}

	if err := waiting.Activate(ctx); err != nil {
		return fmt.Errorf("activate %s: %w", waiting.Version(), err)
	}

	h.mu.Lock()
	h.active = waiting
	h.waiting = nil
	h.mu.Unlock()
	h.setState(waiting.Version(), models.AgentStateActive)
	h.saveActive(ctx, waiting.Version())
	return nil
}

// PostMessage queues msg for the active agent without waiting for it
func (h *Host) PostMessage(msg models.Message) {
	h.msgMu.RLock()
	defer h.msgMu.RUnlock()

	if h.closed {
		h.logger.Debug("Host stopped, dropping message", zap.String("type", string(msg.Type)))
		return
	}
	select {
	case h.messages <- msg:
	default:
		h.logger.Warn("Message buffer full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (h *Host) processMessages() {
	defer h.wg.Done()
	for msg := range h.messages {
		h.handle(msg)
	}
}

func (h *Host) handle(msg models.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Message handler panicked", zap.String("type", string(msg.Type)), zap.Any("panic", rec))
		}
	}()

	ctx := context.Background()
	if msg.Type == models.MessageSkipWaiting {
		if err := h.SkipWaiting(ctx); err != nil {
			h.logger.Warn("Skip waiting failed", zap.Error(err))
		}
		return
	}

	active := h.Active()
	if active == nil {
		h.logger.Debug("No active agent, dropping message", zap.String("type", string(msg.Type)))
		return
	}
	if err := active.HandleMessage(ctx, msg); err != nil {
		h.logger.Warn("Control message failed", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// ServeHTTP serves through the active agent, or straight from the upstream when none is active
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if active := h.Active(); active != nil {
		utils.WriteSnapshot(w, active.Respond(r))
		return
	}

	snap, err := h.fetcher.Fetch(r.Context(), r)
	if err != nil {
		h.logger.Warn("Upstream unreachable and no active agent", zap.String("url", r.URL.RequestURI()), zap.Error(err))
		utils.WriteSnapshot(w, utils.TextSnapshot(http.StatusBadGateway, "Upstream unreachable"))
		return
	}
	utils.WriteSnapshot(w, snap)
}

// Active returns the active agent or nil
func (h *Host) Active() Agent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// State returns the registration state
func (h *Host) State() models.AgentState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Versions returns the active and waiting versions, empty when absent
func (h *Host) Versions() (active, waiting string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.active != nil {
		active = h.active.Version()
	}
	if h.waiting != nil {
		waiting = h.waiting.Version()
	}
	return active, waiting
}

// Status returns the current state as a StateChange snapshot
func (h *Host) Status() models.StateChange {
	active, waiting := h.Versions()
	version := active
	if waiting != "" {
		version = waiting
	}
	return models.StateChange{Version: version, State: h.State(), ActiveVersion: active}
}

func (h *Host) setState(version string, state models.AgentState) {
	h.mu.Lock()
	h.state = state
	activeVersion := ""
	if h.active != nil {
		activeVersion = h.active.Version()
	}
	h.mu.Unlock()

	metrics.SetAgentState(version, string(state), allStates)
	h.logger.Info("Agent state changed", zap.String("version", version), zap.String("state", string(state)))
	h.bus.Publish(events.TopicStateChange, models.StateChange{
		Version:       version,
		State:         state,
		ActiveVersion: activeVersion,
	})
}

// restoreState reverts a failed registration of version
func (h *Host) restoreState(version string, previous models.AgentState) {
	if active := h.Active(); active != nil {
		version = active.Version()
	}
	h.setState(version, previous)
}
