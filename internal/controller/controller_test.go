package controller

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/cache"
	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/lifecycle"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/storage/sqlite"
)

type recordingAgent struct {
	version string

	mu       sync.Mutex
	messages []models.MessageType
}

func (a *recordingAgent) Version() string                    { return a.version }
func (a *recordingAgent) Install(ctx context.Context) error  { return nil }
func (a *recordingAgent) Activate(ctx context.Context) error { return nil }

func (a *recordingAgent) Respond(r *http.Request) *models.Snapshot {
	return &models.Snapshot{Status: http.StatusOK, Header: http.Header{}}
}

func (a *recordingAgent) HandleMessage(ctx context.Context, msg models.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg.Type)
	return nil
}

func (a *recordingAgent) received() []models.MessageType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.MessageType(nil), a.messages...)
}

type fixture struct {
	controller *Controller
	host       *lifecycle.Host
	store      *sqlite.Store
	bus        *events.Bus
	agents     map[string]*recordingAgent
	reloads    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "controller.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store: store,
		bus:   events.NewBus(logger),
		agents: map[string]*recordingAgent{
			"v1": {version: "v1"},
			"v2": {version: "v2"},
		},
	}
	f.host = lifecycle.NewHost(func(version string) lifecycle.Agent { return f.agents[version] }, nil, nil, f.bus, logger)
	f.controller = New(f.host, store, cache.NewKeyBuilder(), f.bus, func() { f.reloads++ },
		Options{Version: "v1", CleanupInterval: time.Hour}, logger)
	t.Cleanup(f.controller.Close)
	return f
}

func TestController_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.controller.IsSupported(ctx))
	assert.False(t, f.controller.IsRegistered())

	require.NoError(t, f.controller.Register(ctx))
	require.NoError(t, f.controller.Register(ctx))

	assert.True(t, f.controller.IsRegistered())
	assert.Equal(t, models.AgentStateActive, f.controller.State())
	assert.False(t, f.controller.IsUpdateAvailable())
	assert.Equal(t, 1, f.bus.Subscribers(events.TopicStateChange))
}

func TestController_RegisterUnsupported(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c := New(nil, nil, cache.NewKeyBuilder(), events.NewBus(logger), nil, Options{Version: "v1"}, logger)
	defer c.Close()

	assert.False(t, c.IsSupported(context.Background()))
	require.NoError(t, c.Register(context.Background()))
	assert.False(t, c.IsRegistered())
}

func TestController_RegisterUnavailableStorage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	assert.False(t, f.controller.IsSupported(context.Background()))
	require.NoError(t, f.controller.Register(context.Background()))
	assert.False(t, f.controller.IsRegistered())
}

func TestController_UpdateFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.Register(ctx))

	var announced []any
	f.controller.Subscribe(events.TopicUpdateAvailable, func(e events.Event) { announced = append(announced, e.Payload) })
	f.controller.Subscribe(events.TopicUpdateAvailable, func(e events.Event) { announced = append(announced, "second listener") })

	// ApplyUpdate without a pending update does nothing
	require.NoError(t, f.controller.ApplyUpdate(ctx))
	assert.Equal(t, 0, f.reloads)

	// A new deployment installs v2 next to the active v1
	require.NoError(t, f.host.Register(ctx, "v2"))

	assert.True(t, f.controller.IsUpdateAvailable())
	assert.Equal(t, []any{"v2", "second listener"}, announced)
	assert.Equal(t, models.AgentStateInstalledWaiting, f.controller.State())

	f.host.Start()
	require.NoError(t, f.controller.ApplyUpdate(ctx))
	f.host.Stop()

	assert.Equal(t, 1, f.reloads)
	active, waiting := f.host.Versions()
	assert.Equal(t, "v2", active)
	assert.Empty(t, waiting)
	assert.False(t, f.controller.IsUpdateAvailable())
}

func TestController_Messages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nothing is sent before an agent is active
	f.controller.CleanupCache()
	f.controller.ForceSync()

	require.NoError(t, f.controller.Register(ctx))
	f.host.Start()
	f.controller.CleanupCache()
	f.controller.ForceSync()
	f.host.Stop()

	assert.Equal(t, []models.MessageType{models.MessageCleanCache, models.MessageForceSync}, f.agents["v1"].received())
}

func TestController_CacheStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap := &models.Snapshot{Method: http.MethodGet, URL: "/", Status: http.StatusOK, Header: http.Header{}}
	require.NoError(t, f.store.Put(ctx, "static-v1", "GET /", snap))
	require.NoError(t, f.store.Put(ctx, "api-v1", "GET /api/stats", snap))
	require.NoError(t, f.store.Put(ctx, "api-v1", "GET /api/profile", snap))

	stats, err := f.controller.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PartitionCount)
	assert.Equal(t, 2, stats.Partitions["api-v1"].EntryCount)
	assert.Equal(t, []string{"/api/profile", "/api/stats"}, stats.Partitions["api-v1"].URLs)
	assert.Equal(t, []string{"/"}, stats.Partitions["static-v1"].URLs)
}
