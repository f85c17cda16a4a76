package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/events"
)

type stubProber struct {
	err   error
	paths []string
}

func (p *stubProber) Probe(ctx context.Context, path string) error {
	p.paths = append(p.paths, path)
	return p.err
}

func newTestMonitor(t *testing.T, prober Prober) (*Monitor, *events.Bus, *[]events.Topic) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger)

	var seen []events.Topic
	record := func(e events.Event) { seen = append(seen, e.Topic) }
	bus.Subscribe(events.TopicOnline, record)
	bus.Subscribe(events.TopicOffline, record)

	cfg := config.ConnectivityConfig{ProbePath: "/health", Timeout: time.Second}
	return NewMonitor(prober, cfg, bus, logger), bus, &seen
}

func TestMonitor_Transitions(t *testing.T) {
	prober := &stubProber{}
	m, _, seen := newTestMonitor(t, prober)

	assert.True(t, m.IsOnline())
	assert.True(t, m.Check(context.Background()))
	assert.Equal(t, []events.Topic{events.TopicOnline}, *seen, "first result is published")

	assert.True(t, m.Check(context.Background()))
	assert.Len(t, *seen, 1, "no event without a transition")

	prober.err = errors.New("connection refused")
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.IsOnline())

	m.Check(context.Background())

	prober.err = nil
	m.Check(context.Background())

	assert.Equal(t, []events.Topic{events.TopicOnline, events.TopicOffline, events.TopicOnline}, *seen)
	assert.Equal(t, []string{"/health", "/health", "/health", "/health", "/health"}, prober.paths)
}

func TestMonitor_SetOnline(t *testing.T) {
	m, _, seen := newTestMonitor(t, &stubProber{})

	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, []events.Topic{events.TopicOffline, events.TopicOnline}, *seen)
}

func TestMonitor_StartWithoutInterval(t *testing.T) {
	prober := &stubProber{err: errors.New("down")}
	m, _, seen := newTestMonitor(t, prober)

	m.Start(context.Background())
	defer m.Stop()

	assert.False(t, m.IsOnline())
	assert.Equal(t, []events.Topic{events.TopicOffline}, *seen)
}

func TestMonitor_StartOnlinePublishes(t *testing.T) {
	m, _, seen := newTestMonitor(t, &stubProber{})

	m.Start(context.Background())
	defer m.Stop()

	assert.True(t, m.IsOnline())
	assert.Equal(t, []events.Topic{events.TopicOnline}, *seen)
}
