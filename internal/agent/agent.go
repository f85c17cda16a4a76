package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// ErrInstallFailed is returned when the manifest cannot be stored completely
var ErrInstallFailed = errors.New("agent install failed")

// Syncer replays the offline write queue
type Syncer interface {
	Sync(ctx context.Context) error
}

// Options configures one agent version
type Options struct {
	Version        string
	Manifest       []string
	RootPath       string
	MaxEntryAge    time.Duration
	InstallTimeout time.Duration
}

// Deps are the collaborators injected into an agent
type Deps struct {
	Store      interfaces.PartitionStore
	Fetcher    interfaces.Fetcher
	Classifier interfaces.ResourceClassifier
	Keys       interfaces.KeyBuilder
	Syncer     Syncer
	Bus        *events.Bus
	Clock      clock.Clock
}

type strategyFunc func(r *http.Request, partition, key string) (*models.Snapshot, string, error)

// Agent intercepts requests for one build version. It keeps no per-request
// state; everything it serves comes from the partition store or the network.
type Agent struct {
	opts       Options
	store      interfaces.PartitionStore
	fetcher    interfaces.Fetcher
	classifier interfaces.ResourceClassifier
	keys       interfaces.KeyBuilder
	syncer     Syncer
	bus        *events.Bus
	clock      clock.Clock
	logger     *zap.Logger

	strategies    map[models.Strategy]strategyFunc
	revalidations singleflight.Group
	background    sync.WaitGroup
}

// New creates an agent for opts.Version
func New(opts Options, deps Deps, logger *zap.Logger) *Agent {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if opts.RootPath == "" {
		opts.RootPath = "/"
	}

	a := &Agent{
		opts:       opts,
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		classifier: deps.Classifier,
		keys:       deps.Keys,
		syncer:     deps.Syncer,
		bus:        deps.Bus,
		clock:      deps.Clock,
		logger:     logger.With(zap.String("version", opts.Version)),
	}
	a.strategies = map[models.Strategy]strategyFunc{
		models.StrategyNetworkFirst:         a.networkFirst,
		models.StrategyCacheFirst:           a.cacheFirst,
		models.StrategyStaleWhileRevalidate: a.staleWhileRevalidate,
	}
	return a
}

// Version returns the build version served by this agent
func (a *Agent) Version() string {
	return a.opts.Version
}

// Install fetches the manifest concurrently and stores it in the static
// partition. Nothing is written unless every asset was fetched.
func (a *Agent) Install(ctx context.Context) error {
	if a.opts.InstallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.InstallTimeout)
		defer cancel()
	}

	partition := a.keys.PartitionName(models.PartitionStatic, a.opts.Version)
	a.logger.Info("Installing agent",
		zap.String("partition", partition),
		zap.Int("assets", len(a.opts.Manifest)))

	var (
		mu    sync.Mutex
		snaps = make(map[string]*models.Snapshot, len(a.opts.Manifest))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, asset := range a.opts.Manifest {
		asset := asset
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, asset, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", asset, err)
			}
			snap, err := a.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", asset, err)
			}
			if !snap.OK() {
				return fmt.Errorf("%s: unexpected status %d", asset, snap.Status)
			}

			mu.Lock()
			snaps[a.keys.RequestKey(http.MethodGet, asset)] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("Failed to fetch manifest", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	if err := a.store.PutAll(ctx, partition, snaps); err != nil {
		a.logger.Error("Failed to store manifest", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	a.logger.Info("Agent installed")
	return nil
}

// Activate deletes every agent partition that belongs to another version.
// Partitions outside the naming contract are left alone.
func (a *Agent) Activate(ctx context.Context) error {
	names, err := a.store.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}

	deleted := 0
	for _, name := range names {
		_, version, ok := a.keys.ParsePartitionName(name)
		if !ok || version == a.opts.Version {
			continue
		}
		if _, err := a.store.DeletePartition(ctx, name); err != nil {
			return fmt.Errorf("delete partition %s: %w", name, err)
		}
		a.logger.Info("Deleted obsolete partition", zap.String("partition", name))
		deleted++
	}

	metrics.RecordPartitionsDeleted(deleted)
	a.logger.Info("Agent activated", zap.Int("partitions_deleted", deleted))
	return nil
}

// Wait blocks until background revalidations have finished
func (a *Agent) Wait() {
	a.background.Wait()
}

func (a *Agent) notify(n models.Notification) {
	if a.bus != nil {
		a.bus.Publish(events.TopicNotification, n)
	}
}
