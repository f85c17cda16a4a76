package agent

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/utils"
)

const offlineBody = "Content unavailable offline"

// ServeHTTP implements http.Handler
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	utils.WriteSnapshot(w, a.Respond(r))
}

// Respond returns the response for r. It never fails: errors and panics
// become the offline fallback.
func (a *Agent) Respond(r *http.Request) (snap *models.Snapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("Request handling panicked",
				zap.String("url", r.URL.RequestURI()),
				zap.Any("panic", rec))
			snap = a.fallback(r)
		}
	}()

	if r.Method != http.MethodGet {
		return a.passthrough(r)
	}

	route := a.classifier.Classify(r.URL.Path)
	partition := a.keys.PartitionName(route.Partition, a.opts.Version)
	key := a.keys.RequestKey(r.Method, r.URL.RequestURI())

	strategy, ok := a.strategies[route.Strategy]
	if !ok {
		strategy = a.networkOnly
	}

	snap, source, err := strategy(r, partition, key)
	if err != nil {
		a.logger.Warn("Request failed, serving offline fallback",
			zap.String("url", r.URL.RequestURI()),
			zap.String("strategy", string(route.Strategy)),
			zap.Error(err))
		return a.fallback(r)
	}

	metrics.RecordAgentResponse(string(route.Strategy), source)
	return snap
}

// passthrough forwards non-GET requests untouched
func (a *Agent) passthrough(r *http.Request) *models.Snapshot {
	snap, err := a.fetcher.Fetch(r.Context(), r)
	if err != nil {
		a.logger.Warn("Upstream unreachable for passthrough request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.RequestURI()),
			zap.Error(err))
		return utils.TextSnapshot(http.StatusBadGateway, "Upstream unreachable")
	}
	metrics.RecordAgentResponse("passthrough", "network")
	return snap
}

func (a *Agent) networkOnly(r *http.Request, partition, key string) (*models.Snapshot, string, error) {
	snap, err := a.fetcher.Fetch(r.Context(), r)
	return snap, "network", err
}

// networkFirst serves the live response and keeps a copy; the partition is
// only consulted when the network fails
func (a *Agent) networkFirst(r *http.Request, partition, key string) (*models.Snapshot, string, error) {
	ctx := r.Context()
	snap, err := a.fetcher.Fetch(ctx, r)
	if err == nil {
		if snap.OK() {
			a.put(ctx, partition, key, snap)
		}
		return snap, "network", nil
	}

	if cached, found := a.match(ctx, partition, key); found {
		a.logger.Debug("Network failed, serving cached response", zap.String("key", key))
		return cached, "partition", nil
	}
	return nil, "", err
}

func (a *Agent) cacheFirst(r *http.Request, partition, key string) (*models.Snapshot, string, error) {
	ctx := r.Context()
	if cached, found := a.match(ctx, partition, key); found {
		return cached, "partition", nil
	}

	snap, err := a.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, "", err
	}
	if snap.OK() {
		a.put(ctx, partition, key, snap)
	}
	return snap, "network", nil
}

// staleWhileRevalidate answers from the partition immediately and refreshes it
// in the background. Without a cached copy the caller waits for the network.
func (a *Agent) staleWhileRevalidate(r *http.Request, partition, key string) (*models.Snapshot, string, error) {
	ctx := r.Context()
	if cached, found := a.match(ctx, partition, key); found {
		a.revalidate(r, partition, key)
		return cached, "partition", nil
	}

	snap, err := a.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, "", err
	}
	if snap.OK() {
		a.put(ctx, partition, key, snap)
	}
	return snap, "network", nil
}

// revalidate refreshes a partition entry detached from the request. Concurrent
// revalidations of one entry share a single fetch; outcomes are only logged.
func (a *Agent) revalidate(r *http.Request, partition, key string) {
	ctx := context.WithoutCancel(r.Context())
	req := r.Clone(ctx)
	req.Body = http.NoBody

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("Revalidation panicked", zap.String("key", key), zap.Any("panic", rec))
			}
		}()

		_, _, _ = a.revalidations.Do(partition+"|"+key, func() (interface{}, error) {
			snap, err := a.fetcher.Fetch(ctx, req)
			switch {
			case err != nil:
				a.logger.Debug("Revalidation failed, keeping cached copy", zap.String("key", key), zap.Error(err))
				metrics.RecordRevalidation("network_error")
			case !snap.OK():
				metrics.RecordRevalidation("http_error")
			default:
				if err := a.store.Put(ctx, partition, key, snap); err != nil {
					a.logger.Warn("Failed to store revalidated response", zap.String("key", key), zap.Error(err))
					metrics.RecordRevalidation("store_error")
					return nil, nil
				}
				metrics.RecordRevalidation("updated")
				a.notify(models.Notification{Type: models.NotificationCacheUpdated, URL: req.URL.RequestURI()})
			}
			return nil, nil
		})
	}()
}

// fallback serves the cached root page to navigations and a synthetic 503 otherwise
func (a *Agent) fallback(r *http.Request) *models.Snapshot {
	a.notify(models.Notification{Type: models.NotificationOfflineFallback, URL: r.URL.RequestURI()})

	if utils.IsNavigation(r) {
		ctx := context.WithoutCancel(r.Context())
		rootPartition := a.keys.PartitionName(models.PartitionStatic, a.opts.Version)
		if root, found := a.match(ctx, rootPartition, a.keys.RequestKey(http.MethodGet, a.opts.RootPath)); found {
			metrics.RecordAgentFallback("root")
			return root
		}
	}

	metrics.RecordAgentFallback("unavailable")
	return utils.TextSnapshot(http.StatusServiceUnavailable, offlineBody)
}

// match looks in the target partition first, then in the other partitions of this version
func (a *Agent) match(ctx context.Context, partition, key string) (*models.Snapshot, bool) {
	if snap, found := a.matchIn(ctx, partition, key); found {
		return snap, true
	}
	for _, prefix := range models.PartitionPrefixes {
		name := a.keys.PartitionName(prefix, a.opts.Version)
		if name == partition {
			continue
		}
		if snap, found := a.matchIn(ctx, name, key); found {
			return snap, true
		}
	}
	return nil, false
}

func (a *Agent) matchIn(ctx context.Context, partition, key string) (*models.Snapshot, bool) {
	snap, found, err := a.store.Match(ctx, partition, key)
	if err != nil {
		a.logger.Warn("Partition lookup failed",
			zap.String("partition", partition),
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return snap, found
}

// put stores snap even when the client has already gone away
func (a *Agent) put(ctx context.Context, partition, key string, snap *models.Snapshot) {
	if err := a.store.Put(context.WithoutCancel(ctx), partition, key, snap); err != nil {
		a.logger.Warn("Failed to store response",
			zap.String("partition", partition),
			zap.String("key", key),
			zap.Error(err))
	}
}
