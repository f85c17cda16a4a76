package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// HandleMessage processes a control message. Unknown types are ignored.
func (a *Agent) HandleMessage(ctx context.Context, msg models.Message) error {
	switch msg.Type {
	case models.MessageCleanCache:
		_, err := a.CleanCache(ctx)
		return err
	case models.MessageForceSync:
		if a.syncer == nil {
			return nil
		}
		return a.syncer.Sync(ctx)
	default:
		a.logger.Debug("Ignoring control message", zap.String("type", string(msg.Type)))
		return nil
	}
}

// CleanCache deletes, in every partition, snapshots whose response Date is
// older than the maximum entry age. Snapshots without a usable Date are deleted too.
func (a *Agent) CleanCache(ctx context.Context) (int, error) {
	names, err := a.store.Partitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list partitions: %w", err)
	}

	now := a.clock.Now()
	removed := 0
	for _, name := range names {
		keys, err := a.store.Keys(ctx, name)
		if err != nil {
			return removed, fmt.Errorf("list keys of %s: %w", name, err)
		}
		for _, key := range keys {
			snap, found, err := a.store.Match(ctx, name, key)
			if err != nil || !found {
				continue
			}
			date, ok := snap.Date()
			if ok && now.Sub(date) <= a.opts.MaxEntryAge {
				continue
			}
			if err := a.store.Delete(ctx, name, key); err != nil {
				return removed, fmt.Errorf("delete %s from %s: %w", key, name, err)
			}
			a.logger.Debug("Removed stale snapshot", zap.String("partition", name), zap.String("key", key))
			removed++
		}
	}

	metrics.RecordSnapshotsCleaned(removed)
	a.logger.Info("Cache cleanup finished", zap.Int("removed", removed))
	return removed, nil
}

// Stats returns every partition with its entry count and request URLs
func (a *Agent) Stats(ctx context.Context) (*models.PartitionStats, error) {
	return CollectStats(ctx, a.store, a.keys)
}

// CollectStats aggregates the partitions of store
func CollectStats(ctx context.Context, store interfaces.PartitionStore, keys interfaces.KeyBuilder) (*models.PartitionStats, error) {
	names, err := store.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	stats := &models.PartitionStats{
		PartitionCount: len(names),
		Partitions:     make(map[string]models.PartitionInfo, len(names)),
	}
	for _, name := range names {
		requestKeys, err := store.Keys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list keys of %s: %w", name, err)
		}
		urls := make([]string, 0, len(requestKeys))
		for _, key := range requestKeys {
			if _, url, ok := keys.ParseRequestKey(key); ok {
				urls = append(urls, url)
			} else {
				urls = append(urls, key)
			}
		}
		stats.Partitions[name] = models.PartitionInfo{EntryCount: len(requestKeys), URLs: urls}
	}
	return stats, nil
}
