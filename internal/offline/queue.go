package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/events"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/scheduler"
)

// DrainResult reports one pass over the queue
type DrainResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Queue buffers mutations while the upstream is unreachable and replays them in order.
// Every mutation is persisted so the queue survives restarts.
type Queue struct {
	store     interfaces.QueueStore
	deliverer interfaces.Deliverer
	clock     clock.Clock
	config    config.QueueConfig
	logger    *zap.Logger

	mu      sync.Mutex
	pending []*models.QueuedMutation
	data    map[string]*models.OfflineRecord

	drainMu sync.Mutex
	offline atomic.Bool
	pruner  *scheduler.Scheduler
	wg      sync.WaitGroup
}

// NewQueue creates an empty queue; call Restore to load persisted state
func NewQueue(store interfaces.QueueStore, deliverer interfaces.Deliverer, clk clock.Clock, cfg config.QueueConfig, logger *zap.Logger) *Queue {
	q := &Queue{
		store:     store,
		deliverer: deliverer,
		clock:     clk,
		config:    cfg,
		logger:    logger,
		data:      make(map[string]*models.OfflineRecord),
	}
	q.pruner = scheduler.NewWithClock(cfg.PruneInterval, func() {
		if err := q.Prune(context.Background()); err != nil {
			q.logger.Warn("Offline prune failed", zap.Error(err))
		}
	}, clk)
	return q
}

// Restore loads the persisted queue and offline data
func (q *Queue) Restore(ctx context.Context) error {
	mutations, err := q.store.List(ctx)
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}
	records, err := q.store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("restore offline data: %w", err)
	}

	q.mu.Lock()
	q.pending = mutations
	q.data = make(map[string]*models.OfflineRecord, len(records))
	for _, rec := range records {
		q.data[rec.Key] = rec
	}
	n := len(q.pending)
	q.mu.Unlock()

	metrics.SetQueueLength(n)
	q.logger.Info("Restored offline state",
		zap.Int("queued", n),
		zap.Int("records", len(records)))
	return nil
}

// Start begins periodic pruning
func (q *Queue) Start() {
	q.pruner.Start()
}

// Stop ends pruning and waits for background drains
func (q *Queue) Stop() {
	q.pruner.Stop()
	q.wg.Wait()
}

// Attach follows online/offline events from bus. Going online drains the queue
// in the background. The returned function detaches.
func (q *Queue) Attach(bus *events.Bus) func() {
	offUnsub := bus.Subscribe(events.TopicOffline, func(events.Event) {
		q.offline.Store(true)
		q.logger.Info("Offline mode enabled", zap.Int("queued", q.Len()))
	})
	onUnsub := bus.Subscribe(events.TopicOnline, func(events.Event) {
		q.offline.Store(false)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			if err := q.Sync(context.Background()); err != nil {
				q.logger.Warn("Sync after reconnect failed", zap.Error(err))
			}
		}()
	})
	return func() {
		offUnsub()
		onUnsub()
	}
}

// QueueForSync appends a mutation for later replay. A persistence failure is
// logged and the mutation is kept in memory.
func (q *Queue) QueueForSync(ctx context.Context, key string, payload any) (*models.QueuedMutation, error) {
	raw, err := encode(payload)
	if err != nil {
		return nil, err
	}

	m := &models.QueuedMutation{
		ID:         uuid.NewString(),
		Key:        key,
		Payload:    raw,
		EnqueuedAt: q.clock.Now().UnixMilli(),
	}
	if err := q.store.Append(ctx, m); err != nil {
		q.logger.Warn("Failed to persist queued mutation", zap.String("key", key), zap.Error(err))
	}

	q.mu.Lock()
	q.pending = append(q.pending, m)
	n := len(q.pending)
	q.mu.Unlock()

	metrics.SetQueueLength(n)
	q.logger.Debug("Queued mutation", zap.String("key", key), zap.String("id", m.ID))
	return m, nil
}

// Drain attempts every currently queued mutation once, in enqueue order.
// Delivered mutations are removed; failed ones move to the tail.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	batch := q.Pending()
	var result DrainResult
	if len(batch) == 0 {
		return result, nil
	}

	q.logger.Info("Synchronizing queued mutations", zap.Int("count", len(batch)))
	for _, m := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := q.deliver(ctx, m); err != nil {
			q.logger.Warn("Replay failed, requeueing",
				zap.String("key", m.Key),
				zap.String("id", m.ID),
				zap.Error(err))
			q.requeue(ctx, m)
			metrics.RecordDelivery("failed")
			result.Failed++
			continue
		}

		q.remove(ctx, m)
		metrics.RecordDelivery("delivered")
		result.Delivered++
	}

	q.logger.Info("Synchronization finished",
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Sync drains the queue and reports failures as an error
func (q *Queue) Sync(ctx context.Context) error {
	result, err := q.Drain(ctx)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d mutations not delivered", result.Failed, result.Failed+result.Delivered)
	}
	return nil
}

func (q *Queue) deliver(ctx context.Context, m *models.QueuedMutation) error {
	if q.config.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.config.DeliveryTimeout)
		defer cancel()
	}
	return q.deliverer.Deliver(ctx, m)
}

func (q *Queue) remove(ctx context.Context, m *models.QueuedMutation) {
	q.mu.Lock()
	q.pending = without(q.pending, m.ID)
	n := len(q.pending)
	q.mu.Unlock()
	metrics.SetQueueLength(n)

	if err := q.store.Remove(ctx, m.ID); err != nil {
		q.logger.Warn("Failed to remove delivered mutation", zap.String("id", m.ID), zap.Error(err))
	}
}

// requeue moves m behind every other pending mutation. A mutation pruned
// while it was being delivered stays dropped.
func (q *Queue) requeue(ctx context.Context, m *models.QueuedMutation) {
	q.mu.Lock()
	rest := without(q.pending, m.ID)
	present := len(rest) < len(q.pending)
	if present {
		q.pending = append(rest, m)
	}
	q.mu.Unlock()

	if !present {
		q.logger.Debug("Mutation pruned during delivery", zap.String("id", m.ID))
		return
	}
	if err := q.store.MoveToTail(ctx, m.ID); err != nil {
		q.logger.Warn("Failed to requeue mutation", zap.String("id", m.ID), zap.Error(err))
	}
}

// Prune drops queued mutations and offline data older than the configured age
func (q *Queue) Prune(ctx context.Context) error {
	cutoff := q.clock.Now().Add(-q.config.PruneAge)
	cutoffMillis := cutoff.UnixMilli()

	q.mu.Lock()
	kept := q.pending[:0]
	for _, m := range q.pending {
		if m.EnqueuedAt >= cutoffMillis {
			kept = append(kept, m)
		}
	}
	q.pending = kept
	for key, rec := range q.data {
		if rec.SavedAt < cutoffMillis {
			delete(q.data, key)
		}
	}
	n := len(q.pending)
	q.mu.Unlock()
	metrics.SetQueueLength(n)

	mutations, err := q.store.PruneMutations(ctx, cutoff)
	if err != nil {
		return err
	}
	records, err := q.store.PruneRecords(ctx, cutoff)
	if err != nil {
		return err
	}

	metrics.RecordPruned("mutation", mutations)
	metrics.RecordPruned("record", records)
	q.logger.Info("Pruned offline data",
		zap.Int64("mutations", mutations),
		zap.Int64("records", records))
	return nil
}

// SaveOfflineData stores a value for offline reads
func (q *Queue) SaveOfflineData(ctx context.Context, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	rec := &models.OfflineRecord{Key: key, Data: raw, SavedAt: q.clock.Now().UnixMilli()}

	q.mu.Lock()
	q.data[key] = rec
	q.mu.Unlock()

	if err := q.store.SaveRecord(ctx, rec); err != nil {
		q.logger.Warn("Failed to persist offline data", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// GetOfflineData returns a value saved with SaveOfflineData
func (q *Queue) GetOfflineData(key string) (json.RawMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.data[key]
	if !ok {
		return nil, false
	}
	return rec.Data, true
}

// Pending returns a copy of the queue in delivery order
func (q *Queue) Pending() []*models.QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.QueuedMutation, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len returns the number of queued mutations
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsOffline reports whether the last connectivity event was offline
func (q *Queue) IsOffline() bool {
	return q.offline.Load()
}

func encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return raw, nil
}

func without(list []*models.QueuedMutation, id string) []*models.QueuedMutation {
	out := make([]*models.QueuedMutation, 0, len(list))
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
