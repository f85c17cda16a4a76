package interfaces

import (
	"context"
	"time"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=queue_store.go -destination=mock/queue_store.go

// QueueStore persists the offline write queue and offline data snapshots
type QueueStore interface {
	Append(ctx context.Context, m *models.QueuedMutation) error
	// List returns queued mutations in delivery order
	List(ctx context.Context) ([]*models.QueuedMutation, error)
	Remove(ctx context.Context, id string) error
	MoveToTail(ctx context.Context, id string) error
	PruneMutations(ctx context.Context, olderThan time.Time) (int64, error)

	SaveRecord(ctx context.Context, rec *models.OfflineRecord) error
	ListRecords(ctx context.Context) ([]*models.OfflineRecord, error)
	PruneRecords(ctx context.Context, olderThan time.Time) (int64, error)
}
