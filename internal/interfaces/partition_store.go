package interfaces

import (
	"context"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=partition_store.go -destination=mock/partition_store.go

// PartitionStore is the durable, request-keyed store behind the interception agent
type PartitionStore interface {
	// Open creates the partition if it does not exist yet
	Open(ctx context.Context, partition string) error
	Match(ctx context.Context, partition, key string) (*models.Snapshot, bool, error)
	Put(ctx context.Context, partition, key string, snap *models.Snapshot) error
	// PutAll writes every snapshot or none of them
	PutAll(ctx context.Context, partition string, snaps map[string]*models.Snapshot) error
	Delete(ctx context.Context, partition, key string) error
	Keys(ctx context.Context, partition string) ([]string, error)
	Partitions(ctx context.Context) ([]string, error)
	DeletePartition(ctx context.Context, partition string) (bool, error)
}
