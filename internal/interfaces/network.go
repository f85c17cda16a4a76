package interfaces

import (
	"context"
	"net/http"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=network.go -destination=mock/network.go

// Fetcher performs upstream requests. Any returned error is a network failure;
// HTTP error statuses come back as snapshots.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*models.Snapshot, error)
}

// Deliverer replays one queued mutation against the upstream
type Deliverer interface {
	Deliver(ctx context.Context, m *models.QueuedMutation) error
}
