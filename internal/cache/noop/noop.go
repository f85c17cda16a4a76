package noop

import (
	"context"
	"errors"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure NoOpCache implements the persistent tier contracts
var (
	_ interfaces.Tier   = (*NoOpCache)(nil)
	_ interfaces.Pinger = (*NoOpCache)(nil)
)

// ErrDisabled is reported by Ping so the tiered store runs fast-tier only
var ErrDisabled = errors.New("persistent tier disabled")

// NoOpCache is a no-operation tier used when persistence is disabled
type NoOpCache struct{}

// NewNoOpCache creates a new no-operation cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always returns cache miss
func (n *NoOpCache) Get(context.Context, string) (*models.CacheEntry, bool) {
	return nil, false
}

// Set does nothing
func (n *NoOpCache) Set(context.Context, string, *models.CacheEntry) error {
	return nil
}

// Delete does nothing
func (n *NoOpCache) Delete(context.Context, string) {}

// Clear does nothing
func (n *NoOpCache) Clear(context.Context) error {
	return nil
}

// Ping always fails
func (n *NoOpCache) Ping(context.Context) error {
	return ErrDisabled
}
