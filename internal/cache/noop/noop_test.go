package noop

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

func TestNewNoOpCache(t *testing.T) {
	cache := NewNoOpCache()

	// Verify it implements the tier interfaces
	var _ interfaces.Tier = cache
	var _ interfaces.Pinger = cache

	if cache == nil {
		t.Errorf("NewNoOpCache() should return a *NoOpCache instance")
	}
}

func TestNoOpCache_Get(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	// Test with various keys
	testCases := []string{
		"test-key",
		"",
		"very-long-key-with-special-characters-!@#$%^&*()",
	}

	for _, key := range testCases {
		_ = cache.Set(ctx, key, models.NewCacheEntry([]byte(`1`), time.Now(), time.Minute))

		entry, found := cache.Get(ctx, key)
		if found {
			t.Errorf("Get(%q) found = true, want false", key)
		}
		if entry != nil {
			t.Errorf("Get(%q) entry = %v, want nil", key, entry)
		}
	}
}

func TestNoOpCache_WritesSucceed(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", models.NewCacheEntry([]byte(`1`), time.Now(), time.Minute)); err != nil {
		t.Errorf("Set() error = %v, want nil", err)
	}
	cache.Delete(ctx, "k")
	if err := cache.Clear(ctx); err != nil {
		t.Errorf("Clear() error = %v, want nil", err)
	}
}

func TestNoOpCache_Ping(t *testing.T) {
	cache := NewNoOpCache()

	if err := cache.Ping(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Ping() error = %v, want ErrDisabled", err)
	}
}
