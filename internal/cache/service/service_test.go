package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/cache/l1"
	"go-offline-proxy/internal/cache/noop"
	"go-offline-proxy/internal/cache/tiered"
	"go-offline-proxy/internal/config"
)

func newTestService(t *testing.T) (*CacheService, *clock.Mock) {
	t.Helper()
	fast, err := l1.NewBigCache(&config.FastTierConfig{Size: 10}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fast.Close() })

	mockClock := clock.NewMock()
	store := tiered.New(context.Background(), fast, noop.NewNoOpCache(), nil, mockClock, tiered.Options{}, zap.NewNop())
	return NewCacheService(store, time.Minute, zaptest.NewLogger(t)), mockClock
}

func TestCacheService_GetOrLoad(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]int{"workouts": 12}, nil
	}

	data, err := svc.GetOrLoad(ctx, "stats", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workouts":12}`, string(data))

	data, err = svc.GetOrLoad(ctx, "stats", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workouts":12}`, string(data))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheService_GetOrLoad_ReloadsAfterExpiry(t *testing.T) {
	svc, mockClock := newTestService(t)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		return calls.Add(1), nil
	}

	_, err := svc.GetOrLoad(ctx, "n", time.Second, loader)
	require.NoError(t, err)

	mockClock.Add(2 * time.Second)
	data, err := svc.GetOrLoad(ctx, "n", time.Second, loader)
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestCacheService_GetOrLoad_SharesConcurrentLoads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := svc.GetOrLoad(ctx, "k", time.Minute, loader)
			assert.NoError(t, err)
			assert.Equal(t, `"shared"`, string(data))
		}()
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheService_GetOrLoad_LoaderError(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return nil, errors.New("offline")
	})
	assert.Error(t, err)

	var v string
	found, err := svc.Store().Get(context.Background(), "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheService_Refresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Store().Set(ctx, "k", "old", time.Minute))

	data, err := svc.Refresh(ctx, "k", time.Minute, func(context.Context) (any, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, `"new"`, string(data))

	var v string
	found, err := svc.Store().Get(ctx, "k", &v)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", v)
}

func TestCacheService_StartStop(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Start()
	svc.Stop()
}
