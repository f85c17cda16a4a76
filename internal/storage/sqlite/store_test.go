package sqlite

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/models"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "offline.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshot(url, body string) *models.Snapshot {
	return &models.Snapshot{
		Method:   http.MethodGet,
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"text/plain"}, "Date": {"Mon, 19 Oct 2026 10:00:00 GMT"}},
		Body:     []byte(body),
		StoredAt: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()

	store, err := Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "static-v1", "GET /", snapshot("/", "home")))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	snap, found, err := store.Match(ctx, "static-v1", "GET /")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "home", string(snap.Body))
}

func TestPartitions_PutAndMatch(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	want := snapshot("/api/stats", `{"workouts":3}`)
	require.NoError(t, store.Put(ctx, "api-v1", "GET /api/stats", want))

	got, found, err := store.Match(ctx, "api-v1", "GET /api/stats")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Method, got.Method)
	assert.Equal(t, want.URL, got.URL)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Header, got.Header)
	assert.Equal(t, want.Body, got.Body)
	assert.True(t, want.StoredAt.Equal(got.StoredAt))

	// Overwrite replaces the snapshot
	require.NoError(t, store.Put(ctx, "api-v1", "GET /api/stats", snapshot("/api/stats", `{"workouts":4}`)))
	got, _, err = store.Match(ctx, "api-v1", "GET /api/stats")
	require.NoError(t, err)
	assert.Equal(t, `{"workouts":4}`, string(got.Body))

	_, found, err = store.Match(ctx, "api-v1", "GET /missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.Match(ctx, "api-v2", "GET /api/stats")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPartitions_PutAllAndList(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutAll(ctx, "static-v1", map[string]*models.Snapshot{
		"GET /":                    snapshot("/", "home"),
		"GET /static/js/bundle.js": snapshot("/static/js/bundle.js", "js"),
		"GET /static/css/main.css": snapshot("/static/css/main.css", "css"),
		"GET /manifest.json":       snapshot("/manifest.json", "{}"),
	}))
	require.NoError(t, store.Open(ctx, "dynamic-v1"))

	keys, err := store.Keys(ctx, "static-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /", "GET /manifest.json", "GET /static/css/main.css", "GET /static/js/bundle.js"}, keys)

	partitions, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v1", "static-v1"}, partitions)

	keys, err = store.Keys(ctx, "dynamic-v1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPartitions_PutAllIsAtomic(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	err := store.PutAll(ctx, "static-v1", map[string]*models.Snapshot{
		"GET /":    snapshot("/", "home"),
		"GET /bad": nil,
	})
	require.Error(t, err)

	partitions, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, partitions)
}

func TestPartitions_Delete(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "images-v1", "GET /a.png", snapshot("/a.png", "a")))
	require.NoError(t, store.Put(ctx, "images-v1", "GET /b.png", snapshot("/b.png", "b")))

	require.NoError(t, store.Delete(ctx, "images-v1", "GET /a.png"))

	keys, err := store.Keys(ctx, "images-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /b.png"}, keys)
}

func TestPartitions_DeletePartition(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "static-v1", "GET /", snapshot("/", "old")))
	require.NoError(t, store.Put(ctx, "static-v2", "GET /", snapshot("/", "new")))

	deleted, err := store.DeletePartition(ctx, "static-v1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeletePartition(ctx, "static-v1")
	require.NoError(t, err)
	assert.False(t, deleted)

	partitions, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"static-v2"}, partitions)

	_, found, err := store.Match(ctx, "static-v1", "GET /")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueue_OrderAndRequeue(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, &models.QueuedMutation{
			ID:         id,
			Key:        "workout",
			Payload:    json.RawMessage(`{"id":"` + id + `"}`),
			EnqueuedAt: int64(1000 + i),
		}))
	}

	require.NoError(t, store.MoveToTail(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "c"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.JSONEq(t, `{"id":"a"}`, string(list[1].Payload))
	assert.Equal(t, int64(1000), list[1].EnqueuedAt)

	// Appends after a requeue still land at the tail
	require.NoError(t, store.Append(ctx, &models.QueuedMutation{ID: "d", Key: "k", Payload: json.RawMessage(`1`), EnqueuedAt: 2000}))
	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d", list[2].ID)
}

func TestQueue_AppendRequiresID(t *testing.T) {
	store := openTempStore(t)
	assert.Error(t, store.Append(context.Background(), &models.QueuedMutation{Key: "k"}))
}

func TestQueue_Prune(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	old := now.Add(-8 * 24 * time.Hour).UnixMilli()
	fresh := now.Add(-time.Hour).UnixMilli()

	require.NoError(t, store.Append(ctx, &models.QueuedMutation{ID: "old", Key: "k", Payload: json.RawMessage(`1`), EnqueuedAt: old}))
	require.NoError(t, store.Append(ctx, &models.QueuedMutation{ID: "fresh", Key: "k", Payload: json.RawMessage(`2`), EnqueuedAt: fresh}))
	require.NoError(t, store.SaveRecord(ctx, &models.OfflineRecord{Key: "old", Data: json.RawMessage(`1`), SavedAt: old}))
	require.NoError(t, store.SaveRecord(ctx, &models.OfflineRecord{Key: "fresh", Data: json.RawMessage(`2`), SavedAt: fresh}))

	cutoff := now.Add(-7 * 24 * time.Hour)

	n, err := store.PruneMutations(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.PruneRecords(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].ID)

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh", records[0].Key)
}

func TestRecords_Upsert(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, &models.OfflineRecord{Key: "profile", Data: json.RawMessage(`{"v":1}`), SavedAt: 1}))
	require.NoError(t, store.SaveRecord(ctx, &models.OfflineRecord{Key: "profile", Data: json.RawMessage(`{"v":2}`), SavedAt: 2}))

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"v":2}`, string(records[0].Data))
	assert.Equal(t, int64(2), records[0].SavedAt)

	assert.Error(t, store.SaveRecord(ctx, &models.OfflineRecord{}))
}

func TestCacheTier(t *testing.T) {
	store := openTempStore(t)
	tier := store.CacheTier()
	ctx := context.Background()

	require.NoError(t, tier.Ping(ctx))

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	entry := models.NewCacheEntry(json.RawMessage(`{"name":"ada"}`), now, time.Minute)
	require.NoError(t, tier.Set(ctx, "profile", entry))

	got, found := tier.Get(ctx, "profile")
	require.True(t, found)
	assert.JSONEq(t, `{"name":"ada"}`, string(got.Data))
	assert.Equal(t, entry.Timestamp, got.Timestamp)
	assert.Equal(t, entry.TTL, got.TTL)

	_, found = tier.Get(ctx, "missing")
	assert.False(t, found)

	require.NoError(t, tier.Set(ctx, "short", models.NewCacheEntry(json.RawMessage(`1`), now, time.Second)))
	purged, err := tier.PurgeExpired(ctx, now.Add(30*time.Second).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	tier.Delete(ctx, "profile")
	_, found = tier.Get(ctx, "profile")
	assert.False(t, found)

	require.NoError(t, tier.Set(ctx, "a", entry))
	require.NoError(t, tier.Clear(ctx))
	_, found = tier.Get(ctx, "a")
	assert.False(t, found)
}

func TestAgentState_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()

	store, err := Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)

	version, err := store.ActiveVersion(ctx)
	require.NoError(t, err)
	assert.Empty(t, version)

	require.NoError(t, store.SaveActiveVersion(ctx, "v1"))
	require.NoError(t, store.SaveActiveVersion(ctx, "v2"))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err = store.ActiveVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
}
