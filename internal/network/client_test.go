package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/config"
)

func testBreaker() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
}

func newTestClient(t *testing.T, upstream string) *Client {
	t.Helper()
	c, err := NewClient(upstream, time.Second, testBreaker(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second, testBreaker(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats", r.URL.Path)
		assert.Equal(t, "week", r.URL.Query().Get("range"))
		assert.Equal(t, "abc", r.Header.Get("X-Session"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"steps":42}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := httptest.NewRequest(http.MethodGet, "http://client.local/api/stats?range=week", nil)
	req.Header.Set("X-Session", "abc")

	snap, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, snap.OK())
	assert.Equal(t, http.MethodGet, snap.Method)
	assert.Equal(t, "/api/stats?range=week", snap.URL)
	assert.Equal(t, `{"steps":42}`, string(snap.Body))
	assert.Equal(t, "application/json", snap.Header.Get("Content-Type"))
	assert.NotEmpty(t, snap.Header.Get("Date"))
}

func TestClient_Fetch_HTTPErrorIsSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	snap, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, snap.OK())
	assert.Equal(t, http.StatusInternalServerError, snap.Status)
}

func TestClient_Fetch_ForwardsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, `{"name":"a"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	req := httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(`{"name":"a"}`))
	snap, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, snap.Status)
}

func TestClient_Fetch_Offline(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	upstream := server.URL
	server.Close()

	c := newTestClient(t, upstream)
	_, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOffline))
}

func TestClient_Fetch_BreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	upstream := server.URL
	server.Close()

	c := newTestClient(t, upstream)
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, ErrOffline)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrOffline)
	assert.Contains(t, err.Error(), gobreaker.ErrOpenState.Error())
}

func TestClient_Fetch_BodyTooLarge(t *testing.T) {
	chunk := strings.Repeat("x", 1<<20)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		for i := 0; i < 33; i++ {
			if _, err := io.WriteString(w, chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	for i := 0; i < 2; i++ {
		snap, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/export.bin", nil))
		require.ErrorIs(t, err, ErrBodyTooLarge)
		assert.False(t, errors.Is(err, ErrOffline))
		assert.Nil(t, snap)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState(), "an oversized body is not an upstream failure")
}

func TestClient_Fetch_BodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, maxBodySize))
	}))
	defer server.Close()

	snap, err := newTestClient(t, server.URL).Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/export.bin", nil))
	require.NoError(t, err)
	assert.Len(t, snap.Body, maxBodySize)
}

func TestClient_Resolve(t *testing.T) {
	c := newTestClient(t, "http://backend:3000/")
	assert.Equal(t, "http://backend:3000/api/x?y=1", c.Resolve("/api/x?y=1"))
	assert.Equal(t, "http://backend:3000/health", c.Resolve("health"))
}

func TestClient_Probe(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.NoError(t, c.Probe(context.Background(), "/health"))

	status = http.StatusServiceUnavailable
	assert.ErrorIs(t, c.Probe(context.Background(), "/health"), ErrOffline)
}
