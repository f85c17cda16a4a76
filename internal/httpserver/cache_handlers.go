package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-offline-proxy/internal/cache/service"
)

// handleCacheGet returns a tiered cache value
func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	data, found, err := s.cacheService.Store().GetRaw(r.Context(), key)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Cache error: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		s.writeErrorResponse(w, "Not found", http.StatusNotFound)
		return
	}

	s.writeResponse(w, &CacheEntryResponse{Key: key, Data: data})
}

// handleCacheSet stores the JSON request body. The optional ttl query
// parameter is in milliseconds.
func (s *Server) handleCacheSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	ttl, ok := s.queryTTL(w, r)
	if !ok {
		return
	}
	body, ok := s.readJSON(w, r)
	if !ok {
		return
	}

	if err := s.cacheService.Store().Set(r.Context(), key, body, ttl); err != nil {
		s.logger.Error("Failed to store cache entry", zap.String("key", key), zap.Error(err))
		s.writeErrorResponse(w, fmt.Sprintf("Cache error: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCacheLoad returns the cached JSON for key, loading it from the
// upstream path in src when absent. refresh=true reloads a cached value.
func (s *Server) handleCacheLoad(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	query := r.URL.Query()

	src := query.Get("src")
	if !strings.HasPrefix(src, "/") || strings.HasPrefix(src, "//") {
		s.writeErrorResponse(w, "src must be an upstream path", http.StatusBadRequest)
		return
	}
	ttl, ok := s.queryTTL(w, r)
	if !ok {
		return
	}

	load := s.cacheService.GetOrLoad
	if refresh, _ := strconv.ParseBool(query.Get("refresh")); refresh {
		load = s.cacheService.Refresh
	}

	data, err := load(r.Context(), key, ttl, s.upstreamLoader(src))
	if err != nil {
		s.logger.Warn("Cache load failed", zap.String("key", key), zap.String("src", src), zap.Error(err))
		s.writeErrorResponse(w, fmt.Sprintf("Load failed: %v", err), http.StatusBadGateway)
		return
	}
	s.writeResponse(w, &CacheEntryResponse{Key: key, Data: data})
}

// upstreamLoader fetches src and accepts only successful JSON responses
func (s *Server) upstreamLoader(src string) service.Loader {
	return func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		snap, err := s.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if !snap.OK() {
			return nil, fmt.Errorf("upstream returned %d for %s", snap.Status, src)
		}
		if !json.Valid(snap.Body) {
			return nil, fmt.Errorf("upstream response for %s is not JSON", src)
		}
		return json.RawMessage(snap.Body), nil
	}
}

// queryTTL parses the optional ttl query parameter, in milliseconds
func (s *Server) queryTTL(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return 0, true
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		s.writeErrorResponse(w, "Invalid ttl", http.StatusBadRequest)
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	s.cacheService.Store().Delete(r.Context(), mux.Vars(r)["key"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheService.Store().Clear(r.Context()); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Cache error: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, s.cacheService.Store().Stats())
}
