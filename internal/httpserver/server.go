package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-offline-proxy/internal/cache/service"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// unixPrefix selects a Unix socket listener, as in unix:/run/offline-proxy.sock
const unixPrefix = "unix:"

// maxBodySize caps control-plane request bodies
const maxBodySize = 1 << 20

// AgentHost receives control messages for the interception agent
type AgentHost interface {
	PostMessage(msg models.Message)
	Status() models.StateChange
}

// AgentController exposes the page-side view of the agent
type AgentController interface {
	ApplyUpdate(ctx context.Context) error
	CleanupCache()
	ForceSync()
	CacheStats(ctx context.Context) (*models.PartitionStats, error)
	IsRegistered() bool
	IsUpdateAvailable() bool
}

// WriteQueue is the offline write queue and its offline data snapshots
type WriteQueue interface {
	QueueForSync(ctx context.Context, key string, payload any) (*models.QueuedMutation, error)
	Pending() []*models.QueuedMutation
	IsOffline() bool
	SaveOfflineData(ctx context.Context, key string, data any) error
	GetOfflineData(key string) (json.RawMessage, bool)
}

// Server serves the control plane under /__ and hands every other request to the proxy
type Server struct {
	proxy        http.Handler
	host         AgentHost
	controller   AgentController
	cacheService *service.CacheService
	queue        WriteQueue
	fetcher      interfaces.Fetcher
	logger       *zap.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new HTTP server. fetcher loads upstream JSON into the
// tiered cache for /__cache/load.
func NewServer(proxy http.Handler, host AgentHost, controller AgentController, cacheService *service.CacheService, queue WriteQueue, fetcher interfaces.Fetcher, logger *zap.Logger) *Server {
	return &Server{
		proxy:        proxy,
		host:         host,
		controller:   controller,
		cacheService: cacheService,
		queue:        queue,
		fetcher:      fetcher,
		logger:       logger,
	}
}

// Start listens on addr, a TCP address or unix:/path/to.sock, and serves until Stop
func (s *Server) Start(addr string) error {
	listener, err := s.listen(addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	s.logger.Info("Starting offline proxy HTTP server", zap.String("addr", addr))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) listen(addr string) (net.Listener, error) {
	socketPath, isUnix := strings.CutPrefix(addr, unixPrefix)
	if !isUnix {
		return net.Listen("tcp", addr)
	}

	// Remove existing socket file
	if err := os.RemoveAll(socketPath); err != nil {
		s.logger.Warn("Failed to remove existing socket file", zap.String("path", socketPath), zap.Error(err))
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	// Set socket permissions (readable/writable by owner and group)
	if err := os.Chmod(socketPath, 0660); err != nil {
		s.logger.Warn("Failed to set socket permissions", zap.String("path", socketPath), zap.Error(err))
	}
	return listener, nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	s.logger.Info("Stopping offline proxy HTTP server")
	return server.Shutdown(ctx)
}

// Running reports whether Start has begun serving
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.createRouter()
}

// createRouter creates and configures the HTTP router
func (s *Server) createRouter() *mux.Router {
	router := mux.NewRouter()

	// Agent control
	router.HandleFunc("/__agent/message", s.handleMessage).Methods("POST")
	router.HandleFunc("/__agent/status", s.handleAgentStatus).Methods("GET")
	router.HandleFunc("/__agent/stats", s.handleAgentStats).Methods("GET")
	router.HandleFunc("/__agent/update", s.handleApplyUpdate).Methods("POST")
	router.HandleFunc("/__agent/cleanup", s.handleCleanup).Methods("POST")
	router.HandleFunc("/__agent/sync", s.handleForceSync).Methods("POST")

	// Tiered cache
	router.HandleFunc("/__cache/stats", s.handleCacheStats).Methods("GET")
	router.HandleFunc("/__cache/entries", s.handleCacheClear).Methods("DELETE")
	router.HandleFunc("/__cache/entries/{key}", s.handleCacheGet).Methods("GET")
	router.HandleFunc("/__cache/entries/{key}", s.handleCacheSet).Methods("PUT")
	router.HandleFunc("/__cache/entries/{key}", s.handleCacheDelete).Methods("DELETE")
	router.HandleFunc("/__cache/load/{key}", s.handleCacheLoad).Methods("GET")

	// Offline write queue
	router.HandleFunc("/__queue", s.handleQueueList).Methods("GET")
	router.HandleFunc("/__queue/{key}", s.handleQueueAppend).Methods("POST")

	// Offline data snapshots
	router.HandleFunc("/__offline/{key}", s.handleOfflineGet).Methods("GET")
	router.HandleFunc("/__offline/{key}", s.handleOfflineSave).Methods("PUT")

	// Health check
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Everything else goes through the interception agent
	router.PathPrefix("/").Handler(s.proxy)

	return router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// readBody reads a request body of at most maxBodySize bytes
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

// readJSON reads a JSON request body, answering 413 or 400 when it is unusable
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := s.readBody(w, r)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.writeErrorResponse(w, "Body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	case err != nil || !json.Valid(body):
		s.writeErrorResponse(w, "Body must be valid JSON", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// writeResponse writes JSON response
func (s *Server) writeResponse(w http.ResponseWriter, v interface{}) {
	s.writeStatusResponse(w, http.StatusOK, v)
}

func (s *Server) writeStatusResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeErrorResponse writes error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeStatusResponse(w, statusCode, &ErrorResponse{Success: false, Error: message})
}
