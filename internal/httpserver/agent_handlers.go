package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"go-offline-proxy/internal/utils"
)

// handleMessage forwards a control message to the agent. Malformed messages
// are accepted and dropped.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err == nil {
		msg, parseErr := utils.ParseMessage(body)
		if parseErr == nil {
			s.host.PostMessage(*msg)
		} else {
			s.logger.Debug("Ignoring malformed control message", zap.Error(parseErr))
		}
	}
	s.writeStatusResponse(w, http.StatusAccepted, &MessageResponse{Accepted: true})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	status := s.host.Status()
	s.writeResponse(w, &AgentStatusResponse{
		State:           status.State,
		Version:         status.Version,
		ActiveVersion:   status.ActiveVersion,
		Registered:      s.controller.IsRegistered(),
		UpdateAvailable: s.controller.IsUpdateAvailable(),
	})
}

func (s *Server) handleAgentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.controller.CacheStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to collect partition stats", zap.Error(err))
		s.writeErrorResponse(w, "Partition storage unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeResponse(w, stats)
}

// handleApplyUpdate activates a waiting agent version, if any
func (s *Server) handleApplyUpdate(w http.ResponseWriter, r *http.Request) {
	available := s.controller.IsUpdateAvailable()
	if err := s.controller.ApplyUpdate(r.Context()); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeStatusResponse(w, http.StatusAccepted, &MessageResponse{Accepted: available})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	s.controller.CleanupCache()
	s.writeStatusResponse(w, http.StatusAccepted, &MessageResponse{Accepted: true})
}

func (s *Server) handleForceSync(w http.ResponseWriter, r *http.Request) {
	s.controller.ForceSync()
	s.writeStatusResponse(w, http.StatusAccepted, &MessageResponse{Accepted: true})
}
