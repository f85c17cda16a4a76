package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// handleQueueAppend queues the JSON request body for replay under key
func (s *Server) handleQueueAppend(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	body, ok := s.readJSON(w, r)
	if !ok {
		return
	}

	m, err := s.queue.QueueForSync(r.Context(), key, body)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Queue error: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeStatusResponse(w, http.StatusAccepted, m)
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	items := s.queue.Pending()
	s.writeResponse(w, &QueueResponse{
		Offline: s.queue.IsOffline(),
		Length:  len(items),
		Items:   items,
	})
}

func (s *Server) handleOfflineGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	data, found := s.queue.GetOfflineData(key)
	if !found {
		s.writeErrorResponse(w, "Not found", http.StatusNotFound)
		return
	}
	s.writeResponse(w, &CacheEntryResponse{Key: key, Data: data})
}

// handleOfflineSave keeps the JSON request body for offline reads under key
func (s *Server) handleOfflineSave(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	body, ok := s.readJSON(w, r)
	if !ok {
		return
	}
	if err := s.queue.SaveOfflineData(r.Context(), key, body); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Offline data error: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
