package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go-offline-proxy/internal/models"
)

// ParseMessage parses a raw control message body
func ParseMessage(rawBody []byte) (*models.Message, error) {
	if len(rawBody) == 0 {
		return nil, fmt.Errorf("empty message body")
	}

	var msg models.Message
	if err := json.Unmarshal(rawBody, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse control message: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing type in control message")
	}

	return &msg, nil
}

// WriteSnapshot writes a stored response to w
func WriteSnapshot(w http.ResponseWriter, snap *models.Snapshot) {
	header := w.Header()
	for name, values := range snap.Header {
		header[name] = append([]string(nil), values...)
	}
	header.Set("Content-Length", strconv.Itoa(len(snap.Body)))
	w.WriteHeader(snap.Status)
	_, _ = w.Write(snap.Body)
}

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TextSnapshot builds a synthetic plain text response
func TextSnapshot(status int, body string) *models.Snapshot {
	return &models.Snapshot{
		Method: http.MethodGet,
		Status: status,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte(body),
	}
}

// IsNavigation reports whether r loads a document rather than a subresource
func IsNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Dest") == "document" || r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
