// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/streamlog/pkg/logfile"
	"github.com/noldarim/streamlog/pkg/monitor"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	manager *monitor.Manager
}

// NewHandlers creates the handler set.
func NewHandlers(manager *monitor.Manager) *Handlers {
	return &Handlers{manager: manager}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// logPath extracts and validates the ?path= query parameter. Relative paths
// are rejected: the server has no meaningful working directory for clients.
func logPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path query parameter is required"})
		return "", false
	}
	if !filepath.IsAbs(path) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path must be an absolute path"})
		return "", false
	}
	return filepath.Clean(path), true
}

// --- log read handlers ---

// GetLogSummary handles GET /api/v1/logs/summary?path=
func (h *Handlers) GetLogSummary(w http.ResponseWriter, r *http.Request) {
	path, ok := logPath(w, r)
	if !ok {
		return
	}

	summary, err := logfile.ReadSummary(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "log file not found", "path": path})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read log file", "context": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ParseLog handles GET /api/v1/logs/parse?path=
func (h *Handlers) ParseLog(w http.ResponseWriter, r *http.Request) {
	path, ok := logPath(w, r)
	if !ok {
		return
	}

	parsed, err := logfile.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "log file not found", "path": path})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to parse log file", "context": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

// CheckLog handles GET /api/v1/logs/valid?path=
func (h *Handlers) CheckLog(w http.ResponseWriter, r *http.Request) {
	path, ok := logPath(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":  path,
		"valid": logfile.Valid(path),
	})
}

// --- watch handlers ---

// watchListResponse is the JSON body for GET /api/v1/watches.
type watchListResponse struct {
	Watches []monitor.WatchInfo `json:"watches"`
}

// ListWatches handles GET /api/v1/watches
func (h *Handlers) ListWatches(w http.ResponseWriter, r *http.Request) {
	watches := h.manager.List()
	if watches == nil {
		watches = []monitor.WatchInfo{}
	}
	writeJSON(w, http.StatusOK, watchListResponse{Watches: watches})
}

// createWatchRequest is the JSON body for watch creation.
type createWatchRequest struct {
	Path string `json:"path"`
}

// CreateWatch handles POST /api/v1/watches
func (h *Handlers) CreateWatch(w http.ResponseWriter, r *http.Request) {
	var body createWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	body.Path = strings.TrimSpace(body.Path)
	if body.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if !filepath.IsAbs(body.Path) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path must be an absolute path"})
		return
	}

	id, err := h.manager.Watch(body.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "log file not found", "path": body.Path})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	info, _ := h.manager.Lookup(id)
	writeJSON(w, http.StatusOK, info)
}

// GetWatch handles GET /api/v1/watches/{id}
func (h *Handlers) GetWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, ok := h.manager.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "watch not found", "id": id})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteWatch handles DELETE /api/v1/watches/{id}
func (h *Handlers) DeleteWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.manager.Unwatch(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "watch not found", "id": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
