// Package server exposes the HTTP API consumed by the web UI: video
// listings, progress read/write, remarks, folder history, filesystem
// browsing, range streaming, and a websocket push channel.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/AIxHunter/Watch-Marker/pkg/config"
	"github.com/AIxHunter/Watch-Marker/pkg/logger"
	"github.com/AIxHunter/Watch-Marker/pkg/playback"
	"github.com/AIxHunter/Watch-Marker/pkg/tracker"
	"github.com/AIxHunter/Watch-Marker/pkg/web"
)

// Server handles API requests and serves the frontend
type Server struct {
	cfg   *config.Config
	store *tracker.Store
	saver *playback.Autosaver

	// WebSocket client registry
	clients   map[*Client]bool
	clientsMu sync.Mutex
	logCh     chan string
}

// NewServer creates a new API server and starts the websocket broadcast
// loops for progress events and log lines.
func NewServer(cfg *config.Config, store *tracker.Store, saver *playback.Autosaver) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		saver:   saver,
		clients: make(map[*Client]bool),
		logCh:   make(chan string, 100),
	}

	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()
	go s.broadcastProgress()

	return s
}

// SetupRoutes mounts all API routes plus the embedded frontend on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/last-folder", s.handleLastFolder)
	mux.HandleFunc("/api/select-folder", s.handleSelectFolder)
	mux.HandleFunc("/api/videos", s.handleVideos)
	mux.HandleFunc("/api/video/", s.handleStream)
	mux.HandleFunc("/api/progress", s.handleProgress)
	mux.HandleFunc("/api/remarks", s.handleRemarks)
	mux.HandleFunc("/api/clear-completed", s.handleClearCompleted)
	mux.HandleFunc("/api/recent", s.handleRecent)
	mux.HandleFunc("/api/folder-history", s.handleFolderHistory)
	mux.HandleFunc("/api/folder-history/", s.handleFolderHistoryItem)
	mux.HandleFunc("/api/browse", s.handleBrowse)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.Handle("/", web.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"app":    "watchmarker",
	})
}

// handleConfig returns the active configuration plus the JSON keys that
// are pinned by environment variables (the UI warns that edits to those
// are overwritten on restart).
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	overridden := config.GetEnvOverrideKeys()
	if overridden == nil {
		overridden = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":         s.cfg,
		"env_overridden": overridden,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
