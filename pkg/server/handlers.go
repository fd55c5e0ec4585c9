package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
	"github.com/AIxHunter/Watch-Marker/pkg/playback"
	"github.com/AIxHunter/Watch-Marker/pkg/scan"
	"github.com/AIxHunter/Watch-Marker/pkg/stream"
	"github.com/AIxHunter/Watch-Marker/pkg/tracker"
)

// videoInfo is one listing entry returned to the UI.
type videoInfo struct {
	Path        string         `json:"path"`
	DisplayName string         `json:"display_name"`
	Filename    string         `json:"filename"`
	Title       *scan.Title    `json:"title,omitempty"`
	Progress    *videoProgress `json:"progress"`
	Remarks     *string        `json:"remarks"`
}

type videoProgress struct {
	Position int64   `json:"position"`
	Duration int64   `json:"duration"`
	Percent  float64 `json:"percent"`
}

type folderListing struct {
	Folder     string      `json:"folder"`
	FolderName string      `json:"folder_name"`
	Videos     []videoInfo `json:"videos"`
	Count      int         `json:"count"`
}

// listVideos builds the listing for a folder: discovered videos in sorted
// order, each with saved progress and remarks when present.
func (s *Server) listVideos(folder string) (*folderListing, error) {
	videos, err := scan.Videos(folder)
	if err != nil {
		return nil, err
	}

	list := make([]videoInfo, 0, len(videos))
	for _, videoPath := range videos {
		rel, err := filepath.Rel(folder, videoPath)
		if err != nil {
			rel = videoPath
		}
		info := videoInfo{
			Path:        videoPath,
			DisplayName: rel,
			Filename:    filepath.Base(videoPath),
			Title:       scan.ParseFilename(videoPath),
		}

		progress, err := s.store.GetProgress(videoPath)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			if pct := playback.Percent(progress.Position, progress.Duration); pct != nil {
				info.Progress = &videoProgress{
					Position: progress.Position,
					Duration: *progress.Duration,
					Percent:  *pct,
				}
			}
			if progress.Remarks != nil && *progress.Remarks != "" {
				info.Remarks = progress.Remarks
			}
		}
		list = append(list, info)
	}

	return &folderListing{
		Folder:     folder,
		FolderName: filepath.Base(folder),
		Videos:     list,
		Count:      len(list),
	}, nil
}

// handleLastFolder returns the last opened folder with its listing, or
// {"folder": null} when none is stored or it vanished from disk.
func (s *Server) handleLastFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	lastFolder, err := s.store.LastFolder()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lastFolder == "" {
		writeJSON(w, http.StatusOK, map[string]any{"folder": nil})
		return
	}

	listing, err := s.listVideos(lastFolder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// handleSelectFolder validates a folder, records it as last folder and in
// history, and returns its listing.
func (s *Server) handleSelectFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		FolderPath string `json:"folder_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := os.Stat(req.FolderPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid folder path")
		return
	}
	if !info.IsDir() {
		writeError(w, http.StatusBadRequest, "Path is not a directory")
		return
	}

	if err := s.store.SaveLastFolder(req.FolderPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.AddFolderToHistory(req.FolderPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	listing, err := s.listVideos(req.FolderPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Folder selected", "folder", req.FolderPath, "videos", listing.Count)
	writeJSON(w, http.StatusOK, listing)
}

// handleVideos lists videos for an explicit ?folder=, falling back to the
// stored last folder. Folder selection is always an explicit parameter;
// there is no per-session server-side state.
func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		var err error
		folder, err = s.store.LastFolder()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if folder == "" {
		writeError(w, http.StatusBadRequest, "No folder selected")
		return
	}
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "Invalid folder path")
		return
	}

	listing, err := s.listVideos(folder)
	if err != nil {
		if os.IsPermission(err) {
			writeError(w, http.StatusForbidden, "Permission denied")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// handleStream serves the video file named by the path suffix with range
// support.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	videoPath := strings.TrimPrefix(r.URL.Path, "/api/video/")
	if videoPath == "" {
		writeError(w, http.StatusBadRequest, "No video path provided")
		return
	}
	// The leading slash of the absolute path is swallowed by the route.
	if !strings.HasPrefix(videoPath, "/") {
		videoPath = "/" + videoPath
	}

	logger.Debug("Stream request", "path", videoPath, "range", r.Header.Get("Range"))
	stream.ServeFile(w, r, videoPath)
}

// handleProgress reads (GET), saves (POST), or deletes (DELETE) the
// progress record for a video. Saves go through the autosaver so periodic
// reports respect the autosave cadence; "final" saves flush immediately.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videoPath := r.URL.Query().Get("video_path")
		if videoPath == "" {
			writeError(w, http.StatusBadRequest, "No video path provided")
			return
		}
		progress, err := s.store.GetProgress(videoPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if progress == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"position": 0,
				"duration": nil,
				"remarks":  nil,
			})
			return
		}
		writeJSON(w, http.StatusOK, progress)

	case http.MethodPost:
		var req struct {
			VideoPath string `json:"video_path"`
			Position  *int64 `json:"position"`
			Duration  *int64 `json:"duration"`
			Final     bool   `json:"final"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.VideoPath == "" || req.Position == nil {
			writeError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		var saved bool
		var err error
		if req.Final {
			err = s.saver.Flush(req.VideoPath, *req.Position, req.Duration)
			saved = err == nil
		} else {
			saved, err = s.saver.Report(req.VideoPath, *req.Position, req.Duration)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "saved": saved})

	case http.MethodDelete:
		videoPath := r.URL.Query().Get("video_path")
		if videoPath == "" {
			writeError(w, http.StatusBadRequest, "No video path provided")
			return
		}
		if err := s.store.DeleteProgress(videoPath); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRemarks reads or saves the remark text for a video.
func (s *Server) handleRemarks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videoPath := r.URL.Query().Get("video_path")
		if videoPath == "" {
			writeError(w, http.StatusBadRequest, "No video path provided")
			return
		}
		remark, err := s.store.GetRemark(videoPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"remark": remark})

	case http.MethodPost:
		var req struct {
			VideoPath string `json:"video_path"`
			Remark    string `json:"remark"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.VideoPath == "" {
			writeError(w, http.StatusBadRequest, "No video path provided")
			return
		}
		if err := s.store.SaveRemark(req.VideoPath, req.Remark); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleClearCompleted deletes records at or beyond the completion
// threshold.
func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cleared, err := s.store.ClearCompleted(s.cfg.CompletionThreshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Cleared completed videos", "count", cleared)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": cleared})
}

// handleRecent returns every progress record, most recently watched
// first, with watch counts and percentages.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	entries, err := s.store.AllProgress()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type recentEntry struct {
		Path        string   `json:"path"`
		Filename    string   `json:"filename"`
		Position    int64    `json:"position"`
		Duration    *int64   `json:"duration"`
		Percent     *float64 `json:"percent"`
		LastWatched string   `json:"last_watched"`
		WatchCount  int64    `json:"watch_count"`
	}
	out := make([]recentEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, recentEntry{
			Path:        e.FilePath,
			Filename:    filepath.Base(e.FilePath),
			Position:    e.Position,
			Duration:    e.Duration,
			Percent:     playback.Percent(e.Position, e.Duration),
			LastWatched: e.LastWatched,
			WatchCount:  e.WatchCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": out})
}

// handleFolderHistory lists recently used folders that still exist.
func (s *Server) handleFolderHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	folders, err := s.store.FolderHistory(s.cfg.FolderHistoryLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if folders == nil {
		folders = []tracker.Folder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// handleFolderHistoryItem removes one folder from history (DELETE
// /api/folder-history/<path>).
func (s *Server) handleFolderHistoryItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	folderPath := strings.TrimPrefix(r.URL.Path, "/api/folder-history/")
	if folderPath == "" {
		writeError(w, http.StatusBadRequest, "No folder path provided")
		return
	}
	if !strings.HasPrefix(folderPath, "/") {
		folderPath = "/" + folderPath
	}

	if err := s.store.RemoveFolderFromHistory(folderPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
