package server

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// browseItem is one entry in the folder-picker listing.
type browseItem struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	IsParent bool   `json:"is_parent"`
}

// handleBrowse lists subdirectories of ?path= for the folder picker.
// Hidden entries are skipped; a ".." entry points at the parent.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/"
		}
		path = home
	}
	if _, err := os.Stat(path); err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			home = "/"
		}
		path = home
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			writeError(w, http.StatusForbidden, "Permission denied")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := []browseItem{}
	if parent := filepath.Dir(path); parent != path {
		items = append(items, browseItem{
			Name:     "..",
			Path:     parent,
			IsDir:    true,
			IsParent: true,
		})
	}

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		items = append(items, browseItem{
			Name:  name,
			Path:  filepath.Join(path, name),
			IsDir: true,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current_path": path,
		"items":        items,
	})
}
