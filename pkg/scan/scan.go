// Package scan discovers video files under a root folder.
package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

// videoExtensions is the fixed set of recognized video file extensions.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mkv":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// IsVideo reports whether name has a recognized video extension
// (case-insensitive).
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Videos walks the tree rooted at root and returns every file with a
// recognized video extension, sorted lexicographically. Unreadable
// subtrees are skipped with a warning; only an error on the root itself
// is returned.
func Videos(root string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if IsVideo(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}
