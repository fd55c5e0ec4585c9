// Package stream serves video files over HTTP with byte-range support.
// The byte stream is served unmodified; no transcoding or decoding.
package stream

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

// contentTypes maps video extensions to MIME types. Unknown extensions
// fall back to video/mp4.
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
}

// ContentType returns the MIME type for a video path by extension.
func ContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "video/mp4"
}

// ParseRange parses a single-range header of the form "bytes=start-end"
// against a resource of the given size.
//
// Returns hasRange=false when the header is empty or malformed (not a
// bytes= spec, multiple ranges, garbage numbers); the caller then serves
// the full file with a 200, matching the documented fallback. A
// syntactically valid but unsatisfiable range (start beyond the end of
// the file, start > end) returns an error, which maps to a 416.
func ParseRange(header string, size int64) (start, end int64, hasRange bool, err error) {
	if header == "" {
		return 0, 0, false, nil
	}
	spec, ok := strings.CutPrefix(strings.TrimSpace(strings.ToLower(header)), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false, nil
	}

	first, rest, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, false, nil
	}

	if first == "" {
		// Suffix form: bytes=-N serves the final N bytes.
		n, perr := strconv.ParseInt(rest, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, false, nil
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true, nil
	}

	start, perr := strconv.ParseInt(first, 10, 64)
	if perr != nil || start < 0 {
		return 0, 0, false, nil
	}
	if start >= size {
		return 0, 0, true, fmt.Errorf("range start %d beyond file size %d", start, size)
	}

	end = size - 1
	if rest != "" {
		end, perr = strconv.ParseInt(rest, 10, 64)
		if perr != nil {
			return 0, 0, false, nil
		}
		if end < start {
			return 0, 0, true, fmt.Errorf("range end %d before start %d", end, start)
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true, nil
}

// ServeFile serves path to the client, honoring a single Range header.
// Missing files yield 404, unsatisfiable ranges 416 with a
// "bytes */size" Content-Range, valid ranges a 206 with exactly
// end-start+1 bytes, and everything else the full file with a 200.
func ServeFile(w http.ResponseWriter, r *http.Request, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}
	size := info.Size()

	start, end, hasRange, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			http.Error(w, "Permission denied", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to open video", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", ContentType(path))
	w.Header().Set("Accept-Ranges", "bytes")

	if !hasRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, f); err != nil {
			// Client gone mid-stream; nothing to recover.
			logger.Debug("Stream aborted", "path", path, "err", err)
		}
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		logger.Error("Seek failed", "path", path, "offset", start, "err", err)
		return
	}
	if _, err := io.CopyN(w, f, length); err != nil {
		logger.Debug("Range stream aborted", "path", path, "err", err)
	}
}
