package stream

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

const testFileSize = 1000000

func writeTestVideo(t *testing.T) (string, []byte) {
	t.Helper()
	t.Setenv("WM_DATA_DIR", t.TempDir())
	logger.Init("ERROR")

	data := make([]byte, testFileSize)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "movie.mp4")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func serve(t *testing.T, path, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/video/movie.mp4", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	ServeFile(rec, req, path)
	return rec
}

func TestServeFullFile(t *testing.T) {
	path, data := writeTestVideo(t)

	rec := serve(t, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %q", ct)
	}
	if ar := rec.Header().Get("Accept-Ranges"); ar != "bytes" {
		t.Errorf("expected Accept-Ranges bytes, got %q", ar)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "1000000" {
		t.Errorf("expected Content-Length 1000000, got %q", cl)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("body does not match file contents")
	}
}

func TestServePartialRange(t *testing.T) {
	path, data := writeTestVideo(t)

	rec := serve(t, path, "bytes=500-999")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 500-999/1000000" {
		t.Errorf("unexpected Content-Range %q", cr)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "500" {
		t.Errorf("expected Content-Length 500, got %q", cl)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[500:1000]) {
		t.Error("body does not match requested slice")
	}
}

func TestServeOpenEndedRange(t *testing.T) {
	path, data := writeTestVideo(t)

	rec := serve(t, path, "bytes=999000-")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 999000-999999/1000000" {
		t.Errorf("unexpected Content-Range %q", cr)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[999000:]) {
		t.Error("body does not match tail of file")
	}
}

func TestServeSuffixRange(t *testing.T) {
	path, data := writeTestVideo(t)

	rec := serve(t, path, "bytes=-500")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 999500-999999/1000000" {
		t.Errorf("unexpected Content-Range %q", cr)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[999500:]) {
		t.Error("body does not match file suffix")
	}
}

func TestServeRangeEndClamped(t *testing.T) {
	path, _ := writeTestVideo(t)

	rec := serve(t, path, "bytes=999990-2000000")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 999990-999999/1000000" {
		t.Errorf("unexpected Content-Range %q", cr)
	}
	if rec.Body.Len() != 10 {
		t.Errorf("expected 10 bytes, got %d", rec.Body.Len())
	}
}

func TestServeUnsatisfiableRange(t *testing.T) {
	path, _ := writeTestVideo(t)

	rec := serve(t, path, "bytes=2000000-")
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes */1000000" {
		t.Errorf("unexpected Content-Range %q", cr)
	}
}

func TestServeInvertedRange(t *testing.T) {
	path, _ := writeTestVideo(t)

	rec := serve(t, path, "bytes=900-100")
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", rec.Code)
	}
}

func TestServeMalformedRangeFallsBackToFull(t *testing.T) {
	path, _ := writeTestVideo(t)

	for _, header := range []string{
		"chunks=0-100",
		"bytes=abc-def",
		"bytes=0-100,200-300",
		"bytes",
		"bytes=--5",
	} {
		rec := serve(t, path, header)
		if rec.Code != http.StatusOK {
			t.Errorf("Range %q: expected full 200 fallback, got %d", header, rec.Code)
		}
		if rec.Body.Len() != testFileSize {
			t.Errorf("Range %q: expected full body, got %d bytes", header, rec.Body.Len())
		}
	}
}

func TestServeMissingFile(t *testing.T) {
	t.Setenv("WM_DATA_DIR", t.TempDir())
	logger.Init("ERROR")
	rec := serve(t, filepath.Join(t.TempDir(), "nope.mp4"), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServeHeadRequest(t *testing.T) {
	path, _ := writeTestVideo(t)

	req := httptest.NewRequest(http.MethodHead, "/api/video/movie.mp4", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	ServeFile(rec, req, path)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD must not carry a body, got %d bytes", rec.Body.Len())
	}
	if cl := rec.Header().Get("Content-Length"); cl != "100" {
		t.Errorf("expected Content-Length 100, got %q", cl)
	}
}

func TestContentType(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"a.mp4", "video/mp4"},
		{"a.MKV", "video/x-matroska"},
		{"a.webm", "video/webm"},
		{"a.avi", "video/x-msvideo"},
		{"a.unknown", "video/mp4"},
	}
	for _, tc := range cases {
		if got := ContentType(tc.path); got != tc.want {
			t.Errorf("ContentType(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	const size = 1000
	cases := []struct {
		header   string
		start    int64
		end      int64
		hasRange bool
		wantErr  bool
	}{
		{"", 0, 0, false, false},
		{"bytes=0-499", 0, 499, true, false},
		{"bytes=500-", 500, 999, true, false},
		{"bytes=-200", 800, 999, true, false},
		{"bytes=-2000", 0, 999, true, false},
		{"bytes=0-5000", 0, 999, true, false},
		{"bytes=1000-", 0, 0, true, true},
		{"bytes=500-100", 0, 0, true, true},
		{"garbage", 0, 0, false, false},
		{"bytes=x-y", 0, 0, false, false},
	}
	for _, tc := range cases {
		start, end, hasRange, err := ParseRange(tc.header, size)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseRange(%q): err = %v, wantErr %v", tc.header, err, tc.wantErr)
			continue
		}
		if hasRange != tc.hasRange {
			t.Errorf("ParseRange(%q): hasRange = %v, want %v", tc.header, hasRange, tc.hasRange)
			continue
		}
		if err == nil && hasRange && (start != tc.start || end != tc.end) {
			t.Errorf("ParseRange(%q) = %d-%d, want %d-%d", tc.header, start, end, tc.start, tc.end)
		}
	}
}
