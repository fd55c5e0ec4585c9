package tracker

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("WM_DATA_DIR", t.TempDir())
	logger.Init("ERROR")
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func int64p(v int64) *int64 { return &v }

func TestSaveAndGetProgress(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProgress("/videos/a.mp4", 1000, int64p(2000)); err != nil {
		t.Fatalf("failed to save progress: %v", err)
	}

	p, err := s.GetProgress("/videos/a.mp4")
	if err != nil {
		t.Fatalf("failed to get progress: %v", err)
	}
	if p == nil {
		t.Fatal("expected progress record")
	}
	if p.Position != 1000 {
		t.Errorf("expected position 1000, got %d", p.Position)
	}
	if p.Remarks != nil {
		t.Errorf("expected nil remarks before any are saved, got %q", *p.Remarks)
	}
	if p.Duration == nil || *p.Duration != 2000 {
		t.Errorf("expected duration 2000, got %v", p.Duration)
	}
}

func TestGetProgressAbsent(t *testing.T) {
	s := newTestStore(t)

	p, err := s.GetProgress("/videos/missing.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for absent record, got %+v", p)
	}
}

func TestDurationPreservedWhenOmitted(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProgress("/videos/a.mp4", 1000, int64p(2000)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveProgress("/videos/a.mp4", 1500, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	p, err := s.GetProgress("/videos/a.mp4")
	if err != nil || p == nil {
		t.Fatalf("get failed: %v", err)
	}
	if p.Position != 1500 {
		t.Errorf("expected position 1500, got %d", p.Position)
	}
	if p.Duration == nil || *p.Duration != 2000 {
		t.Errorf("expected duration 2000 preserved, got %v", p.Duration)
	}
}

func TestWatchCountIncrements(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.SaveProgress("/videos/a.mp4", int64(i*1000), int64p(60000)); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	entries, err := s.AllProgress()
	if err != nil {
		t.Fatalf("failed to list progress: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].WatchCount != 3 {
		t.Errorf("expected watch_count 3, got %d", entries[0].WatchCount)
	}
}

func TestRemarkDoesNotBumpWatchCount(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProgress("/videos/a.mp4", 1000, int64p(2000)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveRemark("/videos/a.mp4", "great scene at 12:00"); err != nil {
		t.Fatalf("save remark failed: %v", err)
	}

	entries, err := s.AllProgress()
	if err != nil || len(entries) != 1 {
		t.Fatalf("list failed: %v (%d entries)", err, len(entries))
	}
	if entries[0].WatchCount != 1 {
		t.Errorf("remark save must not bump watch_count: got %d", entries[0].WatchCount)
	}
	if entries[0].Position != 1000 {
		t.Errorf("remark save must not touch position: got %d", entries[0].Position)
	}

	remark, err := s.GetRemark("/videos/a.mp4")
	if err != nil {
		t.Fatalf("get remark failed: %v", err)
	}
	if remark != "great scene at 12:00" {
		t.Errorf("unexpected remark %q", remark)
	}
}

func TestRemarkCreatesRecordAtZero(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveRemark("/videos/new.mp4", "watch later"); err != nil {
		t.Fatalf("save remark failed: %v", err)
	}

	p, err := s.GetProgress("/videos/new.mp4")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p == nil {
		t.Fatal("remark save should create a record")
	}
	if p.Position != 0 {
		t.Errorf("expected position 0, got %d", p.Position)
	}
	if p.Duration != nil {
		t.Errorf("expected unknown duration, got %v", *p.Duration)
	}
	if p.Remarks == nil || *p.Remarks != "watch later" {
		t.Errorf("unexpected remarks %v", p.Remarks)
	}
}

func TestGetRemarkAbsent(t *testing.T) {
	s := newTestStore(t)

	remark, err := s.GetRemark("/videos/none.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remark != "" {
		t.Errorf("expected empty remark, got %q", remark)
	}
}

func TestClearCompleted(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProgress("/videos/done.mp4", 960, int64p(1000)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveProgress("/videos/partial.mp4", 100, int64p(1000)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveProgress("/videos/unknown.mp4", 5000, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cleared, err := s.ClearCompleted(0.95)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}

	if p, _ := s.GetProgress("/videos/done.mp4"); p != nil {
		t.Error("completed video should have been removed")
	}
	if p, _ := s.GetProgress("/videos/partial.mp4"); p == nil {
		t.Error("partial video should remain")
	}
	if p, _ := s.GetProgress("/videos/unknown.mp4"); p == nil {
		t.Error("video with unknown duration must never be auto-cleared")
	}
}

func TestDeleteProgress(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProgress("/videos/a.mp4", 1000, int64p(2000)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.DeleteProgress("/videos/a.mp4"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if p, _ := s.GetProgress("/videos/a.mp4"); p != nil {
		t.Error("record should be gone after delete")
	}
}

func TestLastFolder(t *testing.T) {
	s := newTestStore(t)

	folder := t.TempDir()
	if err := s.SaveLastFolder(folder); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.LastFolder()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != folder {
		t.Errorf("expected %q, got %q", folder, got)
	}
}

func TestLastFolderGoneFromDisk(t *testing.T) {
	s := newTestStore(t)

	folder := filepath.Join(t.TempDir(), "gone")
	if err := os.Mkdir(folder, 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLastFolder(folder); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := os.Remove(folder); err != nil {
		t.Fatal(err)
	}

	got, err := s.LastFolder()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty for vanished folder, got %q", got)
	}
}

func TestFolderHistoryFiltersMissing(t *testing.T) {
	s := newTestStore(t)

	kept := t.TempDir()
	gone := filepath.Join(t.TempDir(), "gone")
	if err := os.Mkdir(gone, 0755); err != nil {
		t.Fatal(err)
	}

	if err := s.AddFolderToHistory(kept); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.AddFolderToHistory(gone); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	folders, err := s.FolderHistory(20)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("expected 1 existing folder, got %d", len(folders))
	}
	if folders[0].Path != kept {
		t.Errorf("expected %q, got %q", kept, folders[0].Path)
	}
	if folders[0].Name != filepath.Base(kept) {
		t.Errorf("expected basename %q, got %q", filepath.Base(kept), folders[0].Name)
	}
}

func TestFolderHistoryAccessCount(t *testing.T) {
	s := newTestStore(t)

	folder := t.TempDir()
	for i := 0; i < 3; i++ {
		if err := s.AddFolderToHistory(folder); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}

	folders, err := s.FolderHistory(20)
	if err != nil || len(folders) != 1 {
		t.Fatalf("history failed: %v (%d folders)", err, len(folders))
	}
	if folders[0].AccessCount != 3 {
		t.Errorf("expected access_count 3, got %d", folders[0].AccessCount)
	}
}

func TestRemoveFolderFromHistory(t *testing.T) {
	s := newTestStore(t)

	folder := t.TempDir()
	if err := s.AddFolderToHistory(folder); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.RemoveFolderFromHistory(folder); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	folders, err := s.FolderHistory(20)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("expected empty history, got %d folders", len(folders))
	}
}

func TestMigrationFromLegacyDatabase(t *testing.T) {
	t.Setenv("WM_DATA_DIR", t.TempDir())
	logger.Init("ERROR")
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Simulate a database created before schema versioning: full schema
	// including remarks, but user_version still 0.
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE video_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT UNIQUE NOT NULL,
			last_position INTEGER NOT NULL,
			duration INTEGER,
			last_watched TEXT DEFAULT CURRENT_TIMESTAMP,
			watch_count INTEGER DEFAULT 1,
			remarks TEXT
		)`,
		`INSERT INTO video_progress (file_path, last_position, duration, remarks)
		 VALUES ('/videos/old.mp4', 1234, 60000, 'from before')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to seed legacy db: %v", err)
		}
	}
	db.Close()

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open over legacy db failed: %v", err)
	}
	defer s.Close()

	p, err := s.GetProgress("/videos/old.mp4")
	if err != nil || p == nil {
		t.Fatalf("legacy row lost: %v", err)
	}
	if p.Position != 1234 || p.Duration == nil || *p.Duration != 60000 {
		t.Errorf("legacy values corrupted: %+v", p)
	}
	if p.Remarks == nil || *p.Remarks != "from before" {
		t.Errorf("legacy remark lost: %v", p.Remarks)
	}

	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("expected schema version %d, got %d", len(migrations), version)
	}

	// New writes still work after migration over an old layout.
	if err := s.SaveProgress("/videos/new.mp4", 10, nil); err != nil {
		t.Errorf("save after migration failed: %v", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			done <- s.SaveProgress("/videos/a.mp4", int64(i*100), int64p(10000))
		}(i)
	}
	deadline := time.After(10 * time.Second)
	for i := 0; i < 10; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("concurrent save failed: %v", err)
			}
		case <-deadline:
			t.Fatal("concurrent saves timed out")
		}
	}

	entries, err := s.AllProgress()
	if err != nil || len(entries) != 1 {
		t.Fatalf("list failed: %v (%d entries)", err, len(entries))
	}
	if entries[0].WatchCount != 10 {
		t.Errorf("expected watch_count 10, got %d", entries[0].WatchCount)
	}
}
