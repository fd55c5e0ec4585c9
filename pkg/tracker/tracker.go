// Package tracker persists playback progress, remarks, folder history and
// settings in a SQLite database. Every operation is a single statement or
// transaction, so concurrent callers (HTTP handlers, the autosaver) need
// no external locking.
package tracker

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

// Store provides database operations for tracking video progress.
type Store struct {
	db   *sql.DB
	path string
}

// Progress is the saved playback state for one file path.
// Duration is nil until a player has reported it; Remarks is nil until
// one has been saved.
type Progress struct {
	Position int64   `json:"position"`
	Duration *int64  `json:"duration"`
	Remarks  *string `json:"remarks"`
}

// Entry is one row of the watch history listing.
type Entry struct {
	FilePath    string `json:"path"`
	Position    int64  `json:"position"`
	Duration    *int64 `json:"duration"`
	LastWatched string `json:"last_watched"`
	WatchCount  int64  `json:"watch_count"`
}

// Folder is one folder-history record.
type Folder struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	LastAccessed string `json:"last_accessed"`
	AccessCount  int64  `json:"access_count"`
}

// Open opens (or creates) the database at path and applies pending schema
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is transient lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// exec runs a statement, retrying once on transient lock contention.
func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	res, err := s.db.Exec(query, args...)
	if isBusy(err) {
		logger.Warn("Database busy, retrying write", "err", err)
		time.Sleep(50 * time.Millisecond)
		res, err = s.db.Exec(query, args...)
	}
	return res, err
}

// SaveProgress saves or updates playback progress for a video. A new
// record starts with watch_count 1; updates bump watch_count and
// last_watched. A nil duration preserves any previously known duration.
func (s *Store) SaveProgress(filePath string, position int64, duration *int64) error {
	_, err := s.exec(`
		INSERT INTO video_progress (file_path, last_position, duration, watch_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(file_path) DO UPDATE SET
			last_position = excluded.last_position,
			duration = COALESCE(excluded.duration, video_progress.duration),
			last_watched = CURRENT_TIMESTAMP,
			watch_count = watch_count + 1
	`, filePath, position, duration)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// GetProgress returns the saved progress for a video, or nil when no
// record exists (distinct from a record at position 0).
func (s *Store) GetProgress(filePath string) (*Progress, error) {
	var p Progress
	var duration sql.NullInt64
	var remarks sql.NullString
	err := s.db.QueryRow(`
		SELECT last_position, duration, remarks FROM video_progress
		WHERE file_path = ?
	`, filePath).Scan(&p.Position, &duration, &remarks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if duration.Valid {
		p.Duration = &duration.Int64
	}
	if remarks.Valid {
		p.Remarks = &remarks.String
	}
	return &p, nil
}

// SaveRemark saves or updates the remark for a video. A new record is
// created at position 0. On update only the remark changes: watch_count
// and last_watched are deliberately left untouched.
func (s *Store) SaveRemark(filePath, remark string) error {
	_, err := s.exec(`
		INSERT INTO video_progress (file_path, last_position, remarks)
		VALUES (?, 0, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			remarks = excluded.remarks
	`, filePath, remark)
	if err != nil {
		return fmt.Errorf("failed to save remark: %w", err)
	}
	return nil
}

// GetRemark returns the remark for a video; empty string means no remark.
func (s *Store) GetRemark(filePath string) (string, error) {
	var remarks sql.NullString
	err := s.db.QueryRow(`
		SELECT remarks FROM video_progress WHERE file_path = ?
	`, filePath).Scan(&remarks)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get remark: %w", err)
	}
	return remarks.String, nil
}

// ClearCompleted deletes every record whose duration is known and whose
// position is at or beyond duration*threshold. Records with unknown
// duration are never cleared. Returns the number of deleted records.
func (s *Store) ClearCompleted(threshold float64) (int64, error) {
	res, err := s.exec(`
		DELETE FROM video_progress
		WHERE duration IS NOT NULL
		AND last_position >= duration * ?
	`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed videos: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteProgress removes the record for a video.
func (s *Store) DeleteProgress(filePath string) error {
	if _, err := s.exec(`DELETE FROM video_progress WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// AllProgress returns every progress record, most recently watched first.
func (s *Store) AllProgress() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT file_path, last_position, duration, last_watched, watch_count
		FROM video_progress
		ORDER BY last_watched DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var duration sql.NullInt64
		if err := rows.Scan(&e.FilePath, &e.Position, &duration, &e.LastWatched, &e.WatchCount); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		if duration.Valid {
			e.Duration = &duration.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveLastFolder stores the last opened folder.
func (s *Store) SaveLastFolder(folderPath string) error {
	_, err := s.exec(`
		INSERT INTO settings (key, value)
		VALUES ('last_folder', ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, folderPath)
	if err != nil {
		return fmt.Errorf("failed to save last folder: %w", err)
	}
	return nil
}

// LastFolder returns the last opened folder, or "" when none is stored or
// the stored path no longer exists on disk.
func (s *Store) LastFolder() (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'last_folder'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last folder: %w", err)
	}
	if _, err := os.Stat(value); err != nil {
		return "", nil
	}
	return value, nil
}

// AddFolderToHistory records a folder selection, bumping access_count and
// last_accessed for folders seen before.
func (s *Store) AddFolderToHistory(folderPath string) error {
	_, err := s.exec(`
		INSERT INTO folder_history (folder_path, folder_name)
		VALUES (?, ?)
		ON CONFLICT(folder_path) DO UPDATE SET
			last_accessed = CURRENT_TIMESTAMP,
			access_count = access_count + 1
	`, folderPath, filepath.Base(folderPath))
	if err != nil {
		return fmt.Errorf("failed to add folder to history: %w", err)
	}
	return nil
}

// FolderHistory returns up to limit folders, most recently accessed
// first. Folders that no longer exist on disk are skipped but kept in the
// table until explicitly removed.
func (s *Store) FolderHistory(limit int) ([]Folder, error) {
	rows, err := s.db.Query(`
		SELECT folder_path, folder_name, last_accessed, access_count
		FROM folder_history
		ORDER BY last_accessed DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get folder history: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.Path, &f.Name, &f.LastAccessed, &f.AccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		if _, err := os.Stat(f.Path); err != nil {
			continue
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// RemoveFolderFromHistory removes a folder record.
func (s *Store) RemoveFolderFromHistory(folderPath string) error {
	if _, err := s.exec(`DELETE FROM folder_history WHERE folder_path = ?`, folderPath); err != nil {
		return fmt.Errorf("failed to remove folder from history: %w", err)
	}
	return nil
}
