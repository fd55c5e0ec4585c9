package tracker

import (
	"fmt"
	"strings"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run. New schema changes append a step here, they never edit an
// existing one.
var migrations = []string{
	// v1: initial schema
	`CREATE TABLE IF NOT EXISTS video_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT UNIQUE NOT NULL,
		last_position INTEGER NOT NULL,
		duration INTEGER,
		last_watched TEXT DEFAULT CURRENT_TIMESTAMP,
		watch_count INTEGER DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS folder_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_path TEXT UNIQUE NOT NULL,
		folder_name TEXT NOT NULL,
		last_accessed TEXT DEFAULT CURRENT_TIMESTAMP,
		access_count INTEGER DEFAULT 1
	);`,

	// v2: remarks column
	`ALTER TABLE video_progress ADD COLUMN remarks TEXT;`,
}

// migrate applies pending schema migrations once at startup.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			// Databases created before schema versioning may already
			// carry a later column; an additive step finding its column
			// in place is not a failure.
			if strings.Contains(err.Error(), "duplicate column name") {
				logger.Debug("Migration step already applied", "version", i+1)
			} else {
				return fmt.Errorf("migration to version %d failed: %w", i+1, err)
			}
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("failed to set schema version %d: %w", i+1, err)
		}
		logger.Info("Applied schema migration", "version", i+1)
	}
	return nil
}
