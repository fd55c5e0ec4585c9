package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/AIxHunter/Watch-Marker/pkg/env"
	"github.com/AIxHunter/Watch-Marker/pkg/logger"
	"github.com/AIxHunter/Watch-Marker/pkg/paths"
)

// Config holds application configuration
type Config struct {
	// Server settings
	Port           int    `json:"port"`
	LogLevel       string `json:"log_level"`
	MaxConnections int    `json:"max_connections"`

	// Store settings
	DBPath             string `json:"db_path"`
	FolderHistoryLimit int    `json:"folder_history_limit"`

	// Playback policy
	AutosaveSeconds     int     `json:"autosave_seconds"`
	ResumeThreshold     float64 `json:"resume_threshold"`
	CompletionThreshold float64 `json:"completion_threshold"`

	// Internal - where was this config loaded from?
	LoadedPath string `json:"-"`
}

// Load is intended for startup only. It loads configuration from config.json,
// applies environment variable overrides once, then saves the merged config.
// Environment variables are not read again after startup.
// Priority: Environment variables (if not empty) > config.json > defaults
func Load() (*Config, error) {
	dataDir := paths.GetDataDir()
	configPath := filepath.Join(dataDir, "config.json")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := &Config{
		Port:                5000,
		LogLevel:            "INFO",
		MaxConnections:      64,
		DBPath:              filepath.Join(dataDir, "video_progress.db"),
		FolderHistoryLimit:  20,
		AutosaveSeconds:     5,
		ResumeThreshold:     0.95,
		CompletionThreshold: 0.95,
		LoadedPath:          configPath,
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			logger.Warn("Failed to load config, using defaults", "path", configPath, "err", err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	}

	return cfg, nil
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(c)
}

// Save saves the current configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = "config.json"
	}
	return c.SaveFile(path)
}

// SaveFile saves the current configuration to a JSON file
func (c *Config) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// keySet returns true if s is in list.
func keySet(list []string, s string) bool {
	for _, k := range list {
		if k == s {
			return true
		}
	}
	return false
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if keySet(keys, env.KeyPort) {
		cfg.Port = o.Port
	}
	if keySet(keys, env.KeyDBPath) {
		cfg.DBPath = o.DBPath
	}
	if keySet(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if keySet(keys, env.KeyMaxConnections) {
		cfg.MaxConnections = o.MaxConnections
	}
	if keySet(keys, env.KeyAutosaveSeconds) {
		cfg.AutosaveSeconds = o.AutosaveSeconds
	}
	if keySet(keys, env.KeyHistoryLimit) {
		cfg.FolderHistoryLimit = o.HistoryLimit
	}
}

// GetEnvOverrideKeys returns config JSON keys that have environment variable overrides set.
// These values will be overwritten on next restart. Used by the UI to show warnings.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
