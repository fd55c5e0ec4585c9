// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"os"
	"strconv"
)

// Environment variable names (single source of truth)
const (
	Port            = "WM_PORT"
	DBPath          = "DB_PATH"
	DataDir         = "WM_DATA_DIR"
	LOGLevel        = "LOG_LEVEL"
	MaxConnections  = "WM_MAX_CONNECTIONS"
	AutosaveSeconds = "WM_AUTOSAVE_SECONDS"
	HistoryLimit    = "WM_HISTORY_LIMIT"
	TZVar           = "TZ"
)

// Config JSON keys returned by ReadConfigOverrides (for UI warnings)
const (
	KeyPort            = "port"
	KeyDBPath          = "db_path"
	KeyLogLevel        = "log_level"
	KeyMaxConnections  = "max_connections"
	KeyAutosaveSeconds = "autosave_seconds"
	KeyHistoryLimit    = "folder_history_limit"
)

// TZ returns the TZ environment variable.
func TZ() string {
	return os.Getenv(TZVar)
}

// LogLevel returns LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	if v := os.Getenv(LOGLevel); v != "" {
		return v
	}
	return "INFO"
}

// ConfigOverrides holds all config values that can be set via environment variables.
// Used at startup by config.Load to apply overrides.
type ConfigOverrides struct {
	Port            int
	DBPath          string
	LogLevel        string
	MaxConnections  int
	AutosaveSeconds int
	HistoryLimit    int
}

// ReadConfigOverrides reads all relevant environment variables once and returns
// overrides to apply to config plus the list of config JSON keys that were set
// (for UI "overwritten on restart" warnings).
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	if v := os.Getenv(Port); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.Port = port
			keys = append(keys, KeyPort)
		}
	}
	if v := os.Getenv(DBPath); v != "" {
		o.DBPath = v
		keys = append(keys, KeyDBPath)
	}
	if v := os.Getenv(LOGLevel); v != "" {
		o.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}
	if v := os.Getenv(MaxConnections); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxConnections = n
			keys = append(keys, KeyMaxConnections)
		}
	}
	if v := os.Getenv(AutosaveSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.AutosaveSeconds = n
			keys = append(keys, KeyAutosaveSeconds)
		}
	}
	if v := os.Getenv(HistoryLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.HistoryLimit = n
			keys = append(keys, KeyHistoryLimit)
		}
	}

	return o, keys
}

// OverrideKeys returns the config JSON keys that have environment overrides set.
// Used by the API to tell the UI which settings show "overwritten on restart" warnings.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}
