package paths

import (
	"os"
)

// GetDataDir returns the data directory path.
// WM_DATA_DIR wins if set. If running in Docker (/.dockerenv exists),
// returns /app/data. Otherwise returns current directory (.)
func GetDataDir() string {
	if dir := os.Getenv("WM_DATA_DIR"); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		// Running in Docker container
		return "/app/data"
	}
	return "."
}
