package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AIxHunter/Watch-Marker/pkg/env"
	"github.com/AIxHunter/Watch-Marker/pkg/paths"
)

var Log *slog.Logger

var (
	history    []string
	historyMu  sync.RWMutex
	maxHistory = 500

	logFile   *os.File
	logFileMu sync.Mutex

	logLevel slog.LevelVar

	logLocation *time.Location
	locationMu  sync.RWMutex

	broadcastCh chan<- string
)

// SetBroadcast sets a channel that receives formatted log lines.
// Sends are non-blocking; lines are dropped when the channel is full.
func SetBroadcast(ch chan<- string) {
	broadcastCh = ch
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger at the given level and opens a daily
// log file in the data directory.
func Init(levelStr string) {
	logLevel.Set(parseLevel(levelStr))

	// Timestamps follow the TZ environment variable; invalid or unset
	// values fall back to the local timezone.
	loc := time.Local
	if tz := env.TZ(); tz != "" {
		if loaded, err := time.LoadLocation(tz); err == nil {
			loc = loaded
		}
	}
	locationMu.Lock()
	logLocation = loc
	locationMu.Unlock()

	dataDir := paths.GetDataDir()
	logFileName := fmt.Sprintf("watchmarker-%s.log", time.Now().In(loc).Format("2006-01-02"))
	logFilePath := filepath.Join(dataDir, logFileName)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
	} else {
		logFileMu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", logFilePath, err)
			logFile = nil
		}
		logFileMu.Unlock()
	}

	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel})
	Log = slog.New(&teeHandler{Handler: baseHandler})
	slog.SetDefault(Log)
}

// teeHandler writes records to stdout, the log file, the in-memory history
// ring, and the broadcast channel.
type teeHandler struct {
	slog.Handler
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	locationMu.RLock()
	loc := logLocation
	locationMu.RUnlock()
	if loc == nil {
		loc = time.Local
	}

	msg := fmt.Sprintf("time=%s level=%s msg=%q", r.Time.In(loc).Format("2006-01-02T15:04:05.000-07:00"), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	historyMu.Lock()
	if len(history) >= maxHistory {
		history = history[1:]
	}
	history = append(history, msg)
	historyMu.Unlock()

	err := h.Handler.Handle(ctx, r)

	logFileMu.Lock()
	if logFile != nil {
		fmt.Fprintln(logFile, msg)
	}
	logFileMu.Unlock()

	if broadcastCh != nil {
		select {
		case broadcastCh <- msg:
		default:
		}
	}
	return err
}

// GetHistory returns a copy of the retained log lines.
func GetHistory() []string {
	historyMu.RLock()
	defer historyMu.RUnlock()
	cp := make([]string, len(history))
	copy(cp, history)
	return cp
}

// SetLevel updates the logger level at runtime. The open log file and
// broadcast channel are untouched.
func SetLevel(levelStr string) {
	logLevel.Set(parseLevel(levelStr))
}

// Close closes the log file if one is open.
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Helper functions for easy access
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
