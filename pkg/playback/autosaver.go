package playback

import (
	"sync"
	"time"

	"github.com/AIxHunter/Watch-Marker/pkg/logger"
	"github.com/AIxHunter/Watch-Marker/pkg/tracker"
)

// Event describes a persisted progress save, pushed to the UI over the
// websocket hub.
type Event struct {
	Path     string   `json:"path"`
	Position int64    `json:"position"`
	Duration *int64   `json:"duration"`
	Percent  *float64 `json:"percent"`
	Final    bool     `json:"final"`
}

// Autosaver rate-limits progress writes: for each video path it persists
// at most one save per interval, so a player reporting every second still
// produces the autosave cadence. Saves are announced on the event
// channel; sends never block.
type Autosaver struct {
	store    *tracker.Store
	interval time.Duration
	events   chan Event

	mu       sync.Mutex
	lastSave map[string]time.Time

	stop chan struct{}
}

// NewAutosaver creates an autosaver over store. A non-positive interval
// falls back to DefaultAutosaveInterval.
func NewAutosaver(store *tracker.Store, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	a := &Autosaver{
		store:    store,
		interval: interval,
		events:   make(chan Event, 100),
		lastSave: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}

	go a.cleanupLoop()

	return a
}

// Events returns the channel of persisted save events.
func (a *Autosaver) Events() <-chan Event {
	return a.events
}

// Report records the current play-head for path. The save is persisted
// only when at least one interval has passed since the last persisted
// save for that path; otherwise it is dropped. Returns whether a save was
// persisted.
func (a *Autosaver) Report(path string, positionMS int64, durationMS *int64) (bool, error) {
	a.mu.Lock()
	last, ok := a.lastSave[path]
	if ok && time.Since(last) < a.interval {
		a.mu.Unlock()
		return false, nil
	}
	a.lastSave[path] = time.Now()
	a.mu.Unlock()

	if err := a.save(path, positionMS, durationMS, false); err != nil {
		// A failed save must not consume the window, or the next report
		// inside the interval is dropped with nothing persisted.
		a.mu.Lock()
		if ok {
			a.lastSave[path] = last
		} else {
			delete(a.lastSave, path)
		}
		a.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Flush persists the play-head immediately, bypassing the cadence. Used
// when playback pauses, ends, or the player closes.
func (a *Autosaver) Flush(path string, positionMS int64, durationMS *int64) error {
	a.mu.Lock()
	a.lastSave[path] = time.Now()
	a.mu.Unlock()

	return a.save(path, positionMS, durationMS, true)
}

func (a *Autosaver) save(path string, positionMS int64, durationMS *int64, final bool) error {
	if err := a.store.SaveProgress(path, positionMS, durationMS); err != nil {
		return err
	}

	ev := Event{
		Path:     path,
		Position: positionMS,
		Duration: durationMS,
		Percent:  Percent(positionMS, durationMS),
		Final:    final,
	}
	select {
	case a.events <- ev:
	default:
		// Drop if no one is draining; the store already has the save.
	}
	return nil
}

// Close stops the janitor. Pending events remain readable.
func (a *Autosaver) Close() {
	close(a.stop)
}

// cleanupLoop periodically drops idle per-path timestamps.
func (a *Autosaver) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.cleanup()
		}
	}
}

func (a *Autosaver) cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := 10 * a.interval
	if cutoff < time.Minute {
		cutoff = time.Minute
	}
	now := time.Now()
	for path, last := range a.lastSave {
		if now.Sub(last) > cutoff {
			delete(a.lastSave, path)
			logger.Debug("Pruned idle autosave entry", "path", path)
		}
	}
}
