// Package playback holds the rules that govern how playback progress is
// reconciled with the store: resume decisions, completion detection,
// percent display, and the autosave cadence.
package playback

import (
	"math"
	"time"
)

const (
	// ResumeThreshold is the fraction of duration below which resuming is
	// offered; at or beyond it playback restarts from zero.
	ResumeThreshold = 0.95

	// CompletionThreshold is the fraction of duration at which a video
	// counts as completed for cleanup.
	CompletionThreshold = 0.95

	// CompletionWindow is how close (in milliseconds) the play-head must
	// be to the duration for the video to count as ended.
	CompletionWindow = 1000

	// DefaultAutosaveInterval is the minimum wall-clock time between
	// persisted progress saves for one video.
	DefaultAutosaveInterval = 5 * time.Second
)

// ShouldResume reports whether playback of a video with the given saved
// position should offer to resume. Resume is only offered when the
// duration is known and the position is below the resume threshold.
func ShouldResume(positionMS int64, durationMS *int64) bool {
	if durationMS == nil || *durationMS <= 0 {
		return false
	}
	return float64(positionMS) < float64(*durationMS)*ResumeThreshold
}

// IsComplete reports whether the play-head is within the completion
// window of the duration, i.e. the video has effectively ended.
func IsComplete(positionMS, durationMS int64) bool {
	if durationMS <= 0 {
		return false
	}
	return durationMS-positionMS <= CompletionWindow
}

// Percent returns the watched percentage rounded to one decimal, or nil
// when the duration is unknown.
func Percent(positionMS int64, durationMS *int64) *float64 {
	if durationMS == nil || *durationMS <= 0 {
		return nil
	}
	p := math.Round(float64(positionMS)/float64(*durationMS)*100*10) / 10
	return &p
}

// Next returns the item following current in listing order, for
// auto-advance when a video ends. ok is false when current is absent or
// last.
func Next(listing []string, current string) (string, bool) {
	for i, item := range listing {
		if item == current && i+1 < len(listing) {
			return listing[i+1], true
		}
	}
	return "", false
}
