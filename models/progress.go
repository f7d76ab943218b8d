package models

import (
	"fmt"
	"math"
	"time"
)

// ProgressFunc receives overall progress percentages (0-100) in
// non-decreasing order.
type ProgressFunc func(percent int)

// ProgressWindow is the [Offset, Offset+Range] slice of the overall 0-100
// scale assigned to one phase of a job.
type ProgressWindow struct {
	Offset int `json:"offset"`
	Range  int `json:"range"`
}

// FullWindow covers the whole scale. Used by single-invocation jobs.
var FullWindow = ProgressWindow{Offset: 0, Range: 100}

// Validate checks 0 <= Offset, 0 <= Range and Offset+Range <= 100.
func (w ProgressWindow) Validate() error {
	if w.Offset < 0 || w.Range < 0 {
		return fmt.Errorf("progress window cannot be negative: %+v", w)
	}
	if w.Offset+w.Range > 100 {
		return fmt.Errorf("progress window exceeds 100: offset %d + range %d", w.Offset, w.Range)
	}
	return nil
}

// End returns Offset+Range.
func (w ProgressWindow) End() int {
	return w.Offset + w.Range
}

// Map converts a phase-local percentage into the overall scale.
// The phase value is clamped to 0-100, so the result always lies in
// [Offset, End()].
func (w ProgressWindow) Map(phase float64) int {
	if math.IsNaN(phase) || phase < 0 {
		phase = 0
	}
	if phase > 100 {
		phase = 100
	}
	return w.Offset + int(math.Floor(phase/100*float64(w.Range)))
}

// EncodingProgress holds the latest metrics reported by one tool invocation.
type EncodingProgress struct {
	Frame   int64   // Current frame number
	FPS     float64 // Frames per second being processed
	Speed   float64 // Multiplier of realtime (2.0 = twice realtime)
	Elapsed float64 // Seconds of output written so far

	TotalDuration float64 // Seconds expected for this phase
	Percent       float64 // Phase-local percentage (0-100)
	Ended         bool    // The tool reported progress=end

	StartTime time.Time
	UpdatedAt time.Time
}

// NewEncodingProgress creates a tracker for a phase of totalDuration seconds.
func NewEncodingProgress(totalDuration float64) *EncodingProgress {
	now := time.Now()
	return &EncodingProgress{
		TotalDuration: totalDuration,
		StartTime:     now,
		UpdatedAt:     now,
	}
}

// CalculateProgress updates Elapsed and Percent, capping Percent at 100.
func (ep *EncodingProgress) CalculateProgress(elapsedSeconds float64) {
	ep.Elapsed = elapsedSeconds
	if ep.TotalDuration > 0 {
		ep.Percent = (elapsedSeconds / ep.TotalDuration) * 100
		if ep.Percent > 100 {
			ep.Percent = 100
		}
	}
	ep.UpdatedAt = time.Now()
}

// Complete marks the phase as finished.
func (ep *EncodingProgress) Complete() {
	ep.Ended = true
	ep.Percent = 100
	ep.UpdatedAt = time.Now()
}

// EstimatedTimeRemaining extrapolates from wall time spent so far.
func (ep *EncodingProgress) EstimatedTimeRemaining() time.Duration {
	if ep.Percent <= 0 || ep.Percent >= 100 {
		return 0
	}

	elapsed := ep.UpdatedAt.Sub(ep.StartTime)
	totalEstimated := time.Duration(float64(elapsed) / (ep.Percent / 100))
	remaining := totalEstimated - elapsed

	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatSummary returns a one-line human-readable summary.
func (ep *EncodingProgress) FormatSummary() string {
	return fmt.Sprintf(
		"Progress: %.1f%% | Frame: %d | FPS: %.1f | Speed: %.2fx | ETA: %s",
		ep.Percent,
		ep.Frame,
		ep.FPS,
		ep.Speed,
		formatDuration(ep.EstimatedTimeRemaining()),
	)
}

// formatDuration converts a duration to a human-readable string
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
