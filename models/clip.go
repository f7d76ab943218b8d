// Package models provides core data structures for the export pipeline.
package models

import (
	"fmt"
	"math"
	"strings"
)

// DefaultVolume is the gain applied when a clip does not set one.
const DefaultVolume = 1.0

// ClipExportInfo describes one entry of an export job.
//
// TrimStart and TrimEnd are seconds into the source file. Volume and Muted
// are optional; a nil Volume means DefaultVolume.
//
// Use NewClipExportInfo to create a validated instance.
type ClipExportInfo struct {
	SourcePath string   `json:"source_path" yaml:"source"`
	TrimStart  float64  `json:"trim_start" yaml:"start"`
	TrimEnd    float64  `json:"trim_end" yaml:"end"`
	Volume     *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Muted      bool     `json:"muted,omitempty" yaml:"muted,omitempty"`
}

// NewClipExportInfo creates a ClipExportInfo with validation.
//
// Example:
//
//	clip, err := models.NewClipExportInfo("/media/intro.mp4", 1.5, 6.0)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewClipExportInfo(sourcePath string, trimStart, trimEnd float64) (*ClipExportInfo, error) {
	c := &ClipExportInfo{
		SourcePath: sourcePath,
		TrimStart:  trimStart,
		TrimEnd:    trimEnd,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the clip invariants.
//
// Returns an InvalidInput error if:
//   - SourcePath is empty or whitespace-only
//   - TrimStart or TrimEnd is NaN or infinite
//   - TrimStart is negative
//   - TrimStart >= TrimEnd
//   - Volume is set outside 0.0-1.0
func (c *ClipExportInfo) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return NewError(KindInvalidInput, "validate clip", fmt.Errorf("source_path cannot be empty"))
	}

	if !Finite(c.TrimStart) || !Finite(c.TrimEnd) {
		return NewError(KindInvalidInput, "validate clip", fmt.Errorf("trim_start and trim_end must be finite"))
	}

	if c.TrimStart < 0 {
		return NewError(KindInvalidInput, "validate clip", fmt.Errorf("trim_start cannot be negative"))
	}

	if c.TrimStart >= c.TrimEnd {
		return NewError(KindInvalidInput, "validate clip", fmt.Errorf("trim_start must be less than trim_end"))
	}

	if c.Volume != nil && !(*c.Volume >= 0 && *c.Volume <= 1) {
		return NewError(KindInvalidInput, "validate clip", fmt.Errorf("volume must be between 0.0 and 1.0"))
	}

	return nil
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Duration returns the length of the trimmed window in seconds.
func (c *ClipExportInfo) Duration() float64 {
	return c.TrimEnd - c.TrimStart
}

// EffectiveVolume returns the gain to apply, taking Muted into account.
func (c *ClipExportInfo) EffectiveVolume() float64 {
	if c.Muted {
		return 0
	}
	if c.Volume == nil {
		return DefaultVolume
	}
	return *c.Volume
}

// WithVolume sets the clip volume and returns the clip for chaining.
func (c *ClipExportInfo) WithVolume(level float64) *ClipExportInfo {
	c.Volume = &level
	return c
}

// TotalDuration sums the trimmed durations of clips.
func TotalDuration(clips []ClipExportInfo) float64 {
	total := 0.0
	for i := range clips {
		total += clips[i].Duration()
	}
	return total
}
