package models

import (
	"fmt"
	"strings"
)

// ClipResult records one preprocessed clip written to a job's scratch area.
type ClipResult struct {
	Index      int     `json:"index"`
	OutputPath string  `json:"output_path"`
	Duration   float64 `json:"duration"`
}

// NewClipResult creates a validated ClipResult.
func NewClipResult(index int, outputPath string, duration float64) (*ClipResult, error) {
	cr := &ClipResult{
		Index:      index,
		OutputPath: outputPath,
		Duration:   duration,
	}
	if err := cr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clip result: %w", err)
	}
	return cr, nil
}

// Validate checks that the result points at a file and covers a positive duration.
func (cr *ClipResult) Validate() error {
	if cr.Index < 0 {
		return fmt.Errorf("index cannot be negative")
	}
	if strings.TrimSpace(cr.OutputPath) == "" {
		return fmt.Errorf("output_path cannot be empty")
	}
	if cr.Duration <= 0 {
		return fmt.Errorf("duration must be greater than 0")
	}
	return nil
}
