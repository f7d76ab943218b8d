package models

import (
	"fmt"
	"strings"
)

// Resolution names an export output size.
type Resolution string

const (
	ResolutionSource Resolution = "source"
	Resolution480p   Resolution = "480p"
	Resolution720p   Resolution = "720p"
	Resolution1080p  Resolution = "1080p"
	Resolution4K     Resolution = "4K"
)

var resolutionSizes = map[Resolution][2]int{
	Resolution480p:  {854, 480},
	Resolution720p:  {1280, 720},
	Resolution1080p: {1920, 1080},
	Resolution4K:    {3840, 2160},
}

// ParseResolution accepts the names above case-insensitively. An empty
// string means ResolutionSource.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source":
		return ResolutionSource, nil
	case "480p":
		return Resolution480p, nil
	case "720p":
		return Resolution720p, nil
	case "1080p":
		return Resolution1080p, nil
	case "4k", "2160p":
		return Resolution4K, nil
	}
	return "", Invalidf("parse resolution", "unknown resolution %q (want source, 480p, 720p, 1080p or 4K)", s)
}

// Dimensions returns the target frame size. For ResolutionSource the
// source dimensions are returned rounded down to even numbers, falling back
// to 720p when they are unknown.
func (r Resolution) Dimensions(sourceWidth, sourceHeight int) (int, int) {
	if size, ok := resolutionSizes[r]; ok {
		return size[0], size[1]
	}
	if sourceWidth >= 2 && sourceHeight >= 2 {
		return sourceWidth &^ 1, sourceHeight &^ 1
	}
	size := resolutionSizes[Resolution720p]
	return size[0], size[1]
}

func (r Resolution) String() string {
	if r == "" {
		return string(ResolutionSource)
	}
	return string(r)
}

// ExportRequest is the declarative description of an export job.
//
// Clips are letterboxed into the target resolution; Fill crops them to
// cover it instead.
type ExportRequest struct {
	Clips      []ClipExportInfo `json:"clips" yaml:"clips"`
	Output     string           `json:"output" yaml:"output"`
	Resolution Resolution       `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Fill       bool             `json:"fill,omitempty" yaml:"fill,omitempty"`
}

// Validate checks the request shape and every clip. It performs no I/O.
func (r *ExportRequest) Validate() error {
	if len(r.Clips) == 0 {
		return Invalidf("validate export", "at least one clip is required")
	}
	if strings.TrimSpace(r.Output) == "" {
		return Invalidf("validate export", "output path is required")
	}
	if _, err := ParseResolution(string(r.Resolution)); err != nil {
		return err
	}
	for i := range r.Clips {
		if err := r.Clips[i].Validate(); err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
	}
	return nil
}
