package models

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestClipExportInfoValidate(t *testing.T) {
	half := 0.5
	loud := 1.5
	negative := -0.1
	nan := math.NaN()

	tests := []struct {
		name          string
		clip          ClipExportInfo
		WantError     bool
		ErrorContains string
	}{
		{name: "Valid clip", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: 4}},
		{name: "Valid with volume", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 1, TrimEnd: 2, Volume: &half}},
		{name: "Fractional window", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0.25, TrimEnd: 0.5}},
		{name: "Empty path", clip: ClipExportInfo{TrimStart: 0, TrimEnd: 4}, WantError: true, ErrorContains: "source_path cannot be empty"},
		{name: "Whitespace path", clip: ClipExportInfo{SourcePath: " \t", TrimStart: 0, TrimEnd: 4}, WantError: true, ErrorContains: "source_path cannot be empty"},
		{name: "Negative start", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: -1, TrimEnd: 4}, WantError: true, ErrorContains: "cannot be negative"},
		{name: "Start equals end", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 4, TrimEnd: 4}, WantError: true, ErrorContains: "trim_start must be less than trim_end"},
		{name: "Start after end", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 5, TrimEnd: 4}, WantError: true, ErrorContains: "trim_start must be less than trim_end"},
		{name: "Volume above one", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: 4, Volume: &loud}, WantError: true, ErrorContains: "volume"},
		{name: "NaN end", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: math.NaN()}, WantError: true, ErrorContains: "must be finite"},
		{name: "NaN start", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: math.NaN(), TrimEnd: 4}, WantError: true, ErrorContains: "must be finite"},
		{name: "Infinite end", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: math.Inf(1)}, WantError: true, ErrorContains: "must be finite"},
		{name: "Negative infinite start", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: math.Inf(-1), TrimEnd: 4}, WantError: true, ErrorContains: "must be finite"},
		{name: "NaN volume", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: 4, Volume: &nan}, WantError: true, ErrorContains: "volume"},
		{name: "Volume below zero", clip: ClipExportInfo{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: 4, Volume: &negative}, WantError: true, ErrorContains: "volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.clip.Validate()
			if tt.WantError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.ErrorContains) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.ErrorContains, err.Error())
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("Expected InvalidInput kind, got %v", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestNewClipExportInfo(t *testing.T) {
	clip, err := NewClipExportInfo("/media/a.mp4", 1.5, 6)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if clip.Duration() != 4.5 {
		t.Errorf("Expected duration 4.5, got %.2f", clip.Duration())
	}

	if _, err := NewClipExportInfo("", 0, 1); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestClipExportInfo_EffectiveVolume(t *testing.T) {
	tests := []struct {
		name     string
		clip     *ClipExportInfo
		expected float64
	}{
		{"Default", &ClipExportInfo{}, 1.0},
		{"Explicit", (&ClipExportInfo{}).WithVolume(0.3), 0.3},
		{"Muted wins", (&ClipExportInfo{Muted: true}).WithVolume(0.8), 0},
		{"Muted without volume", &ClipExportInfo{Muted: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.clip.EffectiveVolume(); got != tt.expected {
				t.Errorf("Expected %.2f, got %.2f", tt.expected, got)
			}
		})
	}
}

func TestTotalDuration(t *testing.T) {
	clips := []ClipExportInfo{
		{SourcePath: "a", TrimStart: 0, TrimEnd: 4},
		{SourcePath: "b", TrimStart: 3, TrimEnd: 5},
		{SourcePath: "c", TrimStart: 10, TrimEnd: 14},
	}
	if got := TotalDuration(clips); got != 10 {
		t.Errorf("Expected 10, got %.2f", got)
	}
	if got := TotalDuration(nil); got != 0 {
		t.Errorf("Expected 0 for no clips, got %.2f", got)
	}
}

func TestClipResultValidate(t *testing.T) {
	if _, err := NewClipResult(0, "/tmp/clip_000.mp4", 4); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := NewClipResult(-1, "/tmp/clip.mp4", 4); err == nil {
		t.Error("Expected error for negative index")
	}
	if _, err := NewClipResult(0, " ", 4); err == nil {
		t.Error("Expected error for empty path")
	}
	if _, err := NewClipResult(0, "/tmp/clip.mp4", 0); err == nil {
		t.Error("Expected error for zero duration")
	}
}
