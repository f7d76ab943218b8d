package models

import (
	"errors"
	"testing"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		input    string
		expected Resolution
		wantErr  bool
	}{
		{"", ResolutionSource, false},
		{"source", ResolutionSource, false},
		{"480p", Resolution480p, false},
		{"720P", Resolution720p, false},
		{"1080p", Resolution1080p, false},
		{"4K", Resolution4K, false},
		{"2160p", Resolution4K, false},
		{"8K", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseResolution(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("Expected InvalidInput error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestResolution_Dimensions(t *testing.T) {
	tests := []struct {
		name       string
		res        Resolution
		srcW, srcH int
		w, h       int
	}{
		{"480p", Resolution480p, 1920, 1080, 854, 480},
		{"1080p ignores source", Resolution1080p, 640, 360, 1920, 1080},
		{"4K", Resolution4K, 0, 0, 3840, 2160},
		{"Source keeps size", ResolutionSource, 1920, 1080, 1920, 1080},
		{"Source rounds to even", ResolutionSource, 1279, 719, 1278, 718},
		{"Source unknown falls back", ResolutionSource, 0, 0, 1280, 720},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.res.Dimensions(tt.srcW, tt.srcH)
			if w != tt.w || h != tt.h {
				t.Errorf("Expected %dx%d, got %dx%d", tt.w, tt.h, w, h)
			}
		})
	}
}

func TestExportRequest_Validate(t *testing.T) {
	valid := ExportRequest{
		Clips:  []ClipExportInfo{{SourcePath: "/media/a.mp4", TrimStart: 0, TrimEnd: 2}},
		Output: "/out/final.mp4",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	tests := []struct {
		name string
		req  ExportRequest
	}{
		{"No clips", ExportRequest{Output: "/out/final.mp4"}},
		{"No output", ExportRequest{Clips: valid.Clips}},
		{"Bad resolution", ExportRequest{Clips: valid.Clips, Output: "/out/final.mp4", Resolution: "huge"}},
		{"Bad clip", ExportRequest{Clips: []ClipExportInfo{{SourcePath: "a", TrimStart: 3, TrimEnd: 1}}, Output: "/out/final.mp4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected InvalidInput error, got %v", err)
			}
		})
	}
}
