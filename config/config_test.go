package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Encode.VideoCodec != "libx264" {
		t.Errorf("Expected default video codec 'libx264', got '%s'", cfg.Encode.VideoCodec)
	}
	if cfg.Encode.Preset != "medium" {
		t.Errorf("Expected default preset 'medium', got '%s'", cfg.Encode.Preset)
	}
	if cfg.Encode.CRF != 23 {
		t.Errorf("Expected default CRF 23, got %d", cfg.Encode.CRF)
	}
	if cfg.Encode.AudioCodec != "aac" || cfg.Encode.AudioBitrate != "128k" {
		t.Errorf("Expected aac/128k, got %s/%s", cfg.Encode.AudioCodec, cfg.Encode.AudioBitrate)
	}
	if cfg.Thumbnail.Width != 320 || cfg.Thumbnail.Height != 180 {
		t.Errorf("Expected 320x180 thumbnails, got %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
	if cfg.Progress.Throttle != 100*time.Millisecond {
		t.Errorf("Expected 100ms throttle, got %s", cfg.Progress.Throttle)
	}
	if cfg.Sessions.MaxConcurrent != 1 {
		t.Errorf("Expected one concurrent export, got %d", cfg.Sessions.MaxConcurrent)
	}
	if !cfg.ValidateBounds {
		t.Error("Expected bounds validation enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfig_Copy(t *testing.T) {
	original := DefaultConfig()
	copied := original.Copy()

	copied.Encode.Preset = "fast"
	copied.Server.Addr = "0.0.0.0:1"

	if original.Encode.Preset != "medium" {
		t.Error("Modifying copy affected original encode config")
	}
	if original.Server.Addr == "0.0.0.0:1" {
		t.Error("Modifying copy affected original server config")
	}
}

func TestEncodeConfig_Codecs(t *testing.T) {
	codecs := DefaultConfig().Encode.Codecs()

	if codecs.Video != "libx264" || codecs.Preset != "medium" || codecs.CRF != 23 {
		t.Errorf("Unexpected video codecs: %+v", codecs)
	}
	if codecs.PixelFormat != "yuv420p" || codecs.Audio != "aac" || codecs.AudioBitrate != "128k" {
		t.Errorf("Unexpected audio codecs: %+v", codecs)
	}
}

func TestIsValidPreset(t *testing.T) {
	tests := []struct {
		preset string
		valid  bool
	}{
		{"ultrafast", true},
		{"medium", true},
		{"veryslow", true},
		{"placebo", false},
		{"", false},
		{"MEDIUM", false},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			if got := IsValidPreset(tt.preset); got != tt.valid {
				t.Errorf("IsValidPreset(%q) = %v; want %v", tt.preset, got, tt.valid)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty scratch", func(c *Config) { c.ScratchDir = " " }, "scratch_dir is required"},
		{"empty thumbnail dir", func(c *Config) { c.ThumbnailDir = "" }, "thumbnail_dir is required"},
		{"empty audio dir", func(c *Config) { c.AudioDir = "" }, "audio_dir is required"},
		{"crf too high", func(c *Config) { c.Encode.CRF = 52 }, "crf must be between 0 and 51"},
		{"bad preset", func(c *Config) { c.Encode.Preset = "warp" }, "invalid preset 'warp'"},
		{"no video codec", func(c *Config) { c.Encode.VideoCodec = "" }, "video codec is required"},
		{"no audio codec", func(c *Config) { c.Encode.AudioCodec = "" }, "audio codec is required"},
		{"bad bitrate", func(c *Config) { c.Encode.AudioBitrate = "fast" }, "audio bitrate"},
		{"zero thumbnail", func(c *Config) { c.Thumbnail.Width = 0 }, "thumbnail size must be positive"},
		{"negative throttle", func(c *Config) { c.Progress.Throttle = -time.Second }, "throttle cannot be negative"},
		{"no sessions", func(c *Config) { c.Sessions.MaxConcurrent = 0 }, "max_concurrent must be at least 1"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "invalid server addr"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encode.CRF = 99
	cfg.Sessions.MaxConcurrent = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"crf", "max_concurrent", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in: %v", want, err)
		}
	}
}

func TestIsValidBitrate(t *testing.T) {
	tests := []struct {
		bitrate string
		valid   bool
	}{
		{"128k", true},
		{"2M", true},
		{"96000", true},
		{"k", false},
		{"12kk", false},
		{"1.5M", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isValidBitrate(tt.bitrate); got != tt.valid {
			t.Errorf("isValidBitrate(%q) = %v; want %v", tt.bitrate, got, tt.valid)
		}
	}
}
