package config

import (
	"os"
	"path/filepath"
	"time"

	"splicer/command"
)

// Config holds all splicer configuration options
type Config struct {
	Tools ToolsConfig `yaml:"tools"`

	// Working directories
	ScratchDir   string `yaml:"scratch_dir"`   // Per-job scratch directories are created here
	ThumbnailDir string `yaml:"thumbnail_dir"` // Default destination for thumbnails
	AudioDir     string `yaml:"audio_dir"`     // Default destination for extracted audio

	// Encoding settings used whenever a stream is re-encoded
	Encode EncodeConfig `yaml:"encode"`

	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Progress  ProgressConfig  `yaml:"progress"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Server    ServerConfig    `yaml:"server"`

	// Behavioral flags
	LogLevel       string `yaml:"log_level"`       // debug, info, warn, error
	ValidateBounds bool   `yaml:"validate_bounds"` // Probe sources and reject trims past the end
}

// ToolsConfig controls where ffmpeg and ffprobe are looked up
type ToolsConfig struct {
	BundleDir string `yaml:"bundle_dir"` // Searched before PATH; empty = PATH only
}

// EncodeConfig holds re-encode settings
type EncodeConfig struct {
	VideoCodec   string `yaml:"video_codec"`   // e.g., "libx264"
	Preset       string `yaml:"preset"`        // e.g., "ultrafast", "medium", "slow"
	CRF          int    `yaml:"crf"`           // Constant Rate Factor (0-51, lower = better quality)
	PixelFormat  string `yaml:"pixel_format"`  // e.g., "yuv420p"
	AudioCodec   string `yaml:"audio_codec"`   // e.g., "aac"
	AudioBitrate string `yaml:"audio_bitrate"` // e.g., "128k"
}

// ThumbnailConfig holds the thumbnail bounding box
type ThumbnailConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ProgressConfig controls progress delivery
type ProgressConfig struct {
	Throttle time.Duration `yaml:"throttle"` // Minimum interval between intermediate values; 0 = every value
}

// SessionsConfig bounds concurrent exports
type SessionsConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	base := filepath.Join(os.TempDir(), "splicer")
	return &Config{
		Tools: ToolsConfig{
			BundleDir: "", // PATH only
		},

		ScratchDir:   base,
		ThumbnailDir: filepath.Join(base, "thumbnails"),
		AudioDir:     filepath.Join(base, "audio"),

		// H.264 + AAC: plays everywhere
		Encode: EncodeConfig{
			VideoCodec:   "libx264",
			Preset:       "medium",
			CRF:          23,
			PixelFormat:  "yuv420p",
			AudioCodec:   "aac",
			AudioBitrate: "128k",
		},

		Thumbnail: ThumbnailConfig{
			Width:  320,
			Height: 180,
		},

		Progress: ProgressConfig{
			Throttle: 100 * time.Millisecond,
		},

		// One export at a time
		Sessions: SessionsConfig{
			MaxConcurrent: 1,
		},

		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},

		LogLevel:       "info",
		ValidateBounds: true,
	}
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	copy := *c
	return &copy
}

// Codecs converts the encode settings for the command builder.
func (e EncodeConfig) Codecs() command.Codecs {
	return command.Codecs{
		Video:        e.VideoCodec,
		Preset:       e.Preset,
		CRF:          e.CRF,
		PixelFormat:  e.PixelFormat,
		Audio:        e.AudioCodec,
		AudioBitrate: e.AudioBitrate,
	}
}

// PresetValues returns valid x264 preset values
func PresetValues() []string {
	return []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow"}
}

// IsValidPreset checks if preset is valid
func IsValidPreset(preset string) bool {
	for _, valid := range PresetValues() {
		if preset == valid {
			return true
		}
	}
	return false
}

// LogLevelValues returns valid log levels
func LogLevelValues() []string {
	return []string{"debug", "info", "warn", "error"}
}
