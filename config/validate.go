package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks if the configuration is valid and reports every problem at once
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.ScratchDir) == "" {
		errors = append(errors, "scratch_dir is required")
	}
	if strings.TrimSpace(c.ThumbnailDir) == "" {
		errors = append(errors, "thumbnail_dir is required")
	}
	if strings.TrimSpace(c.AudioDir) == "" {
		errors = append(errors, "audio_dir is required")
	}

	if err := c.Encode.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("encode config: %v", err))
	}

	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		errors = append(errors, fmt.Sprintf("thumbnail size must be positive, got %dx%d", c.Thumbnail.Width, c.Thumbnail.Height))
	}

	if c.Progress.Throttle < 0 {
		errors = append(errors, "progress throttle cannot be negative")
	}

	if c.Sessions.MaxConcurrent < 1 {
		errors = append(errors, "sessions.max_concurrent must be at least 1")
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errors = append(errors, fmt.Sprintf("invalid server addr '%s': %v", c.Server.Addr, err))
	}

	if !isValidLogLevel(c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log_level '%s', must be one of: %s",
			c.LogLevel, strings.Join(LogLevelValues(), ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks encode settings
func (ec *EncodeConfig) Validate() error {
	var errors []string

	if ec.VideoCodec == "" {
		errors = append(errors, "video codec is required")
	}

	// CRF validation (0-51 for H.264/H.265)
	if ec.CRF < 0 || ec.CRF > 51 {
		errors = append(errors, "crf must be between 0 and 51")
	}

	if !IsValidPreset(ec.Preset) {
		errors = append(errors, fmt.Sprintf("invalid preset '%s', must be one of: %s",
			ec.Preset, strings.Join(PresetValues(), ", ")))
	}

	if ec.AudioCodec == "" {
		errors = append(errors, "audio codec is required")
	}

	// Bitrate validation (if specified)
	if ec.AudioBitrate != "" && !isValidBitrate(ec.AudioBitrate) {
		errors = append(errors, "audio bitrate must be a number with an optional k or M suffix (e.g., 128k)")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

// isValidBitrate checks bitrate strings such as "128k", "2M" or "96000"
func isValidBitrate(bitrate string) bool {
	digits := strings.TrimRight(bitrate, "kKmM")
	if len(bitrate)-len(digits) > 1 || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isValidLogLevel(level string) bool {
	for _, valid := range LogLevelValues() {
		if strings.EqualFold(level, valid) {
			return true
		}
	}
	return false
}
