package config

import (
	"flag"
	"fmt"
	"io"
	"time"
)

// Flags holds the shared command-line overrides registered on a subcommand's
// FlagSet. Zero-like sentinels ("" and -1) mean "not set".
type Flags struct {
	ConfigPath *string

	BundleDir    *string
	ScratchDir   *string
	ThumbnailDir *string
	AudioDir     *string

	VideoCodec   *string
	Preset       *string
	CRF          *int
	AudioCodec   *string
	AudioBitrate *string

	ThumbWidth  *int
	ThumbHeight *int

	Throttle      *time.Duration
	MaxConcurrent *int
	Addr          *string
	LogLevel      *string

	NoValidateBounds *bool
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		ConfigPath: fs.String("config", "", "Path to config file (default: search standard locations)"),

		BundleDir:    fs.String("bundle-dir", "", "Directory with bundled ffmpeg/ffprobe binaries (default: from config)"),
		ScratchDir:   fs.String("scratch-dir", "", "Root for per-job scratch directories (default: from config)"),
		ThumbnailDir: fs.String("thumbnail-dir", "", "Directory for generated thumbnails (default: from config)"),
		AudioDir:     fs.String("audio-dir", "", "Directory for extracted audio (default: from config)"),

		VideoCodec:   fs.String("video-codec", "", "Video codec for re-encodes (default: from config)"),
		Preset:       fs.String("preset", "", "Encoder preset: ultrafast ... veryslow (default: from config)"),
		CRF:          fs.Int("crf", -1, "Constant Rate Factor 0-51, lower = better quality (default: from config)"),
		AudioCodec:   fs.String("audio-codec", "", "Audio codec for re-encodes (default: from config)"),
		AudioBitrate: fs.String("audio-bitrate", "", "Audio bitrate, e.g., 128k (default: from config)"),

		ThumbWidth:  fs.Int("thumb-width", -1, "Thumbnail box width (default: from config)"),
		ThumbHeight: fs.Int("thumb-height", -1, "Thumbnail box height (default: from config)"),

		Throttle:      fs.Duration("throttle", -1, "Minimum interval between progress updates, e.g., 100ms (default: from config)"),
		MaxConcurrent: fs.Int("max-concurrent", -1, "Maximum concurrent exports (default: from config)"),
		Addr:          fs.String("addr", "", "HTTP listen address (default: from config)"),
		LogLevel:      fs.String("log-level", "", "Log level: debug, info, warn, error (default: from config)"),

		NoValidateBounds: fs.Bool("no-validate-bounds", false, "Skip probing sources to check trim bounds"),
	}
}

// MergeFromFlags overrides config values with flags that were explicitly set
func (c *Config) MergeFromFlags(f *Flags) {
	if f == nil {
		return
	}

	// Directories
	if *f.BundleDir != "" {
		c.Tools.BundleDir = *f.BundleDir
	}
	if *f.ScratchDir != "" {
		c.ScratchDir = *f.ScratchDir
	}
	if *f.ThumbnailDir != "" {
		c.ThumbnailDir = *f.ThumbnailDir
	}
	if *f.AudioDir != "" {
		c.AudioDir = *f.AudioDir
	}

	// Encode settings (-1 means not set)
	if *f.VideoCodec != "" {
		c.Encode.VideoCodec = *f.VideoCodec
	}
	if *f.Preset != "" {
		c.Encode.Preset = *f.Preset
	}
	if *f.CRF >= 0 {
		c.Encode.CRF = *f.CRF
	}
	if *f.AudioCodec != "" {
		c.Encode.AudioCodec = *f.AudioCodec
	}
	if *f.AudioBitrate != "" {
		c.Encode.AudioBitrate = *f.AudioBitrate
	}

	// Thumbnail box
	if *f.ThumbWidth > 0 {
		c.Thumbnail.Width = *f.ThumbWidth
	}
	if *f.ThumbHeight > 0 {
		c.Thumbnail.Height = *f.ThumbHeight
	}

	// Runtime
	if *f.Throttle >= 0 {
		c.Progress.Throttle = *f.Throttle
	}
	if *f.MaxConcurrent > 0 {
		c.Sessions.MaxConcurrent = *f.MaxConcurrent
	}
	if *f.Addr != "" {
		c.Server.Addr = *f.Addr
	}
	if *f.LogLevel != "" {
		c.LogLevel = *f.LogLevel
	}

	// Behavioral flags
	if *f.NoValidateBounds {
		c.ValidateBounds = false
	}
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                 Effective Configuration                  ")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	bundle := c.Tools.BundleDir
	if bundle == "" {
		bundle = "(PATH only)"
	}
	fmt.Fprintf(w, "Bundle Dir:     %s\n", bundle)
	fmt.Fprintf(w, "Scratch Dir:    %s\n", c.ScratchDir)
	fmt.Fprintf(w, "Thumbnail Dir:  %s\n", c.ThumbnailDir)
	fmt.Fprintf(w, "Audio Dir:      %s\n", c.AudioDir)

	fmt.Fprintln(w, "\nEncode Settings:")
	fmt.Fprintf(w, "  Video Codec:  %s\n", c.Encode.VideoCodec)
	fmt.Fprintf(w, "  Preset:       %s\n", c.Encode.Preset)
	fmt.Fprintf(w, "  CRF:          %d\n", c.Encode.CRF)
	fmt.Fprintf(w, "  Pixel Format: %s\n", c.Encode.PixelFormat)
	fmt.Fprintf(w, "  Audio Codec:  %s\n", c.Encode.AudioCodec)
	fmt.Fprintf(w, "  Audio Rate:   %s\n", c.Encode.AudioBitrate)

	fmt.Fprintln(w, "\nRuntime:")
	fmt.Fprintf(w, "  Thumbnail:    %dx%d\n", c.Thumbnail.Width, c.Thumbnail.Height)
	fmt.Fprintf(w, "  Throttle:     %s\n", c.Progress.Throttle)
	fmt.Fprintf(w, "  Concurrency:  %d\n", c.Sessions.MaxConcurrent)
	fmt.Fprintf(w, "  Server Addr:  %s\n", c.Server.Addr)
	fmt.Fprintf(w, "  Log Level:    %s\n", c.LogLevel)
	fmt.Fprintf(w, "  Check Bounds: %v\n", c.ValidateBounds)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}
