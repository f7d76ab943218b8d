package config

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"
	"time"
)

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	return f
}

func TestMergeFromFlags_NoFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFromFlags(parseFlags(t))

	defaults := DefaultConfig()
	if *cfg != *defaults {
		t.Errorf("Expected defaults to be untouched, got %+v", cfg)
	}
}

func TestMergeFromFlags_AllFlags(t *testing.T) {
	f := parseFlags(t,
		"-bundle-dir", "/opt/splicer/bin",
		"-scratch-dir", "/var/tmp/splicer",
		"-thumbnail-dir", "/var/thumbs",
		"-audio-dir", "/var/audio",
		"-video-codec", "libx265",
		"-preset", "fast",
		"-crf", "0",
		"-audio-codec", "libopus",
		"-audio-bitrate", "96k",
		"-thumb-width", "640",
		"-thumb-height", "360",
		"-throttle", "0s",
		"-max-concurrent", "3",
		"-addr", "127.0.0.1:9000",
		"-log-level", "debug",
		"-no-validate-bounds",
	)

	cfg := DefaultConfig()
	cfg.MergeFromFlags(f)

	if cfg.Tools.BundleDir != "/opt/splicer/bin" {
		t.Errorf("Expected bundle dir override, got '%s'", cfg.Tools.BundleDir)
	}
	if cfg.ScratchDir != "/var/tmp/splicer" || cfg.ThumbnailDir != "/var/thumbs" || cfg.AudioDir != "/var/audio" {
		t.Errorf("Expected directory overrides, got %s %s %s", cfg.ScratchDir, cfg.ThumbnailDir, cfg.AudioDir)
	}
	if cfg.Encode.VideoCodec != "libx265" || cfg.Encode.Preset != "fast" {
		t.Errorf("Expected video overrides, got %+v", cfg.Encode)
	}
	if cfg.Encode.CRF != 0 {
		t.Errorf("Expected CRF 0 to be applied, got %d", cfg.Encode.CRF)
	}
	if cfg.Encode.AudioCodec != "libopus" || cfg.Encode.AudioBitrate != "96k" {
		t.Errorf("Expected audio overrides, got %+v", cfg.Encode)
	}
	if cfg.Thumbnail.Width != 640 || cfg.Thumbnail.Height != 360 {
		t.Errorf("Expected 640x360, got %dx%d", cfg.Thumbnail.Width, cfg.Thumbnail.Height)
	}
	if cfg.Progress.Throttle != 0 {
		t.Errorf("Expected throttle 0 to be applied, got %s", cfg.Progress.Throttle)
	}
	if cfg.Sessions.MaxConcurrent != 3 {
		t.Errorf("Expected 3 sessions, got %d", cfg.Sessions.MaxConcurrent)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr override, got %s", cfg.Server.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.LogLevel)
	}
	if cfg.ValidateBounds {
		t.Error("Expected bounds validation disabled")
	}
}

func TestMergeFromFlags_Partial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFromFlags(parseFlags(t, "-throttle", "250ms"))

	if cfg.Progress.Throttle != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", cfg.Progress.Throttle)
	}
	if cfg.Encode.CRF != 23 {
		t.Errorf("Expected CRF default to survive, got %d", cfg.Encode.CRF)
	}
}

func TestMergeFromFlags_Nil(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFromFlags(nil)
	if cfg.Encode.Preset != "medium" {
		t.Error("nil flags should not change config")
	}
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	DefaultConfig().PrintConfig(&buf)

	out := buf.String()
	for _, want := range []string{"Effective Configuration", "(PATH only)", "libx264", "320x180", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}
