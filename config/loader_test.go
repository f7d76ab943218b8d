package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_AllLayersPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "splicer.yaml")

	// File sets preset and crf; flags override crf only
	configContent := `encode:
  preset: slow
  crf: 30
sessions:
  max_concurrent: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	cfg, err := Load(parseFlags(t, "-config", configPath, "-crf", "18"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Encode.CRF != 18 {
		t.Errorf("Expected CLI crf 18, got %d", cfg.Encode.CRF)
	}
	if cfg.Encode.Preset != "slow" {
		t.Errorf("Expected file preset 'slow', got '%s'", cfg.Encode.Preset)
	}
	if cfg.Sessions.MaxConcurrent != 2 {
		t.Errorf("Expected file max_concurrent 2, got %d", cfg.Sessions.MaxConcurrent)
	}
	if cfg.Encode.VideoCodec != "libx264" {
		t.Errorf("Expected default codec, got '%s'", cfg.Encode.VideoCodec)
	}
}

func TestLoad_InvalidAfterMerge(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "splicer.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	_, err := Load(parseFlags(t, "-config", configPath, "-preset", "warp"))
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid preset") {
		t.Errorf("Expected preset error, got: %v", err)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(parseFlags(t, "-config", filepath.Join(t.TempDir(), "nope.yaml")))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}
