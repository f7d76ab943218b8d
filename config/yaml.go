package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"splicer/models"
)

// LoadConfigFile loads configuration from a YAML file. Keys missing from the
// file keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for config file in standard locations
// Returns empty string if not found (non-fatal)
func FindConfigFile() string {
	locations := []string{
		"./splicer.yaml",
		"./splicer.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".splicer", "config.yaml"),
			filepath.Join(home, ".splicer", "config.yml"),
		)
	}
	locations = append(locations,
		"/etc/splicer/config.yaml",
		"/etc/splicer/config.yml",
	)

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves configuration to a YAML file
func SaveConfigFile(cfg *Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadJobFile reads an export job description:
//
//	output: /videos/final.mp4
//	resolution: 1080p
//	clips:
//	  - source: /videos/intro.mp4
//	    start: 0
//	    end: 4
//	  - source: /videos/talk.mp4
//	    start: 12.5
//	    end: 14.5
//	    volume: 0.8
//
// Unknown keys are rejected.
func LoadJobFile(path string) (*models.ExportRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.Invalidf("load job", "failed to read job file: %v", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req models.ExportRequest
	if err := dec.Decode(&req); err != nil {
		return nil, models.Invalidf("load job", "failed to parse job file: %v", err)
	}

	// Relative paths are relative to the job file
	base := filepath.Dir(path)
	for i := range req.Clips {
		req.Clips[i].SourcePath = resolveRelative(base, req.Clips[i].SourcePath)
	}
	req.Output = resolveRelative(base, req.Output)
	return &req, nil
}

func resolveRelative(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
