package config

import (
	"fmt"
)

// Load builds the effective configuration with priority:
// CLI flags > Config file > Defaults.
//
// f comes from RegisterFlags after the subcommand's FlagSet was parsed; nil
// skips the flag layer.
func Load(f *Flags) (*Config, error) {
	// 1. Start with defaults
	cfg := DefaultConfig()

	// 2. Explicit -config wins over the standard locations
	configPath := ""
	if f != nil && f.ConfigPath != nil {
		configPath = *f.ConfigPath
	}
	if configPath == "" {
		configPath = FindConfigFile()
	}

	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg = fileCfg
	}

	// 3. Merge CLI flags (highest priority, overwrites everything)
	cfg.MergeFromFlags(f)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
