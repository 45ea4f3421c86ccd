package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"br-analyzer/src/internal/common"
)

// Config contains analyzer configuration
type Config struct {
	// Extensions lists the source file extensions scanned by the
	// workspace indexer, with their leading dot.
	Extensions []string `yaml:"extensions"`
	// ExcludeDirs lists directory names skipped during workspace scans.
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty"`
	// UseGitignore enables .gitignore filtering during scans.
	UseGitignore bool `yaml:"use_gitignore"`
	// Workers bounds the indexing worker pool. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers,omitempty"`

	Rules RulesConfig `yaml:"rules"`
}

// RulesConfig toggles individual diagnostic rules
type RulesConfig struct {
	Syntax             bool `yaml:"syntax"`
	Structural         bool `yaml:"structural"`
	UndefinedFunctions bool `yaml:"undefined_functions"`
	UnusedVariables    bool `yaml:"unused_variables"`
	ParameterCheck     bool `yaml:"parameter_check"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	common.CLILogger.Debug("loaded config from %s", path)
	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfig returns the default configuration with every
// diagnostic rule enabled.
func GetDefaultConfig() *Config {
	return &Config{
		Extensions:   []string{".brs", ".wbs"},
		ExcludeDirs:  []string{".git", "node_modules", "backup"},
		UseGitignore: true,
		Workers:      0,
		Rules: RulesConfig{
			Syntax:             true,
			Structural:         true,
			UndefinedFunctions: true,
			UnusedVariables:    true,
			ParameterCheck:     true,
		},
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if len(config.Extensions) == 0 {
		return fmt.Errorf("at least one source extension is required")
	}
	for _, ext := range config.Extensions {
		if ext == "" || ext[0] != '.' {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if config.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// WorkerCount resolves the configured worker bound to a concrete
// pool size.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
