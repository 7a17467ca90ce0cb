package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// FileConfig mirrors Config with yaml tags for file-based loading.
// Flag values take precedence over file values; the merge happens in the
// command layer.
type FileConfig struct {
	APIPort              int    `yaml:"apiPort"`
	LogLevel             string `yaml:"logLevel"`
	MinWorkerVersion     string `yaml:"minWorkerVersion"`
	DescriptorCacheSize  int    `yaml:"descriptorCacheSize"`
	MaxBundleParallelism int    `yaml:"maxBundleParallelism"`
	Tracing              struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		TLSCAPath string `yaml:"tlsCAPath"`
	} `yaml:"tracing"`
}

// LoadConfigFile loads and validates a worker configuration file using Koanf.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Validation failure after applying defaults
func LoadConfigFile(filepath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", filepath, err)
	}

	var fc FileConfig
	if err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", filepath, err)
	}

	cfg := LoadConfig(
		fc.APIPort,
		fc.LogLevel,
		fc.MinWorkerVersion,
		fc.DescriptorCacheSize,
		fc.MaxBundleParallelism,
		fc.Tracing.Enabled,
		fc.Tracing.Endpoint,
		fc.Tracing.TLSCAPath,
	)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", filepath, err)
	}

	return cfg, nil
}

// DefaultFileConfig returns a FileConfig populated with the defaults
// LoadConfig would apply.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		APIPort:              DefaultAPIPort,
		LogLevel:             "info",
		DescriptorCacheSize:  DefaultDescriptorCacheSize,
		MaxBundleParallelism: DefaultMaxBundleParallelism,
	}
}

// WriteConfigFile serializes the given config to a YAML file. Used to seed
// a default configuration when the requested file does not exist yet.
func WriteConfigFile(filepath string, fc *FileConfig) error {
	data, err := yamlv3.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config to %q: %w", filepath, err)
	}
	return nil
}
