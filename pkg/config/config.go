// Package config loads engine tuning for the deduplicator and validator.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. Only variables that are set override earlier layers.
//
//	dedup:
//	  max_cache_size: 1000000
//	  use_probabilistic_filter: true
//	  filter_capacity: 10000000
//	  filter_false_positive_rate: 0.01
//	validation:
//	  blocked_domains: [facebook.com, twitter.com]
//	  blocked_extensions: [.pdf, .zip]
//	  max_length: 2000
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/WangYihang/url-dedup/pkg/dedup"
	"github.com/WangYihang/url-dedup/pkg/validate"
	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Environment variable prefixes
const (
	DedupEnvPrefix      = "DEDUP_"
	ValidationEnvPrefix = "VALIDATION_"
)

// ErrConfigNotFound is returned when an explicitly given config file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// Config holds all engine configuration
type Config struct {
	Dedup      dedup.Config    `yaml:"dedup"`
	Validation validate.Config `yaml:"validation"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Dedup:      dedup.DefaultConfig(),
		Validation: validate.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, err
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(&c.Dedup, env.Options{Prefix: DedupEnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse %s* environment: %w", DedupEnvPrefix, err)
	}
	if err := env.ParseWithOptions(&c.Validation, env.Options{Prefix: ValidationEnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse %s* environment: %w", ValidationEnvPrefix, err)
	}
	return nil
}

// Validate checks both sections
func (c *Config) Validate() error {
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	return c.Validation.Validate()
}
