// Package config loads the splcat configuration file.
//
// The file is YAML; every key is optional and falls back to its default:
//
//	max_results: 50000
//	timeout: 30s
//	strict_functions: false
//	format: table
//	input_format: auto
//	time_field: ""
//	log_level: warn
//	lookups:
//	  hosts: lookups/hosts.csv
//
// Relative lookup paths are resolved against the directory of the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"gopkg.in/yaml.v3"
)

// Config holds CLI settings
type Config struct {
	MaxResults      int               `yaml:"max_results"`
	Timeout         time.Duration     `yaml:"timeout"`
	StrictFunctions bool              `yaml:"strict_functions"`
	Format          string            `yaml:"format"`
	InputFormat     string            `yaml:"input_format"`
	TimeField       string            `yaml:"time_field"`
	LogLevel        string            `yaml:"log_level"`
	Lookups         map[string]string `yaml:"lookups"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		MaxResults:  50000,
		Timeout:     30 * time.Second,
		Format:      "table",
		InputFormat: "auto",
		LogLevel:    "warn",
		Lookups:     map[string]string{},
	}
}

// Load reads a configuration file over the defaults. Unknown keys are an
// error. An empty file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.Lookups == nil {
		cfg.Lookups = map[string]string{}
	}

	dir := filepath.Dir(path)
	for name, p := range cfg.Lookups {
		if p != "" && !filepath.IsAbs(p) {
			cfg.Lookups[name] = filepath.Join(dir, p)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and names
func (c Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.MaxResults)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Timeout)
	}
	if _, err := c.LevelFilter(); err != nil {
		return err
	}
	for name, p := range c.Lookups {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("lookup with an empty name")
		}
		if p == "" {
			return fmt.Errorf("lookup %s has no path", name)
		}
	}
	return nil
}

// LevelFilter returns the go-kit level filter for LogLevel
func (c Config) LevelFilter() (level.Option, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "", "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	}
	return nil, fmt.Errorf("unknown log_level %q", c.LogLevel)
}
