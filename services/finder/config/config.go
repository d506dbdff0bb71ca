// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the threeones configuration file.
//
// The file lives at ~/.threeones/threeones.yaml unless a path is given. On
// first run it is created with defaults. Fields missing from the file keep
// their defaults, and the result is validated with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/threeones/pkg/logging"
	"github.com/AleutianAI/threeones/services/finder/position"
	"github.com/AleutianAI/threeones/services/finder/telemetry"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Shared Validator Instance
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("instancesize", validateInstanceSize)
}

// validateInstanceSize accepts sizes the position encoding can hold.
func validateInstanceSize(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n >= position.Target && n <= position.MaxN
}

// Validator returns the shared validator, with the "instancesize" tag
// registered, for request validation elsewhere.
func Validator() *validator.Validate {
	return validate
}

// =============================================================================
// Types
// =============================================================================

// Config is the root of threeones.yaml.
type Config struct {
	// N is the default instance size for CLI commands.
	N int `yaml:"n" validate:"instancesize"`

	Logging   LoggingConfig    `yaml:"logging"`
	Storage   StorageConfig    `yaml:"storage"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Server    ServerConfig     `yaml:"server"`
	Verify    VerifyConfig     `yaml:"verify"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// StorageConfig controls the Badger table store and GCS publishing.
type StorageConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	InMemory bool `yaml:"in_memory"`

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`

	// Bucket is the GCS bucket `publish` uploads table dumps to.
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to uploaded object names.
	Prefix string `yaml:"prefix"`

	// CredentialsFile is a service account key. Empty uses application
	// default credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// ServerConfig controls `threeones serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// Sizes are the instance sizes served; tables are built on first use.
	Sizes []int `yaml:"sizes" validate:"required,min=1,dive,instancesize"`

	// RateLimit is the sustained solve requests per second.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`

	// Burst is the solve request burst size.
	Burst int `yaml:"burst" validate:"gte=1"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// VerifyConfig controls `threeones verify`.
type VerifyConfig struct {
	// Workers is the number of concurrent solvers; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	// Sample checks that many random inputs; 0 checks all of them.
	Sample int `yaml:"sample" validate:"gte=0"`

	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		N: 100,
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.threeones/logs",
		},
		Storage: StorageConfig{
			Path:       "~/.threeones/tables",
			GCInterval: 10 * time.Minute,
			Prefix:     "tables/",
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			Sizes:           []int{100},
			RateLimit:       50,
			Burst:           100,
			ShutdownTimeout: 10 * time.Second,
		},
		Verify: VerifyConfig{Seed: 1},
	}
}

// Validate checks every field against its tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoggerConfig converts the logging section for pkg/logging.
func (c *Config) LoggerConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

// StoragePath returns the Badger directory with ~ expanded.
func (c *Config) StoragePath() string {
	return logging.ExpandPath(c.Storage.Path)
}

// =============================================================================
// Loading
// =============================================================================

// DefaultPath returns ~/.threeones/threeones.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".threeones", "threeones.yaml"), nil
}

// Load reads and validates the file at path, or at DefaultPath when path
// is empty. A missing file is created with defaults first.
//
// Outputs:
//
//	*Config - The loaded configuration.
//	bool - True when the file was created by this call.
//	error - Read, parse or validation failure.
func Load(path string) (*Config, bool, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, false, err
		}
		path = p
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, created, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, created, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, created, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
