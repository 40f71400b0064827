// Package config loads the YAML configuration shared by the CLI commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/mayhem/pkg/assembly"
	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/engine"
	"github.com/chazu/mayhem/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Kernel     KernelConfig      `yaml:"kernel"`
	Build      BuildConfig       `yaml:"build"`
	Validation validation.Config `yaml:"validation"`
	Engine     EngineConfig      `yaml:"engine"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// KernelConfig selects and sizes the geometry kernel.
type KernelConfig struct {
	// URL of a websocket kernel. Empty runs an in-process kernel.
	URL       string `yaml:"url"`
	PoolSize  int    `yaml:"pool_size"`  // 0 = one connection per CPU
	MeshCells int    `yaml:"mesh_cells"` // marching cubes resolution, 0 = kernel default
	Listen    string `yaml:"listen"`     // address for `kernel serve`
}

// BuildConfig holds the options handed to every builder.
type BuildConfig struct {
	MeshQuality              float64 `yaml:"mesh_quality"`
	GenerateConnectionPoints bool    `yaml:"generate_connection_points"`
	ValidateDuringBuild      bool    `yaml:"validate_during_build"`
	ReleaseIntermediates     bool    `yaml:"release_intermediates"`
	LowClearance             float64 `yaml:"low_clearance"` // mm
}

// EngineConfig tunes script evaluation.
type EngineConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig selects the logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Kernel: KernelConfig{
			Listen: "127.0.0.1:7878",
		},
		Build: BuildConfig{
			MeshQuality:  0.5,
			LowClearance: assembly.DefaultLowClearance,
		},
		Validation: validation.DefaultConfig(),
		Engine:     EngineConfig{Timeout: engine.EvalTimeout},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Kernel.PoolSize < 0:
		return fmt.Errorf("kernel.pool_size must not be negative")
	case c.Kernel.MeshCells < 0:
		return fmt.Errorf("kernel.mesh_cells must not be negative")
	case c.Build.MeshQuality < 0 || c.Build.MeshQuality > 1:
		return fmt.Errorf("build.mesh_quality must be between 0 and 1")
	case c.Build.LowClearance < 0:
		return fmt.Errorf("build.low_clearance must not be negative")
	case c.Engine.Timeout < 0:
		return fmt.Errorf("engine.timeout must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// BuildOptions converts the build section for builders.
func (c Config) BuildOptions() builder.Options {
	return builder.Options{
		MeshQuality:              c.Build.MeshQuality,
		GenerateConnectionPoints: c.Build.GenerateConnectionPoints,
		ValidateDuringBuild:      c.Build.ValidateDuringBuild,
		ReleaseIntermediates:     c.Build.ReleaseIntermediates,
	}
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
