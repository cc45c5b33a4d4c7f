// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the feeder.
type Config struct {
	// Backing configures the buffer being windowed into.
	Backing BackingConfig `yaml:"backing"`

	// Window configures cursor movement.
	Window WindowConfig `yaml:"window"`

	// Channel configures the connection to the consumer.
	Channel ChannelConfig `yaml:"channel"`

	// Pipes configures the inherited control and observer pipes.
	Pipes PipesConfig `yaml:"pipes"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`
}

// BackingConfig configures the backing buffer.
type BackingConfig struct {
	// Path is the file mapped read-only as the backing buffer.
	Path string `yaml:"path"`

	// Wrap makes positions past the end re-enter at the start instead
	// of clamping to the end.
	// Default: false
	Wrap bool `yaml:"wrap"`

	// StartOffset is the initial window position.
	// Default: 0
	StartOffset int64 `yaml:"start_offset"`

	// Alignment rounds the initial position down to a multiple of this
	// many bytes. Zero disables alignment.
	// Default: 0
	Alignment int64 `yaml:"alignment"`
}

// WindowConfig configures cursor movement.
type WindowConfig struct {
	// Name is announced to the consumer as the feeder identity.
	// Default: fsense
	Name string `yaml:"name"`

	// LargeStep is the shift exponent for large steps: a large step
	// moves by one viewport's byte span >> LargeStep.
	// Default: 1 (half a viewport)
	LargeStep uint `yaml:"large_step"`
}

// ChannelConfig configures the consumer connection.
type ChannelConfig struct {
	// Socket is the unix socket the consumer listens on.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/fsense.sock
	Socket string `yaml:"socket"`

	// Compression is the window payload compression: none, lz4, or zstd.
	// Default: lz4
	Compression string `yaml:"compression"`

	// MaxEdge is the largest surface edge a resize may request.
	// Default: 4096
	MaxEdge int `yaml:"max_edge"`

	// RowSize and Rows are the geometry assumed until the consumer
	// announces its own.
	// Default: 256 x 64
	RowSize int `yaml:"row_size"`
	Rows    int `yaml:"rows"`
}

// PipesConfig names inherited file descriptors. -1 disables a pipe.
type PipesConfig struct {
	// ControlFD delivers absolute positions from the parent process.
	// Default: -1
	ControlFD int `yaml:"control_fd"`

	// ObserverFD receives every refreshed position.
	// Default: -1
	ObserverFD int `yaml:"observer_fd"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is json, text, or auto (text when stderr is a terminal).
	// Default: auto
	Format string `yaml:"format"`

	// File, if set, receives log records instead of stderr. The file
	// is rotated by size.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which File is rotated.
	// Default: 16
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is how many rotated files are kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`
}

// Default returns the default configuration. Defaults are used as a base
// before loading the config file, so a file only needs the fields it
// changes.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Name:      "fsense",
			LargeStep: 1,
		},
		Channel: ChannelConfig{
			Socket:      "${XDG_RUNTIME_DIR:-/tmp}/fsense.sock",
			Compression: "lz4",
			MaxEdge:     4096,
			RowSize:     256,
			Rows:        64,
		},
		Pipes: PipesConfig{
			ControlFD:  -1,
			ObserverFD: -1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  16,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from the FSENSE_CONFIG environment variable.
// Fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("FSENSE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FSENSE_CONFIG environment variable not set; " +
			"set it to the path of your fsense.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// [Default] and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.ExpandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// JSON is a subset of YAML, so once comments and trailing commas are
	// stripped the same decoder handles both.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc", ".json":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. The binary calls it again after applying flags.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Backing.Path = expandVars(c.Backing.Path, vars)
	c.Channel.Socket = expandVars(c.Channel.Socket, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Backing.Path == "" {
		errs = append(errs, errors.New("backing.path is required"))
	}
	if c.Backing.StartOffset < 0 {
		errs = append(errs, fmt.Errorf("backing.start_offset must not be negative, got %d", c.Backing.StartOffset))
	}
	if c.Backing.Alignment < 0 {
		errs = append(errs, fmt.Errorf("backing.alignment must not be negative, got %d", c.Backing.Alignment))
	}

	if c.Window.Name == "" {
		errs = append(errs, errors.New("window.name is required"))
	}
	if c.Window.LargeStep > 62 {
		errs = append(errs, fmt.Errorf("window.large_step must be at most 62, got %d", c.Window.LargeStep))
	}

	if c.Channel.Socket == "" {
		errs = append(errs, errors.New("channel.socket is required"))
	}
	switch c.Channel.Compression {
	case "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("channel.compression must be none, lz4, or zstd, got %q", c.Channel.Compression))
	}
	if c.Channel.MaxEdge <= 0 {
		errs = append(errs, fmt.Errorf("channel.max_edge must be positive, got %d", c.Channel.MaxEdge))
	}
	if c.Channel.RowSize <= 0 || c.Channel.Rows <= 0 {
		errs = append(errs, fmt.Errorf("channel geometry must be positive, got %dx%d", c.Channel.RowSize, c.Channel.Rows))
	}

	if c.Pipes.ControlFD >= 0 && c.Pipes.ControlFD == c.Pipes.ObserverFD {
		errs = append(errs, fmt.Errorf("pipes.control_fd and pipes.observer_fd are both %d", c.Pipes.ControlFD))
	}
	if c.Pipes.ControlFD >= 0 && c.Pipes.ControlFD <= 2 {
		errs = append(errs, fmt.Errorf("pipes.control_fd must not be a standard stream, got %d", c.Pipes.ControlFD))
	}
	if c.Pipes.ObserverFD >= 0 && c.Pipes.ObserverFD <= 2 {
		errs = append(errs, fmt.Errorf("pipes.observer_fd must not be a standard stream, got %d", c.Pipes.ObserverFD))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, json, or text, got %q", c.Log.Format))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb must be positive, got %d", c.Log.MaxSizeMB))
	}

	return errors.Join(errs...)
}
