// Package config provides configuration management for livemd using Viper
// for flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the LIVEMD_ prefix, and validation. It manages the content
// root, server settings, and the watcher's debounce window.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ContentDir string       `yaml:"content_dir"`
	OutputDir  string       `yaml:"output_dir"`
	Server     ServerConfig `yaml:"server"`
	Watch      WatchConfig  `yaml:"watch"`
	Log        LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Open bool   `yaml:"open"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults: serve ./doc on localhost:3000 and open a browser tab on startup.
const (
	DefaultContentDir = "doc"
	DefaultOutputDir  = "_dist"
	DefaultPort       = 3000
	DefaultHost       = "127.0.0.1"
	DefaultDebounce   = 100 * time.Millisecond
)

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.ContentDir == "" {
		config.ContentDir = viper.GetString("content_dir")
	}
	if config.ContentDir == "" {
		config.ContentDir = DefaultContentDir
	}
	if config.OutputDir == "" {
		config.OutputDir = viper.GetString("output_dir")
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}

	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}

	// Open defaults to true; --no-open and LIVEMD_SERVER_NO_OPEN both win
	// over the config file (workaround for viper bool handling).
	if viper.IsSet("server.open") {
		config.Server.Open = viper.GetBool("server.open")
	} else {
		config.Server.Open = true
	}
	if viper.GetBool("server.no-open") {
		config.Server.Open = false
	}

	if config.Watch.Debounce == 0 {
		if viper.IsSet("watch.debounce") {
			config.Watch.Debounce = viper.GetDuration("watch.debounce")
		}
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = viper.GetString("log-level")
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = viper.GetString("log-format")
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks configuration values for correctness. The tool is
// localhost-only, so non-local bind hosts are rejected.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", c.Server.Port)
	}

	switch c.Server.Host {
	case "127.0.0.1", "localhost", "::1":
	default:
		return fmt.Errorf("host %q not allowed: livemd binds to localhost only", c.Server.Host)
	}

	if c.Watch.Debounce < 10*time.Millisecond || c.Watch.Debounce > 2*time.Second {
		return fmt.Errorf("debounce %s out of range (10ms-2s)", c.Watch.Debounce)
	}

	if c.ContentDir == "" {
		return fmt.Errorf("content_dir must not be empty")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q not supported (text, json)", c.Log.Format)
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// URL returns the server's base URL.
func (c *Config) URL() string {
	return fmt.Sprintf("http://%s", c.Addr())
}
