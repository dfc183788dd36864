// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"storyreel/internal/database"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database database.Config `yaml:"database"`
	Timeline TimelineConfig  `yaml:"timeline"`
	Preview  PreviewConfig   `yaml:"preview"`
	Export   ExportConfig    `yaml:"export"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TimelineConfig holds manifest loading settings
type TimelineConfig struct {
	// ManifestPath is the clip manifest written by the generation pipeline.
	// Empty disables file loading and the watcher; manifests can still be
	// pushed over the API.
	ManifestPath string `yaml:"manifest_path"`
	Watch        bool   `yaml:"watch"`
}

// PreviewConfig holds render surface and scheduler settings
type PreviewConfig struct {
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// ExportConfig holds offline rendering settings
type ExportConfig struct {
	FPS          int           `yaml:"fps"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: database.Config{
			Type: "sqlite",
			DSN:  "storyreel.db",
		},
		Timeline: TimelineConfig{
			Watch: true,
		},
		Preview: PreviewConfig{
			Width:        1280,
			Height:       720,
			TickInterval: time.Second / 60,
		},
		Export: ExportConfig{
			FPS:          30,
			FrameTimeout: 10 * time.Second,
		},
	}
}

// Load reads the config file at path (when it exists) over the defaults,
// then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORYREEL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STORYREEL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STORYREEL_DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("STORYREEL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("STORYREEL_MANIFEST"); v != "" {
		cfg.Timeline.ManifestPath = v
	}
	if v := os.Getenv("STORYREEL_EXPORT_FPS"); v != "" {
		if fps, err := strconv.Atoi(v); err == nil {
			cfg.Export.FPS = fps
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("invalid preview surface %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.Width%2 != 0 || c.Preview.Height%2 != 0 {
		// yuv420p output needs even dimensions.
		return fmt.Errorf("preview surface dimensions must be even, got %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if c.Export.FPS <= 0 {
		return fmt.Errorf("invalid export fps %d", c.Export.FPS)
	}
	return nil
}
