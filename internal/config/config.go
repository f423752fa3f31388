// Package config loads runtime configuration from an optional YAML file
// and PIXELSENDER_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables read by Load.
// Double underscores separate nesting levels so key names may carry
// single underscores, e.g. PIXELSENDER_PIXEL__SCRIPT_ID.
const envPrefix = "PIXELSENDER_"

type Config struct {
	Pixel    PixelConfig    `koanf:"pixel"`
	Database DatabaseConfig `koanf:"database"`
	Serve    ServeConfig    `koanf:"serve"`
	Defaults DefaultsConfig `koanf:"defaults"`
}

// PixelConfig points at the third-party tracking endpoint.
type PixelConfig struct {
	URL      string        `koanf:"url"`
	ScriptID string        `koanf:"script_id"`
	Timeout  time.Duration `koanf:"timeout"`
}

// DatabaseConfig selects the conversion store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // mysql, pgx, sqlite3
	DSN    string `koanf:"dsn"`
	Name   string `koanf:"name"` // reported in run results
}

type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// DefaultsConfig sets the run flags applied when a request or command
// does not override them.
type DefaultsConfig struct {
	DryRun          bool `koanf:"dry_run"`
	SkipDedup       bool `koanf:"skip_dedup"`
	IncludePayloads bool `koanf:"include_payloads"`
}

// Load reads configuration from the YAML file at path (skipped when
// path is empty) and then overlays environment variables. Unset keys
// fall back to built-in defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	if !k.Exists("serve.addr") {
		k.Set("serve.addr", ":8087")
	}
	if !k.Exists("pixel.timeout") {
		k.Set("pixel.timeout", "10s")
	}
	if !k.Exists("database.driver") {
		k.Set("database.driver", "mysql")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
