// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the daemon's immutable startup configuration
// from layered sources (built-in defaults, an optional YAML file, then
// environment variables, each overriding the last), via
// github.com/knadh/koanf/v2.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "APENGINE_"

// Config is the full set of daemon startup settings.
type Config struct {
	Listen   ListenConfig   `koanf:"listen"`
	Backend  BackendConfig  `koanf:"backend"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Tracing  TracingConfig  `koanf:"tracing"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
	Secrets  SecretsConfig  `koanf:"secrets"`

	// DataSourceMappingFile points at a YAML file of netloc-glob ->
	// executor-URL rules consumed by internal/datasource at startup.
	DataSourceMappingFile string `koanf:"datasourceMappingFile"`
	// RequestOptionsFile points at a JSON file of URL-regex
	// request-options rules (retry, TLS, timeout, auth) consumed by
	// internal/fetch.
	RequestOptionsFile string `koanf:"requestOptionsFile"`
	// StagingRoot is the host directory the Application Package
	// Interpreter bind-mounts job input/output directories under.
	StagingRoot string `koanf:"stagingRoot"`
	// DockerHost overrides the Docker client's default connection
	// (empty uses the environment, e.g. DOCKER_HOST).
	DockerHost string `koanf:"dockerHost"`
}

// ListenConfig is the daemon's HTTP bind configuration.
type ListenConfig struct {
	Addr string `koanf:"addr"`
}

// BackendConfig selects and configures the Store (C2) backend.
type BackendConfig struct {
	// Type is "memory", "sqlite", or "postgres".
	Type string `koanf:"type"`
	// DSN is the sqlite file path or postgres connection string; unused
	// for "memory".
	DSN string `koanf:"dsn"`
}

// DispatchConfig tunes the Dispatcher (C7) worker pool.
type DispatchConfig struct {
	MaxParallel int           `koanf:"maxParallel"`
	MaxQueued   int           `koanf:"maxQueued"`
	SyncTimeout time.Duration `koanf:"syncTimeout"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Exporter string `koanf:"exporter"`
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// SMTPConfig configures outbound job-completion email notifications.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// LogConfig configures internal/log's slog wrapper.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SecretsConfig controls how request-options auth and notification
// credential fields resolve scheme-prefixed secret references
// (env:VAR, file:/path) before they reach an outbound request or the
// SMTP dialer.
type SecretsConfig struct {
	// InheritEnv enables the env: scheme; when false, every env:
	// reference fails closed rather than falling back to a literal.
	InheritEnv bool `koanf:"inheritEnv"`
	// EnvAllowlist restricts which variable names the env: scheme may
	// read. Empty means no restriction beyond InheritEnv.
	EnvAllowlist []string `koanf:"envAllowlist"`
	// FileAllowlist is the set of absolute path prefixes the file:
	// scheme may read from. Empty disables the file: scheme entirely.
	FileAllowlist []string `koanf:"fileAllowlist"`
}

// Load builds a Config from defaults, an optional YAML file at path
// (skipped silently if path is empty or does not exist), and
// environment variables prefixed APENGINE_ (double underscore
// separates nested keys, e.g. APENGINE_BACKEND__TYPE=postgres).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: load file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"listen.addr":          ":8080",
		"backend.type":         "memory",
		"dispatch.maxParallel": 10,
		"dispatch.maxQueued":   100,
		"dispatch.syncTimeout": 20 * time.Second,
		"tracing.exporter":     "none",
		"stagingRoot":          os.TempDir(),
		"log.level":            "info",
		"log.format":           "json",
		"secrets.inheritEnv":   true,
	}
}

func (c *Config) validate() error {
	switch c.Backend.Type {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: backend.type must be memory, sqlite, or postgres, got %q", c.Backend.Type)
	}
	if c.Backend.Type != "memory" && c.Backend.DSN == "" {
		return fmt.Errorf("config: backend.dsn is required for backend.type %q", c.Backend.Type)
	}
	if c.Listen.Addr == "" {
		return fmt.Errorf("config: listen.addr must not be empty")
	}
	return nil
}
