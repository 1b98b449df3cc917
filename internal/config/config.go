// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package config loads layered configuration with Koanf v2: built-in
// defaults, then an optional YAML file, then environment variables.
// Later layers override earlier ones.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rosterline/config.yaml",
	"/etc/rosterline/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Cache    CacheConfig    `koanf:"cache"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Token    TokenConfig    `koanf:"token"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// UpstreamConfig holds the fantasy provider connection settings.
type UpstreamConfig struct {
	BaseURL        string        `koanf:"base_url"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
	HealthTimeout  time.Duration `koanf:"health_timeout"`
	HealthPath     string        `koanf:"health_path"`
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
	RateBurst      int           `koanf:"rate_burst"`
}

// CacheConfig holds the roster cache settings.
type CacheConfig struct {
	Capacity   int           `koanf:"capacity"`
	SuccessTTL time.Duration `koanf:"success_ttl"`
	ErrorTTL   time.Duration `koanf:"error_ttl"`
}

// GatewayConfig holds facade-level settings.
type GatewayConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// TokenConfig holds the credential store and refresh settings.
// MasterKey is base64; empty disables at-rest encryption.
type TokenConfig struct {
	TokenURL     string        `koanf:"token_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	ExpiryBuffer time.Duration `koanf:"expiry_buffer"`
	StorePath    string        `koanf:"store_path"`
	InMemory     bool          `koanf:"in_memory"`
	MasterKey    string        `koanf:"master_key"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the
// config file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8640,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "",
			AttemptTimeout: 10 * time.Second,
			HealthTimeout:  3 * time.Second,
			HealthPath:     "/game/nfl",
			RetryAttempts:  3,
			RetryBaseDelay: 250 * time.Millisecond,
			RatePerSecond:  0,
			RateBurst:      5,
		},
		Cache: CacheConfig{
			Capacity:   500,
			SuccessTTL: 30 * time.Second,
			ErrorTTL:   5 * time.Minute,
		},
		Gateway: GatewayConfig{
			RequestTimeout: 45 * time.Second,
		},
		Token: TokenConfig{
			TokenURL:     "",
			ClientID:     "",
			ClientSecret: "",
			ExpiryBuffer: 2 * time.Minute,
			StorePath:    "/data/rosterline/tokens",
			InMemory:     false,
			MasterKey:    "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot run with. Missing
// credentials are a configuration error, distinct from any upstream
// failure at runtime.
func (c *Config) Validate() error {
	var missing []string
	if c.Upstream.BaseURL == "" {
		missing = append(missing, "upstream.base_url")
	}
	if c.Token.TokenURL == "" {
		missing = append(missing, "token.token_url")
	}
	if c.Token.ClientID == "" {
		missing = append(missing, "token.client_id")
	}
	if c.Token.ClientSecret == "" {
		missing = append(missing, "token.client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.SuccessTTL <= 0 || c.Cache.ErrorTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Upstream.RetryAttempts < 1 {
		return fmt.Errorf("upstream.retry_attempts must be at least 1, got %d", c.Upstream.RetryAttempts)
	}
	if !c.Token.InMemory && c.Token.StorePath == "" {
		return fmt.Errorf("token.store_path required unless token.in_memory is set")
	}
	return nil
}

// findConfigFile returns the first existing config file, honoring the
// CONFIG_PATH override.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps flat environment variable names to config paths.
// Unmapped variables are ignored so stray environment noise cannot
// pollute the configuration.
var envMappings = map[string]string{
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",

	"upstream_base_url":         "upstream.base_url",
	"upstream_attempt_timeout":  "upstream.attempt_timeout",
	"upstream_health_timeout":   "upstream.health_timeout",
	"upstream_health_path":      "upstream.health_path",
	"upstream_retry_attempts":   "upstream.retry_attempts",
	"upstream_retry_base_delay": "upstream.retry_base_delay",
	"upstream_rate_per_second":  "upstream.rate_per_second",
	"upstream_rate_burst":       "upstream.rate_burst",

	"cache_capacity":    "cache.capacity",
	"cache_success_ttl": "cache.success_ttl",
	"cache_error_ttl":   "cache.error_ttl",

	"gateway_request_timeout": "gateway.request_timeout",

	"token_url":           "token.token_url",
	"token_client_id":     "token.client_id",
	"token_client_secret": "token.client_secret",
	"token_expiry_buffer": "token.expiry_buffer",
	"token_store_path":    "token.store_path",
	"token_in_memory":     "token.in_memory",
	"token_master_key":    "token.master_key",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransform(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// sliceConfigPaths are fields that arrive from the environment as
// comma-separated strings but unmarshal as slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// Addr returns the listener address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
