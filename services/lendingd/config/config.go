package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen     = ":8480"
	defaultPoolConfig = "lending.toml"
	defaultDataDir    = "data/lendingd"
	defaultTimeout    = 10 * time.Second
	defaultSecretEnv  = "LENDINGD_JWT_SECRET"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress  string                     `yaml:"listen"`
	PoolConfig     string                     `yaml:"pool_config"`
	DataDir        string                     `yaml:"data_dir"`
	RequestTimeout time.Duration              `yaml:"request_timeout"`
	ReadTimeout    time.Duration              `yaml:"read_timeout"`
	WriteTimeout   time.Duration              `yaml:"write_timeout"`
	TLS            TLSConfig                  `yaml:"tls"`
	Auth           AuthConfig                 `yaml:"auth"`
	RateLimits     map[string]RateLimitConfig `yaml:"rate_limits"`
	Quota          QuotaConfig                `yaml:"quota"`
	CORS           CORSConfig                 `yaml:"cors"`
	Log            LogConfig                  `yaml:"log"`
	Telemetry      TelemetryConfig            `yaml:"telemetry"`
}

// TLSConfig describes the TLS material for the HTTP server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig configures bearer token validation for write routes. The secret
// may be supplied inline or through the named environment variable.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmac_secret"`
	SecretEnv  string        `yaml:"secret_env"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ScopeClaim string        `yaml:"scope_claim"`
	ClockSkew  time.Duration `yaml:"clock_skew"`

	// SingleUseTokens rejects any token id presented twice.
	SingleUseTokens bool `yaml:"single_use_tokens"`
}

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	RatePerSecond     float64        `yaml:"rate_per_second"`
	RequestsPerMinute float64        `yaml:"requests_per_minute"`
	Burst             int            `yaml:"burst"`
	DefaultTokens     int            `yaml:"default_tokens"`
	Tokens            map[string]int `yaml:"tokens"`
}

// QuotaConfig bounds the writes one account may issue per epoch. Zero values
// disable the matching limit.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `yaml:"max_requests_per_epoch"`
	MaxValuePerEpoch    uint64 `yaml:"max_value_per_epoch"`
	EpochSeconds        uint32 `yaml:"epoch_seconds"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig selects the OTLP/HTTP exporters. Headers use the
// OTEL_EXPORTER_OTLP_HEADERS syntax.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Headers     string  `yaml:"headers"`
	Traces      bool    `yaml:"traces"`
	Metrics     bool    `yaml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads the YAML configuration from disk and validates the result.
// Relative pool config and data paths resolve against the config file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabasePath is the LevelDB directory holding pool state.
func (cfg Config) DatabasePath() string {
	return filepath.Join(cfg.DataDir, "state")
}

// TokenStorePath is the LevelDB directory of spent token ids.
func (cfg Config) TokenStorePath() string {
	return filepath.Join(cfg.DataDir, "tokens")
}

func (cfg *Config) normalize(base string) {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.PoolConfig = resolve(base, strings.TrimSpace(cfg.PoolConfig), defaultPoolConfig)
	cfg.DataDir = resolve(base, strings.TrimSpace(cfg.DataDir), defaultDataDir)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	if cfg.Log.File != "" {
		cfg.Log.File = resolve(base, cfg.Log.File, "")
	}
}

func resolve(base, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(base, value)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	for name, limit := range cfg.RateLimits {
		if limit.RatePerSecond < 0 || limit.RequestsPerMinute < 0 || limit.Burst < 0 || limit.DefaultTokens < 0 {
			return fmt.Errorf("rate_limits.%s: values must not be negative", name)
		}
		for route, tokens := range limit.Tokens {
			if tokens <= 0 {
				return fmt.Errorf("rate_limits.%s.tokens[%q]: cost must be positive", name, route)
			}
			if limit.Burst > 0 && tokens > limit.Burst {
				return fmt.Errorf("rate_limits.%s.tokens[%q]: cost exceeds burst", name, route)
			}
		}
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the server terminates TLS itself.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.SecretEnv = strings.TrimSpace(cfg.SecretEnv)
	if cfg.SecretEnv == "" {
		cfg.SecretEnv = defaultSecretEnv
	}
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	if cfg.HMACSecret == "" {
		cfg.HMACSecret = strings.TrimSpace(os.Getenv(cfg.SecretEnv))
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.ScopeClaim = strings.TrimSpace(cfg.ScopeClaim)
}

func (cfg AuthConfig) validate() error {
	if cfg.SingleUseTokens && !cfg.Enabled {
		return fmt.Errorf("single_use_tokens requires enabled=true")
	}
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.HMACSecret) < 32 {
		return fmt.Errorf("hmac secret must be at least 32 bytes (set hmac_secret or %s)", cfg.SecretEnv)
	}
	if cfg.ClockSkew < 0 {
		return fmt.Errorf("clock_skew must not be negative")
	}
	return nil
}
