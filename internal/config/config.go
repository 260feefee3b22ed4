// Package config loads driver, storage and logging settings from YAML or JSON files.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/prt/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Strategy names accepted in DriverConfig.Strategy.
const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round_robin"
)

// DriverConfig bounds and seeds runs.
type DriverConfig struct {
	Strategy   string        `mapstructure:"strategy"`
	Seed       uint64        `mapstructure:"seed"`
	MaxSteps   int           `mapstructure:"max_steps"`
	Iterations int           `mapstructure:"iterations"`
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Liveness   bool          `mapstructure:"liveness"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig configures the Redis checkpoint store. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// CheckpointConfig selects where failing runs are checkpointed.
type CheckpointConfig struct {
	// Store is one of "memory", "file" or "redis"; empty disables checkpoints.
	Store string      `mapstructure:"store"`
	Dir   string      `mapstructure:"dir"`
	Redis RedisConfig `mapstructure:"redis"`
	// Redact lists regular expressions; payload map keys matching one are masked before saving.
	Redact []string `mapstructure:"redact"`
	// EncryptionKey is a base64 AES-256 key. When set, checkpoints are stored encrypted.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys are older base64 keys still accepted for decryption.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Keys decodes the encryption keys. The active key is nil when encryption is off.
func (c CheckpointConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(c.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("checkpoint.encryption_key: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("checkpoint.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// HTTPConfig configures the introspection handler.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the full configuration of a prt process.
type Config struct {
	Driver     DriverConfig     `mapstructure:"driver"`
	Log        LogConfig        `mapstructure:"log"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Driver: DriverConfig{
			Strategy:   StrategyRandom,
			MaxSteps:   10000,
			Iterations: 1,
			Workers:    1,
			Liveness:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Checkpoint: CheckpointConfig{
			Dir: filepath.Join(".prt", "checkpoints"),
			Redis: RedisConfig{
				Prefix:  "prt:checkpoint:",
				LockTTL: 30 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Namespace: "prt",
		},
	}
}

// Load reads a configuration file (YAML or JSON, by extension) over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return Decode(raw)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return Decode(raw)
}

// Decode applies a generic map (as produced by a YAML or JSON decoder) over the defaults.
// Durations accept Go duration strings; unknown keys are rejected.
func Decode(raw map[string]any) (Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Driver.Strategy {
	case StrategyRandom, StrategyRoundRobin:
	default:
		errs = append(errs, fmt.Errorf("driver.strategy: unknown strategy %q", c.Driver.Strategy))
	}
	if c.Driver.MaxSteps < 0 {
		errs = append(errs, errors.New("driver.max_steps must not be negative"))
	}
	if c.Driver.Iterations < 1 {
		errs = append(errs, errors.New("driver.iterations must be at least 1"))
	}
	if c.Driver.Workers < 1 {
		errs = append(errs, errors.New("driver.workers must be at least 1"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Checkpoint.Store {
	case "", "memory", "file":
	case "redis":
		if c.Checkpoint.Redis.Addr == "" {
			errs = append(errs, errors.New("checkpoint.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.store: unknown store %q", c.Checkpoint.Store))
	}
	if _, _, err := c.Checkpoint.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Checkpoint.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint.redact: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by c.Log.
func (c Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.NewWithWriter(os.Stderr, logging.Format(c.Log.Format), level)
}
