// Package config loads jobscope configuration.
//
// Precedence, highest first: command-line flags (applied by the cmd
// layer as runtime overrides), environment variables with the JOBSCOPE_
// prefix, an optional config file, then built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the CLI and server.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Profile selects the encoder: "structured" (JSON) or "console".
	Profile string `mapstructure:"profile"`
}

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	// Timeout bounds each backend call during fan-out.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProvidersConfig enables and configures the job backends.
type ProvidersConfig struct {
	Local     LocalConfig     `mapstructure:"local"`
	Pipelines PipelinesConfig `mapstructure:"pipelines"`
	Queue     QueueConfig     `mapstructure:"queue"`
}

// LocalConfig configures the local process backend.
type LocalConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Root is the job registry directory. Defaults to ~/.jobscope/jobs.
	Root string `mapstructure:"root"`
}

// PipelinesConfig configures the S3-backed pipelines backend.
type PipelinesConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	Bucket          string  `mapstructure:"bucket"`
	Prefix          string  `mapstructure:"prefix"`
	Region          string  `mapstructure:"region"`
	Endpoint        string  `mapstructure:"endpoint"`
	Profile         string  `mapstructure:"profile"`
	AccessKeyID     string  `mapstructure:"access_key_id"`
	SecretAccessKey string  `mapstructure:"secret_access_key"`
	ForcePathStyle  bool    `mapstructure:"force_path_style"`
	MaxKeys         int     `mapstructure:"max_keys"`
	RateLimit       float64 `mapstructure:"rate_limit"`
}

// QueueConfig configures the Redis-backed queue backend.
type QueueConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("engine.timeout", "30s")

	v.SetDefault("providers.local.enabled", true)
	v.SetDefault("providers.local.root", defaultLocalRoot())

	v.SetDefault("providers.pipelines.enabled", false)
	v.SetDefault("providers.pipelines.region", "us-east-1")
	v.SetDefault("providers.pipelines.max_keys", 1000)

	v.SetDefault("providers.queue.enabled", false)
	v.SetDefault("providers.queue.addr", "localhost:6379")
	v.SetDefault("providers.queue.key_prefix", "")
}

func defaultLocalRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".jobscope", "jobs")
	}
	return filepath.Join(home, ".jobscope", "jobs")
}

// Load reads configuration from defaults, an optional config file, and
// JOBSCOPE_-prefixed environment variables.
//
// configFile may be empty, in which case ~/.jobscope/config.yaml is
// read when it exists. A configFile given explicitly must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOBSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		defaultFile := filepath.Join(home, ".jobscope", "config.yaml")
		if _, err := os.Stat(defaultFile); err == nil {
			v.SetConfigFile(defaultFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", defaultFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the type system cannot.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive: %s", c.Engine.Timeout)
	}
	if c.Providers.Local.Enabled && c.Providers.Local.Root == "" {
		return fmt.Errorf("providers.local.root is required when local provider is enabled")
	}
	if c.Providers.Pipelines.Enabled && c.Providers.Pipelines.Bucket == "" {
		return fmt.Errorf("providers.pipelines.bucket is required when pipelines provider is enabled")
	}
	if c.Providers.Queue.Enabled && c.Providers.Queue.Addr == "" {
		return fmt.Errorf("providers.queue.addr is required when queue provider is enabled")
	}
	return nil
}
