// Package config loads payoutd configuration from a YAML file, an optional
// .env file and PAYOUT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "PAYOUT"
	ConfigName = "config"
	ConfigType = "yaml"
)

// Read loads configuration. configPath is either a YAML file or a
// directory holding config.yaml; a missing file falls back to defaults.
// envFiles are loaded into the process environment first (default ".env");
// variables already set are not overridden.
//
// Environment variables override file values, e.g. PAYOUT_DATABASE_PATH
// overrides database.path.
func Read(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if ext := filepath.Ext(configPath); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType(ConfigType)
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "payoutd")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.cors.max_age_seconds", 300)

	v.SetDefault("database.path", "payouts.db")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout_seconds", 5)
	v.SetDefault("redis.read_timeout_seconds", 3)
	v.SetDefault("redis.write_timeout_seconds", 3)
	v.SetDefault("redis.key_prefix", "payoutd:")
	v.SetDefault("redis.ttl_seconds", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output.stdout", true)
	v.SetDefault("logging.output.file.enabled", false)
	v.SetDefault("logging.output.file.path", "logs/payoutd.log")
	v.SetDefault("logging.output.file.max_size_mb", 50)
	v.SetDefault("logging.output.file.max_backups", 5)
	v.SetDefault("logging.output.file.max_age_days", 30)
	v.SetDefault("logging.output.file.compress", true)

	v.SetDefault("rewards.policy_file", "")
	v.SetDefault("rewards.timezone", "")
	v.SetDefault("rewards.months_back", 12)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_seconds", 600)
	v.SetDefault("scheduler.months_back", 12)
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Logging.Output.File.Enabled && c.Logging.Output.File.Path == "" {
		errs = append(errs, errors.New("logging.output.file.path is required when file output is enabled"))
	}
	if c.Rewards.Timezone != "" {
		if _, err := time.LoadLocation(c.Rewards.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("rewards.timezone: %w", err))
		}
	}
	if c.Rewards.MonthsBack <= 0 {
		errs = append(errs, errors.New("rewards.months_back must be positive"))
	}
	if c.Scheduler.Enabled && c.Scheduler.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("scheduler.interval_seconds must be positive when the scheduler is enabled"))
	}
	if c.Scheduler.Enabled && c.Scheduler.MonthsBack <= 0 {
		errs = append(errs, errors.New("scheduler.months_back must be positive when the scheduler is enabled"))
	}

	return errors.Join(errs...)
}

// =============================================================================
// DURATIONS
// =============================================================================

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (c ServerConfig) ReadTimeout() time.Duration     { return seconds(c.ReadTimeoutSeconds, 15) }
func (c ServerConfig) WriteTimeout() time.Duration    { return seconds(c.WriteTimeoutSeconds, 15) }
func (c ServerConfig) ShutdownTimeout() time.Duration { return seconds(c.ShutdownTimeoutSeconds, 30) }

func (c RedisConfig) DialTimeout() time.Duration  { return seconds(c.DialTimeoutSeconds, 5) }
func (c RedisConfig) ReadTimeout() time.Duration  { return seconds(c.ReadTimeoutSeconds, 3) }
func (c RedisConfig) WriteTimeout() time.Duration { return seconds(c.WriteTimeoutSeconds, 3) }
func (c RedisConfig) TTL() time.Duration          { return seconds(c.TTLSeconds, 300) }

func (c SchedulerConfig) Interval() time.Duration { return seconds(c.IntervalSeconds, 600) }

// IsDevelopment reports whether the server runs in development mode.
func (c ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
