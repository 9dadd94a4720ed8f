package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all pipeline settings.
const envPrefix = "SCLSTATS"

// envKeys lists the keys that must resolve from the environment even when no
// config file mentions them. viper's AutomaticEnv only consults the
// environment for keys it already knows about.
var envKeys = []string{
	"app.name", "app.environment",
	"log.level", "log.format",
	"task.root_dir", "task.bucket", "task.species", "task.scenario", "task.variant", "task.overwrite",
	"area.strategy", "area.precision", "area.scale", "area.max_pixels", "area.error_margin",
	"poll.interval", "poll.max_interval", "poll.multiplier", "poll.max_attempts",
	"engine.source", "engine.data_dir", "engine.max_cells", "engine.max_level",
	"executor.mode", "executor.workers", "executor.job_ttl",
	"database.enabled", "database.host", "database.port", "database.user", "database.password",
	"database.db_name", "database.ssl_mode", "database.migration_path",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.jobs_topic", "kafka.events_topic",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key", "minio.use_ssl",
	"minio.region", "minio.data_bucket",
	"metrics.enabled", "metrics.namespace", "metrics.addr",
}

// newViper builds a pre-configured Viper instance: YAML file type, SCLSTATS_
// env prefix, automatic env binding, and a key replacer that maps "." to "_"
// so that "database.host" resolves to "SCLSTATS_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// loadDotEnv reads a .env file from the working directory if one exists.
// Variables already present in the process environment are not overridden.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: failed to read .env: %w", err)
	}
	return nil
}

// Load reads the YAML file at configPath, merges any SCLSTATS_* environment
// overrides (including those from a local .env file), applies defaults for
// unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from SCLSTATS_* environment variables,
// with no config file required.
//
//	SCLSTATS_<SECTION>_<FIELD>   e.g.  SCLSTATS_TASK_SPECIES, SCLSTATS_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return unmarshalAndFinalize(newViper())
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed Config
// whenever the file changes on disk. Only the log level is meant to be applied
// at runtime; everything else takes effect on the next run.
//
// Watch is non-blocking. A change that fails to parse or validate is reported
// to onError (if non-nil) and onChange is not called.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending
