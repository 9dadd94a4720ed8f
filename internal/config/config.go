// Package config defines all configuration structures for the landscape
// statistics pipeline. No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TaskConfig holds the defaults a run is built from. The per-run values
// (species, scenario, task date, overwrite) can be overridden on the command
// line.
type TaskConfig struct {
	RootDir       string   `mapstructure:"root_dir"`
	Bucket        string   `mapstructure:"bucket"`
	Species       string   `mapstructure:"species"`
	Scenario      string   `mapstructure:"scenario"`
	Scenarios     []string `mapstructure:"scenarios"` // allowed scenarios; empty allows any
	Variant       string   `mapstructure:"variant"`   // "current" | "legacy"
	LandscapeKeys []string `mapstructure:"landscape_keys"`
	Granularities []string `mapstructure:"granularities"` // "country" | "state" | "landscape"
	Overwrite     bool     `mapstructure:"overwrite"`
}

// AreaConfig selects the area strategy and its numeric parameters.
type AreaConfig struct {
	Strategy    string  `mapstructure:"strategy"` // "raster" | "vector"
	Precision   *int    `mapstructure:"precision"` // nil selects the variant default
	Scale       float64 `mapstructure:"scale"`
	MaxPixels   int64   `mapstructure:"max_pixels"`
	ErrorMargin float64 `mapstructure:"error_margin"` // meters
}

// DecimalPlaces returns the configured rounding precision, falling back to
// DefaultPrecision when unset.
func (a AreaConfig) DecimalPlaces() int {
	if a.Precision == nil {
		return DefaultPrecision
	}
	return *a.Precision
}

// ExportConfig shapes the exported tables.
type ExportConfig struct {
	// Carry lists, per granularity, the attributes merged into each row from
	// the intersecting feature and the landscape.
	Carry map[string][]string `mapstructure:"carry"`
}

// InputConfig declares one logical input dataset.
type InputConfig struct {
	Path        string  `mapstructure:"path"`
	Kind        string  `mapstructure:"kind"` // "featurecollection" | "image"
	Static      bool    `mapstructure:"static"`
	MaxAgeYears float64 `mapstructure:"maxage"`
	Mandatory   bool    `mapstructure:"mandatory"`
}

// PollConfig bounds the wait for deferred jobs.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// EngineConfig tunes the local geometry engine.
type EngineConfig struct {
	Source   string `mapstructure:"source"` // "minio" | "dir"
	DataDir  string `mapstructure:"data_dir"`
	MaxCells int    `mapstructure:"max_cells"`
	MaxLevel int    `mapstructure:"max_level"`
}

// ExecutorConfig selects where deferred jobs run.
type ExecutorConfig struct {
	Mode    string        `mapstructure:"mode"` // "local" | "distributed"
	Workers int           `mapstructure:"workers"`
	JobTTL  time.Duration `mapstructure:"job_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	GroupID     string   `mapstructure:"group_id"`
	JobsTopic   string   `mapstructure:"jobs_topic"`
	EventsTopic string   `mapstructure:"events_topic"`
	BatchSize   int      `mapstructure:"batch_size"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	// DataBucket holds the input GeoJSON datasets read by the local engine.
	DataBucket string `mapstructure:"data_bucket"`
}

// MetricsConfig configures the Prometheus collector and the worker's
// health/metrics listener.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Addr      string `mapstructure:"addr"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	App      AppConfig              `mapstructure:"app"`
	Log      logging.LogConfig      `mapstructure:"log"`
	Task     TaskConfig             `mapstructure:"task"`
	Area     AreaConfig             `mapstructure:"area"`
	Export   ExportConfig           `mapstructure:"export"`
	Inputs   map[string]InputConfig `mapstructure:"inputs"`
	Poll     PollConfig             `mapstructure:"poll"`
	Engine   EngineConfig           `mapstructure:"engine"`
	Executor ExecutorConfig         `mapstructure:"executor"`
	Database DatabaseConfig         `mapstructure:"database"`
	Redis    RedisConfig            `mapstructure:"redis"`
	Kafka    KafkaConfig            `mapstructure:"kafka"`
	MinIO    MinIOConfig            `mapstructure:"minio"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	// Task
	if c.Task.Bucket == "" {
		return fmt.Errorf("config: task.bucket is required")
	}
	if c.Task.Species == "" {
		return fmt.Errorf("config: task.species is required")
	}
	switch c.Task.Variant {
	case VariantCurrent, VariantLegacy:
	default:
		return fmt.Errorf("config: task.variant %q is invalid; expected current|legacy", c.Task.Variant)
	}
	if len(c.Task.LandscapeKeys) == 0 {
		return fmt.Errorf("config: task.landscape_keys must not be empty")
	}
	for _, g := range c.Task.Granularities {
		switch g {
		case "country", "state", "landscape":
		default:
			return fmt.Errorf("config: task.granularities contains unknown value %q", g)
		}
	}

	// Area
	switch c.Area.Strategy {
	case "raster", "vector":
	default:
		return fmt.Errorf("config: area.strategy %q is invalid; expected raster|vector", c.Area.Strategy)
	}
	if p := c.Area.DecimalPlaces(); p < 0 || p > 6 {
		return fmt.Errorf("config: area.precision %d is out of range [0, 6]", p)
	}
	if c.Area.Scale <= 0 {
		return fmt.Errorf("config: area.scale must be > 0, got %v", c.Area.Scale)
	}
	if c.Area.MaxPixels <= 0 {
		return fmt.Errorf("config: area.max_pixels must be > 0, got %d", c.Area.MaxPixels)
	}
	if c.Area.ErrorMargin <= 0 {
		return fmt.Errorf("config: area.error_margin must be > 0, got %v", c.Area.ErrorMargin)
	}

	// Export
	for g, attrs := range c.Export.Carry {
		switch g {
		case "country", "state", "landscape":
		default:
			return fmt.Errorf("config: export.carry has unknown granularity %q", g)
		}
		for _, a := range attrs {
			if a == "" {
				return fmt.Errorf("config: export.carry.%s contains an empty attribute", g)
			}
		}
	}

	// Inputs
	for key, in := range c.Inputs {
		if in.Path == "" {
			return fmt.Errorf("config: inputs.%s.path is required", key)
		}
		switch in.Kind {
		case KindFeatureCollection, KindImage:
		default:
			return fmt.Errorf("config: inputs.%s.kind %q is invalid", key, in.Kind)
		}
		if !in.Static && in.MaxAgeYears <= 0 {
			return fmt.Errorf("config: inputs.%s.maxage must be > 0 for versioned inputs", key)
		}
	}
	for _, key := range c.Task.LandscapeKeys {
		if _, ok := c.Inputs[key]; !ok {
			return fmt.Errorf("config: landscape key %q has no input declaration", key)
		}
	}

	// Poll
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: poll.interval must be > 0")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("config: poll.max_attempts must be ≥ 1, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("config: poll.multiplier must be ≥ 1, got %v", c.Poll.Multiplier)
	}

	// Engine
	switch c.Engine.Source {
	case "minio":
		if !c.MinIO.Enabled {
			return fmt.Errorf("config: engine.source minio requires minio.enabled")
		}
	case "dir":
		if c.Engine.DataDir == "" {
			return fmt.Errorf("config: engine.data_dir is required when engine.source is dir")
		}
	default:
		return fmt.Errorf("config: engine.source %q is invalid; expected minio|dir", c.Engine.Source)
	}

	// Executor
	switch c.Executor.Mode {
	case "local":
	case "distributed":
		if !c.Kafka.Enabled || !c.Redis.Enabled {
			return fmt.Errorf("config: executor.mode distributed requires kafka.enabled and redis.enabled")
		}
	default:
		return fmt.Errorf("config: executor.mode %q is invalid; expected local|distributed", c.Executor.Mode)
	}
	if c.Executor.Workers < 1 {
		return fmt.Errorf("config: executor.workers must be ≥ 1, got %d", c.Executor.Workers)
	}

	// Database
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}

	// Kafka
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// MandatoryInputs returns the sorted keys of all inputs declared mandatory.
func (c *Config) MandatoryInputs() []string {
	var keys []string
	for key, in := range c.Inputs {
		if in.Mandatory {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

//Personal.AI order the ending
