// Package config provides configuration loading, defaults, and validation for
// the landscape statistics pipeline.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	VariantCurrent = "current"
	VariantLegacy  = "legacy"

	KindFeatureCollection = "featurecollection"
	KindImage             = "image"

	DefaultAppName     = "sclstats"
	DefaultRootDir     = "projects/SCL/v1"
	DefaultBucket      = "scl-pipeline"
	DefaultSpecies     = "Panthera_tigris"
	DefaultScenario    = "canonical"
	DefaultGranularity = "country"

	DefaultAreaStrategy       = "raster"
	DefaultPrecision          = 1
	DefaultLegacyPrecision    = 2
	DefaultAreaScale          = 30.0
	DefaultMaxPixels    int64 = 500_000_000_000
	DefaultErrorMargin        = 1.0

	DefaultPollInterval    = 30 * time.Second
	DefaultPollMaxInterval = 5 * time.Minute
	DefaultPollMultiplier  = 1.5
	DefaultPollMaxAttempts = 120

	DefaultEngineSource   = "dir"
	DefaultEngineDataDir  = "./data"
	DefaultEngineMaxCells = 4096
	DefaultEngineMaxLevel = 20

	DefaultExecutorMode    = "local"
	DefaultExecutorWorkers = 4
	DefaultJobTTL          = 72 * time.Hour

	DefaultDBHost  = "localhost"
	DefaultDBPort  = 5432
	DefaultDBName  = "sclstats"
	DefaultDBConns = 10

	DefaultMigrationPath = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "sclstats:"
	DefaultRedisTTL       = 6 * time.Hour

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "sclstats-worker"
	DefaultKafkaJobsTopic   = "scl.stats.jobs"
	DefaultKafkaEventsTopic = "scl.stats.runs"

	DefaultMinIOEndpoint   = "localhost:9000"
	DefaultMinIODataBucket = "scl-data"

	DefaultMetricsNamespace = "sclstats"
	DefaultMetricsAddr      = ":9090"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Landscape keys produced by the upstream delineation task.
var (
	CurrentLandscapeKeys = []string{"scl_species", "scl_restoration", "scl_survey", "scl_fragment"}
	LegacyLandscapeKeys  = []string{"scl_species", "scl_survey"}
)

// DefaultInputs returns the input declarations for a variant. Paths may use
// the {root}, {species}, {scenario} and {taskdate} placeholders. The legacy
// variant reads its landscapes from a dated folder instead of resolving the
// latest version.
func DefaultInputs(variant string) map[string]InputConfig {
	landscape := func(key string) InputConfig {
		return InputConfig{
			Path:        "{root}/{species}/{scenario}/scl_poly/" + key,
			Kind:        KindFeatureCollection,
			MaxAgeYears: 1.0 / 365,
		}
	}

	if variant == VariantLegacy {
		legacy := func(key string) InputConfig {
			return InputConfig{
				Path:   "{root}/Panthera_tigris/geographies/Sumatra/scl_poly/{taskdate}/" + key,
				Kind:   KindFeatureCollection,
				Static: true,
			}
		}
		return map[string]InputConfig{
			"scl_species": legacy("scl_species"),
			"scl_survey":  legacy("scl_survey"),
			"countries":   {Path: "USDOS/LSIB/2017", Kind: KindFeatureCollection, Static: true, Mandatory: true},
			"leuser":      {Path: "{root}/Panthera_tigris/geographies/Sumatra/leuser", Kind: KindFeatureCollection, Static: true, Mandatory: true},
			"ecoregions":  {Path: "RESOLVE/ECOREGIONS/2017", Kind: KindFeatureCollection, Static: true, Mandatory: true},
			"pas":         {Path: "WCMC/WDPA/current/polygons", Kind: KindFeatureCollection, MaxAgeYears: 1, Mandatory: true},
		}
	}

	return map[string]InputConfig{
		"scl_species":      landscape("scl_species"),
		"scl_restoration":  landscape("scl_restoration"),
		"scl_survey":       landscape("scl_survey"),
		"scl_fragment":     landscape("scl_fragment"),
		"historical_range": {Path: "{root}/{species}/historical_range", Kind: KindImage, Static: true},
		"countries":        {Path: "USDOS/LSIB/2013", Kind: KindFeatureCollection, MaxAgeYears: 10, Mandatory: true},
		"ecoregions":       {Path: "RESOLVE/ECOREGIONS/2017", Kind: KindFeatureCollection, MaxAgeYears: 5, Mandatory: true},
		"pas":              {Path: "WCMC/WDPA/current/polygons", Kind: KindFeatureCollection, MaxAgeYears: 1, Mandatory: true},
		"kbas":             {Path: "KBA/current/polygons", Kind: KindFeatureCollection, MaxAgeYears: 1},
		"states":           {Path: "FAO/GAUL/2015/level1", Kind: KindFeatureCollection, Static: true},
	}
}

// DefaultCarry merges the country name into every country row.
func DefaultCarry() map[string][]string {
	return map[string][]string{"country": {"COUNTRY_NA"}}
}

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set by the caller are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── App ───────────────────────────────────────────────────────────────────
	if cfg.App.Name == "" {
		cfg.App.Name = DefaultAppName
	}

	// ── Task ──────────────────────────────────────────────────────────────────
	if cfg.Task.Variant == "" {
		cfg.Task.Variant = VariantCurrent
	}
	if cfg.Task.RootDir == "" {
		cfg.Task.RootDir = DefaultRootDir
	}
	if cfg.Task.Bucket == "" {
		cfg.Task.Bucket = DefaultBucket
	}
	if cfg.Task.Species == "" {
		cfg.Task.Species = DefaultSpecies
	}
	if cfg.Task.Scenario == "" {
		cfg.Task.Scenario = DefaultScenario
	}
	if len(cfg.Task.LandscapeKeys) == 0 {
		if cfg.Task.Variant == VariantLegacy {
			cfg.Task.LandscapeKeys = append([]string(nil), LegacyLandscapeKeys...)
		} else {
			cfg.Task.LandscapeKeys = append([]string(nil), CurrentLandscapeKeys...)
		}
	}
	if len(cfg.Task.Granularities) == 0 {
		cfg.Task.Granularities = []string{DefaultGranularity}
	}

	// ── Area ──────────────────────────────────────────────────────────────────
	if cfg.Area.Strategy == "" {
		cfg.Area.Strategy = DefaultAreaStrategy
	}
	if cfg.Area.Precision == nil {
		p := DefaultPrecision
		if cfg.Task.Variant == VariantLegacy {
			p = DefaultLegacyPrecision
		}
		cfg.Area.Precision = &p
	}
	if cfg.Area.Scale == 0 {
		cfg.Area.Scale = DefaultAreaScale
	}
	if cfg.Area.MaxPixels == 0 {
		cfg.Area.MaxPixels = DefaultMaxPixels
	}
	if cfg.Area.ErrorMargin == 0 {
		cfg.Area.ErrorMargin = DefaultErrorMargin
	}

	// ── Export ────────────────────────────────────────────────────────────────
	if cfg.Export.Carry == nil {
		cfg.Export.Carry = DefaultCarry()
	}

	// ── Inputs ────────────────────────────────────────────────────────────────
	defaults := DefaultInputs(cfg.Task.Variant)
	if cfg.Inputs == nil {
		cfg.Inputs = make(map[string]InputConfig, len(defaults))
	}
	for key, def := range defaults {
		in, ok := cfg.Inputs[key]
		if !ok {
			cfg.Inputs[key] = def
			continue
		}
		if in.Path == "" {
			in.Path = def.Path
		}
		if in.Kind == "" {
			in.Kind = def.Kind
		}
		if !in.Static && in.MaxAgeYears == 0 {
			in.Static = def.Static
			in.MaxAgeYears = def.MaxAgeYears
		}
		cfg.Inputs[key] = in
	}

	// ── Poll ──────────────────────────────────────────────────────────────────
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.MaxInterval == 0 {
		cfg.Poll.MaxInterval = DefaultPollMaxInterval
	}
	if cfg.Poll.Multiplier == 0 {
		cfg.Poll.Multiplier = DefaultPollMultiplier
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll.MaxAttempts = DefaultPollMaxAttempts
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.Source == "" {
		cfg.Engine.Source = DefaultEngineSource
	}
	if cfg.Engine.DataDir == "" {
		cfg.Engine.DataDir = DefaultEngineDataDir
	}
	if cfg.Engine.MaxCells == 0 {
		cfg.Engine.MaxCells = DefaultEngineMaxCells
	}
	if cfg.Engine.MaxLevel == 0 {
		cfg.Engine.MaxLevel = DefaultEngineMaxLevel
	}

	// ── Executor ──────────────────────────────────────────────────────────────
	if cfg.Executor.Mode == "" {
		cfg.Executor.Mode = DefaultExecutorMode
	}
	if cfg.Executor.Workers == 0 {
		cfg.Executor.Workers = DefaultExecutorWorkers
	}
	if cfg.Executor.JobTTL == 0 {
		cfg.Executor.JobTTL = DefaultJobTTL
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultMigrationPath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.JobsTopic == "" {
		cfg.Kafka.JobsTopic = DefaultKafkaJobsTopic
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = DefaultKafkaEventsTopic
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.DataBucket == "" {
		cfg.MinIO.DataBucket = DefaultMinIODataBucket
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

//Personal.AI order the ending
