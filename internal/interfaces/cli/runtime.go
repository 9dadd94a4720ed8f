package cli

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/export"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/geo"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/postgres/repositories"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/redis"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/geoengine"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/messaging/kafka"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/prometheus"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/storage/local"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/storage/minio"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http/handlers"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

// Runtime is the set of collaborators commands and the worker run against.
// Optional collaborators are nil when their backend is disabled.
type Runtime struct {
	Catalog dataset.Catalog
	Engine  geo.Engine
	Store   export.ObjectStore

	Locker         export.Locker
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler
	Runs           jobdomain.RunRepository
	Events         jobdomain.EventPublisher

	// Registry is built by BuildRegistry when nil.
	Registry jobdomain.Registry

	Redis    *redis.Client
	Producer *kafka.Producer
	Health   []handlers.HealthChecker

	closers []func() error
}

// RuntimeFactory builds a Runtime from configuration.
type RuntimeFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Runtime, error)

// OnClose registers fn to run on Close. Closers run in reverse order.
func (r *Runtime) OnClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close releases every backend.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return stderrors.Join(errs...)
}

// Sink creates an export sink over Store, guarded by Locker and observed by
// Metrics when those are available.
func (r *Runtime) Sink(logger logging.Logger) *export.Sink {
	var opts []export.SinkOption
	if r.Locker != nil {
		opts = append(opts, export.WithLocker(r.Locker))
	}
	if r.Metrics != nil {
		opts = append(opts, export.WithRecorder(r.Metrics))
	}
	return export.NewSink(r.Store, logger, opts...)
}

// Executor wires the statistics executor over the runtime's engine and sink.
func (r *Runtime) Executor(cfg *config.Config, logger logging.Logger) (*job.StatsExecutor, error) {
	return job.NewExecutorFromConfig(cfg, r.Engine, r.Sink(logger), logger)
}

// BuildRegistry sets Registry according to executor.mode unless one is
// already set.
func (r *Runtime) BuildRegistry(cfg *config.Config, logger logging.Logger) (jobdomain.Registry, error) {
	if r.Registry != nil {
		return r.Registry, nil
	}
	switch cfg.Executor.Mode {
	case "distributed":
		if r.Redis == nil || r.Producer == nil {
			return nil, errors.Precondition("distributed executor needs redis and kafka")
		}
		status := redis.NewJobStatusStore(r.Redis, cfg.Executor.JobTTL, logger)
		submitter := kafka.NewJobSubmitter(r.Producer, status, cfg.Kafka.JobsTopic, logger)
		r.Registry = job.NewDistributedRegistry(submitter, status)
	default:
		exec, err := r.Executor(cfg, logger)
		if err != nil {
			return nil, err
		}
		local := job.NewLocalRegistry(exec, cfg.Executor.Workers, logger)
		r.OnClose(func() error { local.Close(); return nil })
		r.Registry = local
	}
	return r.Registry, nil
}

// NewRuntime connects every enabled backend in cfg. On error the backends
// opened so far are closed.
func NewRuntime(ctx context.Context, cfg *config.Config, logger logging.Logger) (rt *Runtime, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rt = &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableGoMetrics:      true,
			EnableProcessMetrics: true,
		}, logger)
		if err != nil {
			return nil, err
		}
		rt.Metrics = prometheus.NewAppMetrics(collector)
		rt.MetricsHandler = collector.Handler()
	}

	var cache redis.Cache
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		rt.OnClose(client.Close)
		rt.Redis = client
		rt.Locker = redis.NewLockFactory(client, logger)
		rt.Health = append(rt.Health, handlers.CheckFunc{Component: "redis", Fn: client.Ping})
		cache = redis.NewRedisCache(client, logger, redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
	}

	if cfg.Database.Enabled {
		conn, err := postgres.NewConnection(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		rt.OnClose(conn.Close)
		rt.Health = append(rt.Health, handlers.CheckFunc{Component: "postgres", Fn: conn.HealthCheck})

		var catalog dataset.Catalog = repositories.NewPostgresCatalog(conn, logger)
		if cache != nil {
			catalog = redis.NewCachedCatalog(catalog, cache, cfg.Redis.DefaultTTL, logger)
		}
		rt.Catalog = catalog

		pool, err := postgres.NewConnectionPool(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		rt.OnClose(func() error { pool.Close(); return nil })
		rt.Runs = repositories.NewRunRepo(pool, logger)
	}

	var source geoengine.Source
	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(cfg.MinIO, logger)
		if err != nil {
			return nil, err
		}
		rt.OnClose(client.Close)
		if err := client.EnsureBuckets(ctx, cfg.Task.Bucket, cfg.MinIO.DataBucket); err != nil {
			return nil, err
		}
		rt.Store = minio.NewObjectStore(client)
		rt.Health = append(rt.Health, handlers.CheckFunc{Component: "minio", Fn: func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx, cfg.Task.Bucket)
			return err
		}})
		if cfg.Engine.Source == "minio" {
			source = minio.NewDatasetSource(client)
		}
	} else {
		rt.Store = local.NewStore(cfg.Engine.DataDir)
	}
	if source == nil {
		source = geoengine.NewDirSource(cfg.Engine.DataDir)
	}
	engine, err := geoengine.New(source, geoengine.Options{MaxCells: cfg.Engine.MaxCells, MaxLevel: cfg.Engine.MaxLevel}, logger)
	if err != nil {
		return nil, err
	}
	rt.Engine = engine

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger)
		if err != nil {
			return nil, err
		}
		rt.OnClose(producer.Close)
		rt.Producer = producer
		rt.Events = kafka.NewRunEventPublisher(producer, cfg.Kafka.EventsTopic)
	}

	logger.Debug("runtime ready",
		logging.Bool("database", cfg.Database.Enabled),
		logging.Bool("redis", cfg.Redis.Enabled),
		logging.Bool("kafka", cfg.Kafka.Enabled),
		logging.Bool("minio", cfg.MinIO.Enabled),
		logging.String("engine_source", cfg.Engine.Source))
	return rt, nil
}

//Personal.AI order the ending
