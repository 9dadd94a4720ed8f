// Command worker consumes deferred statistics work items from Kafka and
// executes them against the local geometry engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/application/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/config"
	jobdomain "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/job"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/database/redis"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/messaging/kafka"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/cli"
	httpapi "github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http/handlers"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	ensureTopics := flag.Bool("ensure-topics", false, "create the pipeline topics before consuming")
	flag.Parse()

	if err := run(*configPath, *ensureTopics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(cli.ExitStatus(err))
	}
}

func run(configPath string, ensureTopics bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(log)
	log = log.Named("worker")

	if !cfg.Kafka.Enabled || !cfg.Redis.Enabled {
		return errors.Precondition("the worker requires kafka.enabled and redis.enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cli.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			log.Warn("close runtime", logging.Err(cerr))
		}
	}()

	exec, err := rt.Executor(cfg, log)
	if err != nil {
		return err
	}
	status := redis.NewJobStatusStore(rt.Redis, cfg.Executor.JobTTL, log)

	if ensureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.JobsTopic, cfg.Kafka.EventsTopic, 1))
		_ = tm.Close()
		if err != nil {
			return err
		}
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka), log)
	if err != nil {
		return err
	}
	consumer.Subscribe(cfg.Kafka.JobsTopic, workItemHandler(rt, exec, status, log))
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Close()

	ops := httpapi.NewServer(cfg.Metrics.Addr, httpapi.NewRouter(httpapi.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(cli.Version, rt.Health...),
		MetricsHandler: rt.MetricsHandler,
		Logger:         log,
	}), log)
	if err := ops.Start(); err != nil {
		return err
	}

	if err := config.Watch(configPath, func(next *config.Config) {
		if ls, ok := log.(logging.LevelSetter); ok {
			ls.SetLevel(next.Log.Level)
			log.Info("log level reloaded", logging.String("level", next.Log.Level))
		}
	}, func(err error) {
		log.Warn("config reload rejected", logging.Err(err))
	}); err != nil {
		log.Warn("config watch disabled", logging.Err(err))
	}

	log.Info("worker started",
		logging.String("topic", cfg.Kafka.JobsTopic),
		logging.String("group", cfg.Kafka.GroupID))
	<-ctx.Done()
	log.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ops.Stop(shutdownCtx); err != nil {
		log.Warn("stop ops server", logging.Err(err))
	}
	return nil
}

// workItemHandler executes one work item. Execution failures are recorded in
// the status store and the message is committed; only undecodable messages
// are returned as errors so the consumer dead-letters them.
func workItemHandler(rt *cli.Runtime, exec jobdomain.Executor, status jobdomain.StatusWriter, log logging.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		item, err := kafka.DecodeWorkItem(msg)
		if err != nil {
			return err
		}
		start := time.Now()
		state := string(jobdomain.JobCompleted)
		if err := job.Process(ctx, exec, status, item, log); err != nil {
			state = string(jobdomain.JobFailed)
		}
		if rt.Metrics != nil {
			rt.Metrics.RecordJob(string(item.Kind), state, time.Since(start))
		}
		return nil
	}
}

//Personal.AI order the ending
