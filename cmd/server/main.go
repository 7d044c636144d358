package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"welfare/internal/platform/config"
	"welfare/internal/platform/httpserver"
	"welfare/internal/platform/kafka"
	"welfare/internal/platform/logger"
	"welfare/internal/platform/metrics"
	platformmongo "welfare/internal/platform/mongo"
	"welfare/internal/platform/outbox"
	"welfare/internal/platform/postgres"
	platformredis "welfare/internal/platform/redis"
	"welfare/internal/survey/events"
	surveymetrics "welfare/internal/survey/metrics"
	"welfare/internal/survey/service"
	"welfare/internal/survey/store/cache"
	"welfare/internal/survey/store/memory"
	surveymongo "welfare/internal/survey/store/mongo"
	surveypg "welfare/internal/survey/store/postgres"
)

// main wires configuration, storage and the background workers. The survey
// service has no public API here; the process runs the response expiry
// sweeper, the outbox relay and the ops HTTP surface.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("welfare server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("welfare server stopped")
}

// infra holds the connections opened for this process and their health checks.
type infra struct {
	db       *sql.DB
	mongo    *platformmongo.Client
	redis    *platformredis.Client
	producer *kafka.Producer
	checks   map[string]httpserver.HealthCheck
}

func (i *infra) close(ctx context.Context) {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.mongo != nil {
		_ = i.mongo.Close(ctx)
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func connect(ctx context.Context, cfg config.Config) (*infra, error) {
	in := &infra{checks: map[string]httpserver.HealthCheck{}}

	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return in, err
		}
		in.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return in, err
		}
		in.checks["postgres"] = func(ctx context.Context) error { return postgres.Health(ctx, db) }
	}

	if cfg.Survey.Store == config.StoreMongo {
		client, err := platformmongo.New(ctx, cfg.Mongo)
		if err != nil {
			return in, err
		}
		in.mongo = client
		in.checks["mongo"] = client.Health
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return in, err
	}
	if redisClient != nil {
		in.redis = redisClient
		in.checks["redis"] = redisClient.Health
	}

	if in.db != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return in, err
		}
		in.producer = producer
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
			return in, err
		}
		in.checks["kafka"] = producer.Health
	}
	return in, nil
}

func buildStore(ctx context.Context, cfg config.Config, in *infra, log *slog.Logger) (service.Store, error) {
	var store service.Store
	switch cfg.Survey.Store {
	case config.StorePostgres:
		store = surveypg.New(in.db)
	case config.StoreMongo:
		mongoStore := surveymongo.New(in.mongo.Database())
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		store = mongoStore
	default:
		store = memory.New()
	}
	if in.redis != nil {
		store = cache.New(store, in.redis.Client, cfg.Redis.CacheTTL, cache.WithLogger(log))
	}
	return store, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg)
	defer in.close(context.Background())
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg, in, log)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(surveymetrics.New()),
		service.WithMaxSaveRetries(cfg.Survey.MaxSaveRetries),
	}
	var outboxStore *outbox.PostgresStore
	if in.db != nil {
		outboxStore = outbox.NewPostgresStore(in.db)
		opts = append(opts, service.WithEventSink(events.NewOutboxSink(outboxStore)))
		if cfg.Survey.Store == config.StorePostgres {
			opts = append(opts, service.WithTxRunner(postgres.NewTxRunner(in.db)))
		}
	} else {
		log.Warn("no database configured, survey events are discarded")
	}
	svc, err := service.New(store, opts...)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server.Addr, httpserver.NewOpsRouter(log, metrics.New(), in.checks))
	sweeper := service.NewSweeper(svc, cfg.Survey.ResponseTTL, cfg.Survey.SweepInterval, log)

	log.Info("starting welfare server",
		"addr", cfg.Server.Addr,
		"survey_store", cfg.Survey.Store,
		"cache", in.redis != nil,
		"relay", in.producer != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	if in.producer != nil {
		relay := outbox.NewRelay(outboxStore, in.producer,
			outbox.WithLogger(log),
			outbox.WithMetrics(outbox.NewMetrics()),
			outbox.WithInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
		)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	return g.Wait()
}
