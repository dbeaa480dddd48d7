package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	builderhttp "github.com/dmehra2102/burger-builder/internal/builder/infrastructure/http"
	builderkafka "github.com/dmehra2102/burger-builder/internal/builder/infrastructure/kafka"
	"github.com/dmehra2102/burger-builder/internal/builder/infrastructure/memory"
	builderpg "github.com/dmehra2102/burger-builder/internal/builder/infrastructure/postgres"
	builderredis "github.com/dmehra2102/burger-builder/internal/builder/infrastructure/redis"
	"github.com/dmehra2102/burger-builder/internal/config"
	"github.com/dmehra2102/burger-builder/pkg/idempotency"
	"github.com/dmehra2102/burger-builder/pkg/logging"
	"github.com/dmehra2102/burger-builder/pkg/outbox"
	"github.com/dmehra2102/burger-builder/pkg/shutdown"
	"github.com/dmehra2102/burger-builder/pkg/tracing"
)

const serviceName = "builder-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(serviceName, cfg.Log.Level)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, tracing.Config{
		Enabled:       cfg.Telemetry.Enabled,
		Endpoint:      cfg.Telemetry.Endpoint,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		Insecure:      cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var opts []application.Option

	// Sessions
	var sessions application.SessionStore
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		sessions = builderredis.NewSessionStore(log, rdb, cfg.Session.TTL)
		opts = append(opts, application.WithConfirmationGuard(idempotency.NewStore(rdb, cfg.Idempotency.TTL)))
	default:
		mem := memory.NewSessionStore(cfg.Session.TTL)
		guard := memory.NewConfirmationGuard(cfg.Idempotency.TTL)
		go sweep(ctx, log, mem, guard, cfg.Session.SweepInterval)
		sessions = mem
		opts = append(opts, application.WithConfirmationGuard(guard))
	}

	// Orders and outbox relay
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := builderpg.Migrate(ctx, pool); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}
		opts = append(opts, application.WithOrders(builderpg.NewRepository(log, pool)))

		writer := builderkafka.NewWriter(cfg.Kafka.Brokers)
		defer writer.Close()

		store := builderpg.NewOutboxStore(log, pool, cfg.Outbox.MaxRetries)
		dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OrdersTopic)
		relay := outbox.NewRelay(log, store, dispatch, serviceName+"-relay",
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithInterval(cfg.Outbox.Interval),
			outbox.WithLease(cfg.Outbox.Lease),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		log.Warn("database.url is empty, confirmations will not place orders")
	}

	svc := application.NewService(log, sessions, opts...)
	handler := builderhttp.NewHandler(log, svc, cfg.HTTP.AllowedOrigins)

	// No WriteTimeout: it would cut websocket streams, which set their own
	// write deadlines.
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout:       2 * cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	shutdown.Server(ctx, log, srv, 10*time.Second)
	log.Info("builder-service shutdown complete")
}

func sweep(ctx context.Context, log *slog.Logger, store *memory.SessionStore, guard *memory.ConfirmationGuard, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := store.Sweep(); n > 0 {
				log.Debug("expired sessions swept", "count", n)
			}
			guard.Sweep()
		}
	}
}
