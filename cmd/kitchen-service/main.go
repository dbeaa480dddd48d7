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

	"github.com/dmehra2102/burger-builder/internal/config"
	"github.com/dmehra2102/burger-builder/internal/kitchen/application"
	kitchenhttp "github.com/dmehra2102/burger-builder/internal/kitchen/infrastructure/http"
	kitchenkafka "github.com/dmehra2102/burger-builder/internal/kitchen/infrastructure/kafka"
	kitchenpg "github.com/dmehra2102/burger-builder/internal/kitchen/infrastructure/postgres"
	"github.com/dmehra2102/burger-builder/pkg/idempotency"
	"github.com/dmehra2102/burger-builder/pkg/logging"
	"github.com/dmehra2102/burger-builder/pkg/shutdown"
	"github.com/dmehra2102/burger-builder/pkg/tracing"
)

const serviceName = "kitchen-service"

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

	if cfg.Database.URL == "" {
		log.Error("database.url is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := kitchenpg.Migrate(ctx, pool); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.Idempotency.TTL)

	svc := application.NewService(log, kitchenpg.NewRepository(log, pool), nil)

	reader := kitchenkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID)
	consumer := kitchenkafka.NewConsumer(log, reader, svc, idem)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      kitchenhttp.NewHandler(log, svc).Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	shutdown.Server(ctx, log, srv, 10*time.Second)
	log.Info("kitchen-service shutdown complete")
}
