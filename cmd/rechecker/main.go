package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/config"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/infrastructure/kafka"
	"github.com/example/asset-lending/internal/infrastructure/repository"
	"github.com/example/asset-lending/internal/infrastructure/store"
	"github.com/example/asset-lending/internal/logger"
	"github.com/example/asset-lending/internal/recheck"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The rechecker reads the shared database, so it needs postgres storage and
// a Kafka topic to listen to.
func main() {
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.Storage != config.StoragePostgres || !cfg.Kafka.Enabled {
		log.Fatal("rechecker requires STORAGE=postgres and KAFKA_ENABLED=true")
	}

	appLogger, err := logger.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLogger.Sync()
	recheckLogger := appLogger.Named("rechecker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(ctx, cfg.Postgres.DSN(), store.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		recheckLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewPGRepository(sqlx.NewDb(db, "postgres"))
	// read only: nothing is appended, so no publisher
	stockSvc := stock.NewService(store.NewPostgresEventStore(db, nil))
	engine := availability.NewEngine(availability.NewSource(repo, stockSvc, repo), nil)
	watcher := recheck.NewWatcher(repo, engine, recheckLogger)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, recheckLogger.Named("consumer"))
	defer consumer.Close()

	recheckLogger.Info("listening for stock events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID))

	if err := consumer.Consume(ctx, watcher.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		recheckLogger.Error("consumer stopped", zap.Error(err))
		return
	}
	recheckLogger.Info("rechecker stopped")
}
