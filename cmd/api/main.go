package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/asset-lending/internal/api"
	"github.com/example/asset-lending/internal/availability"
	"github.com/example/asset-lending/internal/command"
	"github.com/example/asset-lending/internal/config"
	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/example/asset-lending/internal/infrastructure/kafka"
	"github.com/example/asset-lending/internal/infrastructure/repository"
	"github.com/example/asset-lending/internal/infrastructure/store"
	"github.com/example/asset-lending/internal/logger"
	"github.com/example/asset-lending/internal/query"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLogger.Sync()
	apiLogger := appLogger.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher store.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		apiLogger.Info("publishing stock events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	var (
		eventStore   store.EventStoreInterface
		assets       stock.AssetRepository
		reservations reservation.Repository
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			apiLogger.Fatal("could not connect to database", zap.Error(err))
		}
		defer db.Close()
		apiLogger.Info("connected to PostgreSQL", zap.String("db_name", cfg.Postgres.DBName))

		repo := repository.NewPGRepository(db)
		eventStore = store.NewPostgresEventStore(db.DB, publisher)
		assets, reservations = repo, repo
	default:
		repo := repository.NewMemoryRepository()
		eventStore = store.NewEventStore(publisher)
		assets, reservations = repo, repo
		apiLogger.Warn("using in-memory storage, data is lost on exit")
	}

	stockSvc := stock.NewService(eventStore)
	engine := availability.NewEngine(availability.NewSource(assets, stockSvc, reservations), nil)

	handlers := api.NewHandlers(
		command.NewHandler(assets, reservations, stockSvc, engine),
		query.NewHandler(assets, reservations, stockSvc, engine),
		apiLogger,
	)

	server := &http.Server{
		Addr:              cfg.Server.HTTPPort,
		Handler:           api.NewRouter(handlers, apiLogger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errGrp, ctx := errgroup.WithContext(ctx)

	errGrp.Go(func() error {
		apiLogger.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	errGrp.Go(func() error {
		<-ctx.Done()
		apiLogger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server failed to shut down gracefully: %w", err)
		}
		return nil
	})

	if err := errGrp.Wait(); err != nil {
		apiLogger.Error("server stopped with error", zap.Error(err))
		return
	}
	apiLogger.Info("server stopped")
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := store.ConnectPostgres(ctx, cfg.DSN(), store.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	dbx := sqlx.NewDb(db, "postgres")
	if err := repository.Migrate(ctx, dbx); err != nil {
		db.Close()
		return nil, err
	}
	return dbx, nil
}
