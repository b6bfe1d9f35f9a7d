package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lmsledger/backend/docs"
	"github.com/lmsledger/backend/internal/audit"
	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/database"
	"github.com/lmsledger/backend/internal/events"
	mW "github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/ratelimit"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/lmsledger/backend/internal/router"
	"github.com/lmsledger/backend/internal/services"
	"go.uber.org/zap"
)

// @title LMS Reward Ledger API
// @version 1.0
// @description Student reward wallets, withdrawal approvals and grading rewards
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.JWT.SecretKey == "" {
		logger.Fatal("JWT_SECRET_KEY is required")
	}

	// Swagger docs
	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, closeStore, err := newStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer closeStore()

	publisher, err := newPublisher(cfg.Events, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to initialize event publisher", zap.Error(err))
	}
	defer publisher.Close()

	policies, err := services.NewRewardPolicies(cfg.Rewards)
	if err != nil {
		logger.Fatal("invalid reward policy configuration", zap.Error(err))
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithAuditLogger(audit.NewLogger(logger)),
		services.WithPublisher(publisher),
	}
	if redisClient != nil && cfg.Ledger.WithdrawalRateLimit > 0 {
		opts = append(opts, services.WithLimiter(
			ratelimit.NewWithdrawalLimiter(redisClient, cfg.Ledger.WithdrawalRateLimit, cfg.Ledger.WithdrawalWindow),
		))
	}
	ledger := services.NewLedgerService(store, cfg.Ledger, policies, opts...)

	handler := router.New(router.Deps{
		Ledger:         ledger,
		Auth:           mW.NewAuthenticator(cfg.JWT.SecretKey, redisClient, logger.Named("auth")),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newStore(cfg config.StorageConfig, logger *zap.Logger) (repository.LedgerStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory ledger store; data is lost on restart", zap.Int64s("students", cfg.MemoryStudents))
		return repository.NewMemoryStore(cfg.MemoryStudents...), func() {}, nil
	case "postgres":
		db, err := database.InitDB(logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newPublisher(cfg config.EventsConfig, rdb *redis.Client, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Driver {
	case "none", "":
		return events.NopPublisher{}, nil
	case "redis":
		if rdb == nil {
			logger.Warn("redis unavailable, wallet events disabled")
			return events.NopPublisher{}, nil
		}
		return events.NewRedisPublisher(rdb, cfg.Channel, logger), nil
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
