package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmsledger/backend/internal/audit"
	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/database"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/lmsledger/backend/internal/services"
	"go.uber.org/zap"
)

var logger *zap.Logger

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	errAndDie(err)

	db, err := database.InitDB(logger)
	errAndDie(err)
	defer db.Close()

	store := repository.NewPostgresStore(db)
	policies, err := services.NewRewardPolicies(cfg.Rewards)
	errAndDie(err)
	ledger := services.NewLedgerService(store, cfg.Ledger, policies,
		services.WithLogger(logger),
		services.WithAuditLogger(audit.NewLogger(logger)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := commandLine{
		migrate: func(ctx context.Context, command string, args ...string) error {
			return database.Migrate(ctx, db.DB, command, args...)
		},
		ledger:  ledger,
		wallets: store,
		out:     os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal("ledgeradmin", zap.Error(err))
	}
}
