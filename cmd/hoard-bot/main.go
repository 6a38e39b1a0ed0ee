package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hoard/internal/bot"
	"hoard/internal/config"
	"hoard/internal/db"
	"hoard/internal/economy"
	"hoard/internal/ledger"
	"hoard/internal/reward"
	"hoard/internal/transfer"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := ledger.New(pool, logger)
	if err := store.Migrate(ctx, cfg.Market.InitialPrice); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	eco := economy.New(store, reward.NewDefault(), logger)
	deals := transfer.NewCoordinator(store, transfer.Config{
		TTL:         cfg.ProposalTTL,
		MinBuyPrice: cfg.Market.MinBuyPrice,
	}, logger)

	go deals.RunSweeper(ctx, cfg.ProposalTTL)

	b, err := bot.New(cfg.Token, cfg.Prefix, store, eco, deals, logger)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot failed", "err", err)
		os.Exit(1)
	}
}
