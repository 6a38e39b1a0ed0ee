package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"hoard/internal/config"
	"hoard/internal/db"
	"hoard/internal/ledger"
	"hoard/internal/market"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
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

	walker := market.NewWalker(store, market.Config{
		MinInterval:  cfg.Market.MinInterval,
		MaxInterval:  cfg.Market.MaxInterval,
		MaxChange:    cfg.Market.MaxChange,
		InitialPrice: cfg.Market.InitialPrice,
	}, logger)

	if strings.EqualFold(strings.TrimSpace(os.Getenv("HOARD_WORKER_RUN_ONCE")), "true") {
		if err := walker.StepOnce(ctx); err != nil {
			logger.Error("step failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	if err := walker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("walker failed", "err", err)
		os.Exit(1)
	}
}
