package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hoard/internal/api"
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

	cfg, err := config.LoadAPIFromEnv()
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

	server := api.New(cfg, logger, store, eco, deals)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("hoard api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
