package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/subscription-billing/internal/app/accrual"
	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting accrual worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := accrual.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize accrual worker", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("accrual worker stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("accrual worker stopped gracefully")
}
