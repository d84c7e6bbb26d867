package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bawabamail/config"
	"bawabamail/internal/app"
	"bawabamail/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, worker only dispatches campaigns found by the sweeper")
	}
	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := app.NewServices(cfg, infra, logger)
	if err != nil {
		return err
	}

	sweeper, err := worker.NewSweeper(svc.CampaignRepo, infra.Queue, cfg.SweepCron, cfg.SweepStaleAfter, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sweeper.Stop(stopCtx)
	}()

	logger.Info("worker started", "queue", cfg.DispatchQueue)
	return worker.NewConsumer(infra.Queue, svc.Dispatcher, logger).Run(ctx)
}
