package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bawabamail/config"
	_ "bawabamail/docs"
	"bawabamail/internal/app"
	deliveryhttp "bawabamail/internal/delivery/http"
	"bawabamail/internal/delivery/http/controllers"
	"bawabamail/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// @title Bawaba Newsletter API
// @version 1.0
// @description Newsletter campaigns, subscriptions and dispatch for the Bawaba news site.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := app.NewServices(cfg, infra, logger)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := app.NewRateLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := deliveryhttp.NewRouter(deliveryhttp.RouterDeps{
		Logger:         logger,
		Verifier:       svc.Verifier,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Auth:           controllers.NewAuthController(logger, svc.Auth),
		Campaigns:      controllers.NewCampaignController(logger, svc.Campaigns),
		Subscribers:    controllers.NewSubscriberController(logger, svc.Subscribers),
		Newsletter:     controllers.NewNewsletterController(logger, svc.Subscribers),
		Health:         controllers.NewHealthController(logger, infra.DB),
	})

	// Without a broker the API consumes its own jobs and runs the sweeper.
	var wg sync.WaitGroup
	if infra.Embedded() {
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

		consumer := worker.NewConsumer(infra.Queue, svc.Dispatcher, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("embedded consumer stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	wg.Wait()
	return nil
}
