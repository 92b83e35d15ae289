package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/config"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/email"
	"github.com/dukerupert/giftlist/internal/logging"
	"github.com/dukerupert/giftlist/internal/purge"
	"github.com/dukerupert/giftlist/internal/server"
	"github.com/dukerupert/giftlist/internal/storage"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var deps server.Deps
	if cfg.StripeConfigured() {
		deps.Provider = billingstripe.NewClient(cfg.Stripe)
	} else {
		logger.Warn("stripe not configured", "manual_billing", cfg.ManualBilling)
	}
	if mailer := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL); mailer.Configured() {
		deps.Mailer = mailer
	}
	if bucket := storage.New(cfg.S3); bucket != nil {
		deps.Storage = bucket
	} else {
		logger.Warn("media storage not configured; purge skips storage cleanup")
	}

	srv := server.New(db, server.Config{
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		CronSecret:        cfg.CronSecret,
		TrialDays:         cfg.TrialDays,
		PaidAccessDays:    cfg.PaidAccessDays,
		ManualBilling:     cfg.ManualBilling,
		PurgeDefaultLimit: cfg.PurgeDefaultLimit,
		PurgeMaxLimit:     cfg.PurgeMaxLimit,
		OriginPatterns:    cfg.OriginPatterns,
	}, deps, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *purge.Scheduler
	if cfg.PurgeSchedule != "" {
		scheduler, err = purge.NewScheduler(srv.Purger(), cfg.PurgeSchedule, logger)
		if err != nil {
			logger.Error("invalid purge schedule", "error", err)
			os.Exit(1)
		}
		scheduler.Start(ctx)
	}

	// Rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("giftlist listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
