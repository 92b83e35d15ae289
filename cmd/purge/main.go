// Command purge runs a single purge pass and prints its report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dukerupert/giftlist/internal/config"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/logging"
	"github.com/dukerupert/giftlist/internal/purge"
	"github.com/dukerupert/giftlist/internal/storage"
	"github.com/dukerupert/giftlist/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list candidates without deleting anything")
	limit := flag.Int("limit", 0, "maximum lists to purge (0 uses the configured default)")
	flag.Parse()

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

	var st purge.Storage
	if bucket := storage.New(cfg.S3); bucket != nil {
		st = bucket
	}
	p := purge.New(store.NewPurgeStore(db, store.DefaultDeleteChunk), st, nil, cfg.PurgeDefaultLimit, cfg.PurgeMaxLimit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := p.Run(ctx, purge.Options{DryRun: *dryRun, Limit: *limit})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("write report", "error", err)
	}
	if runErr != nil {
		logger.Error("purge failed", "error", runErr)
		os.Exit(1)
	}
}
