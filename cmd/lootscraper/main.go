// Package main is the LootScraper entry point.
// Without flags it runs the scraping loop, the feeds and the Telegram bot;
// with --cleanup it runs the maintenance tools once and exits.
// SIGINT/SIGTERM shut everything down gracefully.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"freeloot.dev/lootscraper/internal/app"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/logging"
)

// How often critical records are flushed to the developer chat.
const criticalFlushEvery = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cleanupOnly := flag.Bool("cleanup", false, "run the cleanup tools once and exit")
	flag.Parse()

	cfg, err := config.Load(config.DataDir())
	if err != nil {
		logging.Setup("", "info")
		log.WithError(err).Error("Could not load configuration")
		return 1
	}

	logFile := ""
	if cfg.Common.LogFile != "" {
		logFile = cfg.DataPath(cfg.Common.LogFile)
	}
	closer := logging.Setup(logFile, cfg.Common.LogLevel)
	defer closer.Close()

	hook := logging.NewTelegramHook(criticalFlushEvery)
	log.AddHook(hook)
	defer hook.Close()

	log.WithField("data_dir", cfg.DataDir).Info("=== LootScraper starting ===")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, hook)
	if err != nil {
		logging.Critical().WithError(err).Error("Could not initialise the application")
		return 1
	}
	defer application.Close()

	if *cleanupOnly {
		report, err := application.Cleanup.Run(ctx)
		if err != nil {
			logging.Critical().WithError(err).Error("Cleanup failed")
			return 1
		}
		log.WithFields(log.Fields{
			"games_deleted":   report.GamesDeleted,
			"infos_deleted":   report.InfosDeleted,
			"infos_refreshed": report.InfosRefreshed,
			"offers_enriched": report.OffersEnriched,
			"orphaned":        len(report.Orphaned),
		}).Info("=== Cleanup finished ===")
		return 0
	}

	if err := application.Run(ctx); err != nil {
		logging.Critical().WithError(err).Error("Stopped on a fatal error")
		return 1
	}

	log.Info("=== LootScraper stopped ===")
	return 0
}
