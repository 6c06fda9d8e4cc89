package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"oshikatsu/internal/amqp"
	"oshikatsu/internal/cli"
	"oshikatsu/internal/log"
	"oshikatsu/internal/services"
	gsheet "oshikatsu/internal/sheets/google"
	"oshikatsu/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting oshikatsu-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	aggregator := services.NewAggregator(repo, repo, repo)
	aggregator.SetConcurrency(cfg.WorkerConcurrency)
	recomputeWorker := worker.NewRecomputeWorker(aggregator)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()
	amqpClient.SetPrefetch(cfg.WorkerConcurrency)

	// Periodic Google Sheets export is optional.
	var processor *services.ExportProcessor
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exports := services.NewExportService(repo, repo, sheetsClient)
		processor = services.NewExportProcessor(exports, services.ExportProcessorConfig{
			Interval:   cfg.ExportInterval,
			RunOnStart: true,
		})
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Warn("Export processor did not stop cleanly", log.FieldError, err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRecompute(gctx, recomputeWorker.HandleRecomputeMessage)
	})
	if processor != nil {
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start export processor", log.FieldError, err)
			os.Exit(1)
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
