package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"oshikatsu/internal/amqp"
	"oshikatsu/internal/cli"
	"oshikatsu/internal/config"
	"oshikatsu/internal/log"
	"oshikatsu/internal/services"
	"oshikatsu/internal/sheets"
	gsheet "oshikatsu/internal/sheets/google"
	"oshikatsu/internal/storage"
)

const usage = `usage: oshikatsu <command> [flags]

commands:
  user-add    create a user with default rates
  buy         record a purchase and refresh its summaries
  recompute   recompute one bucket or all three for a date
  rebuild     recompute every bucket touching a date range
  daily       show a stored daily summary
  weekly      show a stored weekly summary
  monthly     show a stored monthly summary
  breakdown   spend per time of day over a date range
  settings    show conversion rates
  set-rates   change conversion rates
  export      write monthly summaries to Google Sheets
`

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher services.RecomputePublisher
	if cfg.RecomputeMode == string(services.RecomputeQueue) {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, purchases will recompute inline", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	a := newApp(cfg, repo, publisher, os.Stdout)
	if err := a.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logger.Error("Command failed", log.FieldOperation, os.Args[1], log.FieldError, err)
		return 1
	}
	return 0
}

// app wires the services one CLI invocation needs.
type app struct {
	cfg        *config.Config
	repo       *storage.SQLiteRepository
	aggregator *services.Aggregator
	purchases  *services.PurchaseService
	settings   *services.SettingsService
	out        io.Writer

	// exporter is created lazily so commands other than export never
	// need Google credentials.
	exporter func(ctx context.Context) (sheets.SummaryExporter, error)
}

func newApp(cfg *config.Config, repo *storage.SQLiteRepository, publisher services.RecomputePublisher, out io.Writer) *app {
	aggregator := services.NewAggregator(repo, repo, repo)
	aggregator.SetConcurrency(cfg.WorkerConcurrency)

	mode, err := services.ParseRecomputeMode(cfg.RecomputeMode)
	if err != nil {
		mode = services.RecomputeSync
	}

	return &app{
		cfg:        cfg,
		repo:       repo,
		aggregator: aggregator,
		purchases:  services.NewPurchaseService(repo, aggregator, publisher, mode),
		settings:   services.NewSettingsService(repo, aggregator),
		out:        out,
		exporter: func(ctx context.Context) (sheets.SummaryExporter, error) {
			if !cfg.SheetsEnabled() {
				return nil, errors.New("GOOGLE_SPREADSHEET_ID is not set")
			}
			return gsheet.New(ctx, gsheet.Config{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				SheetName:       cfg.GoogleSheetName,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				CredentialsFile: cfg.GoogleServiceAccountFile,
			})
		},
	}
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	handlers := map[string]func(context.Context, []string) error{
		"user-add":  a.userAdd,
		"buy":       a.buy,
		"recompute": a.recompute,
		"rebuild":   a.rebuild,
		"daily":     a.daily,
		"weekly":    a.weekly,
		"monthly":   a.monthly,
		"breakdown": a.breakdown,
		"settings":  a.showSettings,
		"set-rates": a.setRates,
		"export":    a.export,
	}
	h, ok := handlers[command]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return h(ctx, args)
}
