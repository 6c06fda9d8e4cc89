package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"oshikatsu/internal/core"
	ports "oshikatsu/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Oshikatsu"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base tab name; each user gets "<base> <username>".
	sheetBase string
}

// Ensure interface conformance
var _ ports.SummaryExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME and the
// service account variables.
func ConfigFromEnv() Config {
	return Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := cfg.SheetName
	if base == "" {
		base = defaultSheetName
	}
	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet_base", base)

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base}, nil
}

func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, ConfigFromEnv())
}

// credentials prefers inline JSON, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	file := cfg.CredentialsFile
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// ExportMonthly rewrites the user's tab with a header row and one row per
// monthly summary, creating the tab on first use.
func (c *Client) ExportMonthly(ctx context.Context, username string, rows []core.MonthlySummary) (int, error) {
	title := tabTitle(c.sheetBase, username)
	if err := c.ensureTab(ctx, title); err != nil {
		return 0, err
	}

	rng := quoteTab(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", title, err)
	}

	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", &gsheet.ValueRange{
		Values: monthlyValues(rows),
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", title, err)
	}

	slog.InfoContext(ctx, "Monthly summaries exported to Google Sheets",
		"username", username,
		"sheet", title,
		"rows", len(rows),
		"updated_cells", resp.UpdatedCells)
	return len(rows), nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "sheet", title)
	return nil
}

// monthlyValues builds the table written by ExportMonthly.
func monthlyValues(rows []core.MonthlySummary) [][]interface{} {
	return ports.MonthlyTable(rows)
}

// tabTitle returns "<base> <username>", trimmed of characters Sheets
// rejects in tab names.
func tabTitle(base, username string) string {
	title := strings.TrimSpace(base + " " + strings.TrimSpace(username))
	title = strings.NewReplacer("[", "(", "]", ")", "*", "", "?", "", "/", "-", "\\", "-", ":", "-").Replace(title)
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}

// quoteTab wraps a tab name for A1 notation, doubling embedded quotes.
func quoteTab(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
