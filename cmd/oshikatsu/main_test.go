package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"oshikatsu/internal/config"
	"oshikatsu/internal/core"
	"oshikatsu/internal/sheets"
	"oshikatsu/internal/sheets/memory"
	"oshikatsu/internal/storage"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		SQLiteDBPath:      filepath.Join(t.TempDir(), "data", "cli.db"),
		UpsertMaxAttempts: 3,
		RecomputeMode:     "sync",
		WorkerConcurrency: 2,
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	var out bytes.Buffer
	return newApp(cfg, repo, nil, &out), &out
}

func mustRun(t *testing.T, a *app, args ...string) {
	t.Helper()
	if err := a.dispatch(context.Background(), args[0], args[1:]); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func TestBuyThenShowSummaries(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	mustRun(t, a, "user-add", "-name", "otaku")
	mustRun(t, a, "buy", "-user", "otaku", "-date", "2025-12-28", "-period", "morning", "-drink", "150", "-main", "500")
	mustRun(t, a, "buy", "-user", "otaku", "-date", "2025-12-28", "-period", "night", "-snack", "200")

	user, err := a.repo.GetUserByUsername(ctx, "otaku")
	if err != nil {
		t.Fatal(err)
	}
	daily, found, err := a.repo.GetDaily(ctx, user.ID, core.NewDate(2025, 12, 28))
	if err != nil || !found {
		t.Fatalf("GetDaily() found=%v err=%v", found, err)
	}
	if daily.GrandTotal != 850 {
		t.Fatalf("daily total = %d, want 850", daily.GrandTotal)
	}

	out.Reset()
	mustRun(t, a, "weekly", "-user", "otaku", "-date", "2026-01-01")
	if !strings.Contains(out.String(), "2025-12-28..2026-01-03") || !strings.Contains(out.String(), "850") {
		t.Fatalf("unexpected weekly output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, a, "breakdown", "-user", "otaku", "-from", "2025-12-01", "-to", "2025-12-31")
	if !strings.Contains(out.String(), "morning") || !strings.Contains(out.String(), "650") {
		t.Fatalf("unexpected breakdown output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, a, "monthly", "-user", "otaku", "-date", "2026-01-15")
	if !strings.Contains(out.String(), "no monthly summary for 2026-01") {
		t.Fatalf("expected absent January summary, got:\n%s", out.String())
	}
}

func TestRebuildAndRates(t *testing.T) {
	a, out := newTestApp(t)

	mustRun(t, a, "user-add", "-name", "oshi")
	mustRun(t, a, "set-rates", "-user", "oshi", "-badge", "800", "-count", "25")
	if !strings.Contains(out.String(), "itabag 25 badges (20000 yen)") {
		t.Fatalf("unexpected set-rates output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, a, "rebuild", "-user", "oshi", "-from", "2026-01-01", "-to", "2026-01-03")
	if !strings.Contains(out.String(), "rebuilt 3 days, 1 weeks, 1 months") {
		t.Fatalf("unexpected rebuild output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, a, "daily", "-user", "oshi", "-list")
	if got := strings.Count(out.String(), "2026-01-0"); got != 3 {
		t.Fatalf("expected 3 listed days, got %d:\n%s", got, out.String())
	}
}

func TestExportUsesConfiguredExporter(t *testing.T) {
	a, out := newTestApp(t)
	store := memory.New()
	a.exporter = func(context.Context) (sheets.SummaryExporter, error) { return store, nil }

	mustRun(t, a, "user-add", "-name", "otaku")
	mustRun(t, a, "buy", "-user", "otaku", "-date", "2026-02-10", "-period", "noon", "-main", "900")

	out.Reset()
	mustRun(t, a, "export")
	if !strings.Contains(out.String(), "exported 1 monthly rows") {
		t.Fatalf("unexpected export output:\n%s", out.String())
	}
	if table := store.Table("otaku"); len(table) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(table))
	}
}

func TestDispatchErrors(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"unknown command", []string{"dance"}, nil},
		{"missing user flag", []string{"settings"}, nil},
		{"unknown user", []string{"settings", "-user", "ghost"}, core.ErrUserNotFound},
		{"bad period", []string{"buy", "-user", "ghost", "-period", "dusk"}, core.ErrUserNotFound},
		{"export without sheets", []string{"export"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.dispatch(ctx, tt.args[0], tt.args[1:])
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("error = %v, want %v", err, tt.is)
			}
		})
	}
}
