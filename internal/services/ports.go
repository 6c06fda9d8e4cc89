package services

import (
	"context"

	"oshikatsu/internal/core"
)

// Ports the aggregation services depend on. storage.SQLiteRepository
// satisfies all of them; tests use in-memory fakes.
type (
	// Ledger is the read side of the purchase ledger.
	Ledger interface {
		UserExists(ctx context.Context, userID int64) (bool, error)
		PurchasesInRange(ctx context.Context, userID int64, start, end core.Date) ([]core.PurchaseRecord, error)
		TimePeriodSubtotals(ctx context.Context, userID int64, start, end core.Date) (map[core.TimePeriod]core.Amounts, error)
	}

	// LedgerWriter appends new purchases.
	LedgerWriter interface {
		AppendPurchase(ctx context.Context, p core.PurchaseRecord) (int64, error)
	}

	SettingsProvider interface {
		GetSettings(ctx context.Context, userID int64) (core.ConversionSettings, error)
	}

	SettingsStore interface {
		SettingsProvider
		UpdateSettings(ctx context.Context, userID, badgePrice, itabagCount int64) (core.ConversionSettings, error)
	}

	// SummaryWriter persists one bucket per call.
	SummaryWriter interface {
		UpsertDaily(ctx context.Context, s core.DailySummary) (core.DailySummary, error)
		UpsertWeekly(ctx context.Context, s core.WeeklySummary) (core.WeeklySummary, error)
		UpsertMonthly(ctx context.Context, s core.MonthlySummary) (core.MonthlySummary, error)
	}

	// SummaryReader returns stored summaries; found is false for buckets
	// that were never computed.
	SummaryReader interface {
		GetDaily(ctx context.Context, userID int64, date core.Date) (core.DailySummary, bool, error)
		GetWeekly(ctx context.Context, userID int64, start core.Date) (core.WeeklySummary, bool, error)
		GetMonthly(ctx context.Context, userID int64, key core.MonthKey) (core.MonthlySummary, bool, error)
		ListDaily(ctx context.Context, userID int64) ([]core.DailySummary, error)
		ListWeekly(ctx context.Context, userID int64) ([]core.WeeklySummary, error)
		ListMonthly(ctx context.Context, userID int64) ([]core.MonthlySummary, error)
	}

	// UserDirectory looks up and enumerates users.
	UserDirectory interface {
		GetUser(ctx context.Context, id int64) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	// RecomputePublisher hands recompute requests to a background worker.
	RecomputePublisher interface {
		PublishRecompute(ctx context.Context, userID int64, date core.Date, granularities []core.Granularity) error
	}
)
