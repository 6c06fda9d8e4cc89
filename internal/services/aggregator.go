package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"oshikatsu/internal/core"
	"oshikatsu/internal/log"
)

const defaultRebuildConcurrency = 4

// maxRebuildDays bounds a single Rebuild call to roughly ten years.
const maxRebuildDays = 3660

// Aggregator recomputes summaries from the ledger. It never runs on its
// own: every recompute is an explicit call.
type Aggregator struct {
	ledger      Ledger
	settings    SettingsProvider
	store       SummaryWriter
	logger      *log.Logger
	concurrency int
}

func NewAggregator(ledger Ledger, settings SettingsProvider, store SummaryWriter) *Aggregator {
	return &Aggregator{
		ledger:      ledger,
		settings:    settings,
		store:       store,
		logger:      log.ForComponent(log.ComponentAggregator),
		concurrency: defaultRebuildConcurrency,
	}
}

// SetConcurrency bounds how many buckets Rebuild recomputes at once.
func (a *Aggregator) SetConcurrency(n int) {
	if n > 0 {
		a.concurrency = n
	}
}

// bucketTotals is what one recompute derives before it is written.
type bucketTotals struct {
	start, end core.Date
	fields     core.SummaryFields
}

// compute validates the request and derives the bucket's fields from the
// ledger and the user's current settings.
func (a *Aggregator) compute(ctx context.Context, userID int64, date core.Date, g core.Granularity) (bucketTotals, error) {
	if err := core.ValidateBucketDate(date); err != nil {
		return bucketTotals{}, err
	}
	start, end, err := core.BucketRange(g, date)
	if err != nil {
		return bucketTotals{}, fmt.Errorf("%w: %v", core.ErrInvalidBucket, err)
	}

	ok, err := a.ledger.UserExists(ctx, userID)
	if err != nil {
		return bucketTotals{}, err
	}
	if !ok {
		return bucketTotals{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
	}

	records, err := a.ledger.PurchasesInRange(ctx, userID, start, end)
	if err != nil {
		return bucketTotals{}, fmt.Errorf("read ledger: %w", err)
	}
	var sum core.Amounts
	for _, r := range records {
		sum = sum.Add(r.Amounts)
	}

	eq, err := a.equivalence(ctx, userID, sum.Total())
	if err != nil {
		return bucketTotals{}, err
	}

	return bucketTotals{start: start, end: end, fields: core.NewSummaryFields(sum, eq)}, nil
}

// equivalence converts total at the user's current rates. Missing settings
// yield zero equivalences so the totals are still written.
func (a *Aggregator) equivalence(ctx context.Context, userID, total int64) (core.Equivalence, error) {
	s, err := a.settings.GetSettings(ctx, userID)
	if errors.Is(err, core.ErrMissingSettings) {
		a.logger.WarnContext(ctx, "Conversion settings missing, equivalences set to zero",
			log.FieldUserID, userID)
		return core.Equivalence{}, nil
	}
	if err != nil {
		return core.Equivalence{}, fmt.Errorf("read settings: %w", err)
	}
	return s.Convert(total), nil
}

func (a *Aggregator) logRecomputed(ctx context.Context, userID int64, g core.Granularity, bucket string, f core.SummaryFields) {
	a.logger.WithFields(log.NewFields().
		WithOperation(log.OpRecompute).
		WithBucket(userID, string(g), bucket).
		WithTotals(f.GrandTotal, f.BadgeEquivalent, f.ItabagEquivalent),
	).InfoContext(ctx, "Summary recomputed")
}

// RecomputeDaily rebuilds the summary for date from that day's purchases.
func (a *Aggregator) RecomputeDaily(ctx context.Context, userID int64, date core.Date) (core.DailySummary, error) {
	t, err := a.compute(ctx, userID, date, core.Daily)
	if err != nil {
		return core.DailySummary{}, err
	}
	s, err := a.store.UpsertDaily(ctx, core.DailySummary{UserID: userID, Date: t.start, SummaryFields: t.fields})
	if err != nil {
		return core.DailySummary{}, err
	}
	a.logRecomputed(ctx, userID, core.Daily, s.Date.String(), s.SummaryFields)
	return s, nil
}

// RecomputeWeekly rebuilds the Sunday..Saturday week containing date.
func (a *Aggregator) RecomputeWeekly(ctx context.Context, userID int64, date core.Date) (core.WeeklySummary, error) {
	t, err := a.compute(ctx, userID, date, core.Weekly)
	if err != nil {
		return core.WeeklySummary{}, err
	}
	s, err := a.store.UpsertWeekly(ctx, core.WeeklySummary{
		UserID: userID, StartDate: t.start, EndDate: t.end, SummaryFields: t.fields,
	})
	if err != nil {
		return core.WeeklySummary{}, err
	}
	a.logRecomputed(ctx, userID, core.Weekly, s.StartDate.String(), s.SummaryFields)
	return s, nil
}

// RecomputeMonthly rebuilds the calendar month containing date.
func (a *Aggregator) RecomputeMonthly(ctx context.Context, userID int64, date core.Date) (core.MonthlySummary, error) {
	t, err := a.compute(ctx, userID, date, core.Monthly)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	key := core.MonthKeyOf(t.start)
	s, err := a.store.UpsertMonthly(ctx, core.MonthlySummary{
		UserID: userID, Year: key.Year, Month: key.Month, SummaryFields: t.fields,
	})
	if err != nil {
		return core.MonthlySummary{}, err
	}
	a.logRecomputed(ctx, userID, core.Monthly, s.Key().String(), s.SummaryFields)
	return s, nil
}

// Recompute dispatches to the recompute strategy registered for g.
func (a *Aggregator) Recompute(ctx context.Context, userID int64, date core.Date, g core.Granularity) (RecomputeResult, error) {
	strategy, err := GetRecomputeStrategy(g)
	if err != nil {
		return RecomputeResult{}, err
	}
	return strategy.Recompute(ctx, a, userID, date)
}

// RecomputeAll recomputes the day, week and month containing date. Each
// granularity is attempted even if another fails; successful writes stay.
func (a *Aggregator) RecomputeAll(ctx context.Context, userID int64, date core.Date) ([]RecomputeResult, error) {
	return a.RecomputeGranularities(ctx, userID, date, core.Granularities)
}

// RecomputeGranularities is RecomputeAll restricted to the given levels.
func (a *Aggregator) RecomputeGranularities(ctx context.Context, userID int64, date core.Date, gs []core.Granularity) ([]RecomputeResult, error) {
	if err := core.ValidateBucketDate(date); err != nil {
		return nil, err
	}
	var (
		results []RecomputeResult
		errs    []error
	)
	for _, g := range gs {
		r, err := a.Recompute(ctx, userID, date, g)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g, err))
			continue
		}
		results = append(results, r)
	}
	return results, errors.Join(errs...)
}

// fixedSettings answers every lookup with one earlier read.
type fixedSettings struct {
	settings core.ConversionSettings
	err      error
}

func (f fixedSettings) GetSettings(context.Context, int64) (core.ConversionSettings, error) {
	return f.settings, f.err
}

// RebuildStats counts the buckets written by Rebuild.
type RebuildStats struct {
	Days   int
	Weeks  int
	Months int
}

// Rebuild recomputes every day, week and month touching from..to. Buckets
// are recomputed concurrently, each in its own transaction.
func (a *Aggregator) Rebuild(ctx context.Context, userID int64, from, to core.Date) (RebuildStats, error) {
	if err := core.ValidateBucketDate(from); err != nil {
		return RebuildStats{}, err
	}
	if err := core.ValidateBucketDate(to); err != nil {
		return RebuildStats{}, err
	}
	if to.Before(from.Time) {
		return RebuildStats{}, fmt.Errorf("%w: %s is after %s", core.ErrInvalidBucket, from, to)
	}
	if days := int(to.Sub(from.Time).Hours()/24) + 1; days > maxRebuildDays {
		return RebuildStats{}, fmt.Errorf("%w: range of %d days exceeds %d", core.ErrInvalidBucket, days, maxRebuildDays)
	}

	ok, err := a.ledger.UserExists(ctx, userID)
	if err != nil {
		return RebuildStats{}, err
	}
	if !ok {
		return RebuildStats{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
	}

	var (
		days   []core.Date
		weeks  []core.Date
		months []core.Date
		seenW  = map[string]bool{}
		seenM  = map[core.MonthKey]bool{}
	)
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		days = append(days, d)
		if w := core.WeekKey(d).Start; !seenW[w.String()] {
			seenW[w.String()] = true
			weeks = append(weeks, w)
		}
		if m := core.MonthKeyOf(d); !seenM[m] {
			seenM[m] = true
			first, _ := m.Range()
			months = append(months, first)
		}
	}

	// Every bucket of one rebuild converts at the rates read here.
	rates, err := a.settings.GetSettings(ctx, userID)
	if err != nil && !errors.Is(err, core.ErrMissingSettings) {
		return RebuildStats{}, fmt.Errorf("read settings: %w", err)
	}
	snapshot := *a
	snapshot.settings = fixedSettings{settings: rates, err: err}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	schedule := func(gran core.Granularity, dates []core.Date) {
		for _, d := range dates {
			g.Go(func() error {
				_, err := snapshot.Recompute(gctx, userID, d, gran)
				return err
			})
		}
	}
	schedule(core.Daily, days)
	schedule(core.Weekly, weeks)
	schedule(core.Monthly, months)

	stats := RebuildStats{Days: len(days), Weeks: len(weeks), Months: len(months)}
	if err := g.Wait(); err != nil {
		return RebuildStats{}, fmt.Errorf("rebuild %s..%s: %w", from, to, err)
	}

	a.logger.InfoContext(ctx, "Summaries rebuilt",
		log.FieldUserID, userID,
		"from", from.String(),
		"to", to.String(),
		"days", stats.Days,
		"weeks", stats.Weeks,
		"months", stats.Months)
	return stats, nil
}

// PeriodBreakdown returns grand totals per time period over start..end.
// It reads the ledger directly and writes nothing.
func (a *Aggregator) PeriodBreakdown(ctx context.Context, userID int64, start, end core.Date) (core.PeriodBreakdown, error) {
	if err := core.ValidateBucketDate(start); err != nil {
		return core.PeriodBreakdown{}, err
	}
	if err := core.ValidateBucketDate(end); err != nil {
		return core.PeriodBreakdown{}, err
	}
	if end.Before(start.Time) {
		return core.PeriodBreakdown{}, fmt.Errorf("%w: %s is after %s", core.ErrInvalidBucket, start, end)
	}

	ok, err := a.ledger.UserExists(ctx, userID)
	if err != nil {
		return core.PeriodBreakdown{}, err
	}
	if !ok {
		return core.PeriodBreakdown{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
	}

	byPeriod, err := a.ledger.TimePeriodSubtotals(ctx, userID, start, end)
	if err != nil {
		return core.PeriodBreakdown{}, fmt.Errorf("read ledger: %w", err)
	}
	b := core.NewPeriodBreakdown(byPeriod)

	a.logger.DebugContext(ctx, "Period breakdown computed",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpBreakdown,
		"start", start.String(),
		"end", end.String(),
		log.FieldGrandTotal, b.Total)
	return b, nil
}
