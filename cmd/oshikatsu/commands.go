package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"oshikatsu/internal/core"
	"oshikatsu/internal/services"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// dateFlag parses an optional YYYY-MM-DD value, defaulting to today.
func dateFlag(value string) (core.Date, error) {
	if value == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(value)
}

func (a *app) lookupUser(ctx context.Context, username string) (core.User, error) {
	if strings.TrimSpace(username) == "" {
		return core.User{}, errors.New("-user is required")
	}
	return a.repo.GetUserByUsername(ctx, username)
}

func (a *app) userAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("user-add")
	name := fs.String("name", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.repo.CreateUser(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func (a *app) buy(ctx context.Context, args []string) error {
	fs := newFlagSet("buy")
	username := fs.String("user", "", "username")
	date := fs.String("date", "", "purchase date YYYY-MM-DD (default today)")
	period := fs.String("period", "", "time of day: morning, noon or night")
	drink := fs.Int64("drink", 0, "drink amount in yen")
	snack := fs.Int64("snack", 0, "snack amount in yen")
	mainMeal := fs.Int64("main", 0, "main meal amount in yen")
	irregular := fs.Int64("irregular", 0, "irregular amount in yen")
	memo := fs.String("memo", "", "optional memo")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	d, err := dateFlag(*date)
	if err != nil {
		return err
	}
	p, err := core.ParseTimePeriod(*period)
	if err != nil {
		return err
	}

	receipt, err := a.purchases.RecordPurchase(ctx, core.PurchaseRecord{
		UserID:     user.ID,
		Date:       d,
		TimePeriod: p,
		Amounts:    core.Amounts{Drink: *drink, Snack: *snack, Main: *mainMeal, Irregular: *irregular},
		Memo:       *memo,
	})
	if receipt.ID != 0 {
		fmt.Fprintf(a.out, "recorded purchase %d on %s\n", receipt.ID, d)
	}
	if err != nil {
		return err
	}
	if receipt.Queued {
		fmt.Fprintln(a.out, "summaries queued for recompute")
		return nil
	}
	return a.printResults(receipt.Results)
}

func (a *app) recompute(ctx context.Context, args []string) error {
	fs := newFlagSet("recompute")
	username := fs.String("user", "", "username")
	date := fs.String("date", "", "date inside the bucket (default today)")
	granularity := fs.String("granularity", "all", "daily, weekly, monthly or all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	d, err := dateFlag(*date)
	if err != nil {
		return err
	}

	gs := core.Granularities
	if *granularity != "all" {
		g, err := core.ParseGranularity(*granularity)
		if err != nil {
			return err
		}
		gs = []core.Granularity{g}
	}

	results, err := a.aggregator.RecomputeGranularities(ctx, user.ID, d, gs)
	if perr := a.printResults(results); perr != nil {
		return perr
	}
	return err
}

func (a *app) rebuild(ctx context.Context, args []string) error {
	fs := newFlagSet("rebuild")
	username := fs.String("user", "", "username")
	from := fs.String("from", "", "first date YYYY-MM-DD")
	to := fs.String("to", "", "last date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	start, err := core.ParseDate(*from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	end, err := dateFlag(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	stats, err := a.aggregator.Rebuild(ctx, user.ID, start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "rebuilt %d days, %d weeks, %d months\n", stats.Days, stats.Weeks, stats.Months)
	return nil
}

func (a *app) daily(ctx context.Context, args []string) error {
	fs := newFlagSet("daily")
	username := fs.String("user", "", "username")
	date := fs.String("date", "", "day YYYY-MM-DD (default today)")
	list := fs.Bool("list", false, "list every stored day")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	var rows []summaryRow
	if *list {
		all, err := a.repo.ListDaily(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, s := range all {
			rows = append(rows, summaryRow{s.Date.String(), s.SummaryFields})
		}
	} else {
		d, err := dateFlag(*date)
		if err != nil {
			return err
		}
		s, found, err := a.repo.GetDaily(ctx, user.ID, d)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(a.out, "no daily summary for %s\n", d)
			return nil
		}
		rows = append(rows, summaryRow{s.Date.String(), s.SummaryFields})
	}
	return a.printSummaries(rows)
}

func (a *app) weekly(ctx context.Context, args []string) error {
	fs := newFlagSet("weekly")
	username := fs.String("user", "", "username")
	date := fs.String("date", "", "any day in the week (default today)")
	list := fs.Bool("list", false, "list every stored week")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	var rows []summaryRow
	if *list {
		all, err := a.repo.ListWeekly(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, s := range all {
			rows = append(rows, summaryRow{weekLabel(s), s.SummaryFields})
		}
	} else {
		d, err := dateFlag(*date)
		if err != nil {
			return err
		}
		week := core.WeekKey(d)
		s, found, err := a.repo.GetWeekly(ctx, user.ID, week.Start)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(a.out, "no weekly summary for %s\n", week)
			return nil
		}
		rows = append(rows, summaryRow{weekLabel(s), s.SummaryFields})
	}
	return a.printSummaries(rows)
}

func weekLabel(s core.WeeklySummary) string {
	return s.StartDate.String() + ".." + s.EndDate.String()
}

func (a *app) monthly(ctx context.Context, args []string) error {
	fs := newFlagSet("monthly")
	username := fs.String("user", "", "username")
	date := fs.String("date", "", "any day in the month (default today)")
	list := fs.Bool("list", false, "list every stored month")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	var rows []summaryRow
	if *list {
		all, err := a.repo.ListMonthly(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, s := range all {
			rows = append(rows, summaryRow{s.Key().String(), s.SummaryFields})
		}
	} else {
		d, err := dateFlag(*date)
		if err != nil {
			return err
		}
		key := core.MonthKeyOf(d)
		s, found, err := a.repo.GetMonthly(ctx, user.ID, key)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(a.out, "no monthly summary for %s\n", key)
			return nil
		}
		rows = append(rows, summaryRow{s.Key().String(), s.SummaryFields})
	}
	return a.printSummaries(rows)
}

func (a *app) breakdown(ctx context.Context, args []string) error {
	fs := newFlagSet("breakdown")
	username := fs.String("user", "", "username")
	from := fs.String("from", "", "first date YYYY-MM-DD")
	to := fs.String("to", "", "last date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	start, err := core.ParseDate(*from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	end, err := dateFlag(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	b, err := a.aggregator.PeriodBreakdown(ctx, user.ID, start, end)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PERIOD\tYEN\t")
	for _, p := range core.TimePeriods {
		fmt.Fprintf(w, "%s\t%d\t\n", p, b.Get(p))
	}
	fmt.Fprintf(w, "total\t%d\t\n", b.Total)
	return w.Flush()
}

func (a *app) showSettings(ctx context.Context, args []string) error {
	fs := newFlagSet("settings")
	username := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	s, err := a.settings.GetRates(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "badge price %d yen, itabag %d badges (%d yen)\n",
		s.BadgePrice, s.ItabagCount, s.ItabagTotalPrice)
	return nil
}

func (a *app) setRates(ctx context.Context, args []string) error {
	fs := newFlagSet("set-rates")
	username := fs.String("user", "", "username")
	badge := fs.Int64("badge", core.DefaultBadgePrice, "price of one badge in yen")
	count := fs.Int64("count", core.DefaultItabagCount, "badges per itabag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	s, today, err := a.settings.UpdateRates(ctx, user.ID, *badge, *count)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "badge price %d yen, itabag %d badges (%d yen)\n",
		s.BadgePrice, s.ItabagCount, s.ItabagTotalPrice)
	return a.printSummaries([]summaryRow{{today.Date.String(), today.SummaryFields}})
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	username := fs.String("user", "", "username (default every user)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exporter, err := a.exporter(ctx)
	if err != nil {
		return err
	}
	svc := services.NewExportService(a.repo, a.repo, exporter)

	var rows int
	if *username == "" {
		rows, err = svc.ExportAll(ctx)
	} else {
		user, lerr := a.lookupUser(ctx, *username)
		if lerr != nil {
			return lerr
		}
		rows, err = svc.ExportMonthly(ctx, user.ID)
	}
	fmt.Fprintf(a.out, "exported %d monthly rows\n", rows)
	return err
}

type summaryRow struct {
	bucket string
	fields core.SummaryFields
}

func (a *app) printResults(results []services.RecomputeResult) error {
	rows := make([]summaryRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, summaryRow{string(r.Granularity) + " " + r.Bucket(), r.SummaryFields})
	}
	return a.printSummaries(rows)
}

func (a *app) printSummaries(rows []summaryRow) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKET\tDRINK\tSNACK\tMAIN\tIRREGULAR\tTOTAL\tBADGES\tITABAGS")
	for _, r := range rows {
		f := r.fields
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
			r.bucket, f.Amounts.Drink, f.Amounts.Snack, f.Amounts.Main, f.Amounts.Irregular,
			f.GrandTotal, f.BadgeEquivalent, f.ItabagEquivalent)
	}
	return w.Flush()
}
