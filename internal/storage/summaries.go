package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"oshikatsu/internal/core"
)

// Each summary shape has its own fixed statement. On conflict only the
// computed columns and updated_at are rewritten; identity columns are left alone.

const upsertDailySQL = `
	INSERT INTO daily_summaries
		(user_id, summary_date, drink_total, snack_total, main_dish_total, irregular_total,
		 daily_total, badge_equivalent, itabag_equivalent, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, summary_date) DO UPDATE SET
		drink_total = excluded.drink_total,
		snack_total = excluded.snack_total,
		main_dish_total = excluded.main_dish_total,
		irregular_total = excluded.irregular_total,
		daily_total = excluded.daily_total,
		badge_equivalent = excluded.badge_equivalent,
		itabag_equivalent = excluded.itabag_equivalent,
		updated_at = excluded.updated_at`

const upsertWeeklySQL = `
	INSERT INTO weekly_summaries
		(user_id, start_date, end_date, drink_total, snack_total, main_dish_total, irregular_total,
		 weekly_total, badge_equivalent, itabag_equivalent, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, start_date) DO UPDATE SET
		drink_total = excluded.drink_total,
		snack_total = excluded.snack_total,
		main_dish_total = excluded.main_dish_total,
		irregular_total = excluded.irregular_total,
		weekly_total = excluded.weekly_total,
		badge_equivalent = excluded.badge_equivalent,
		itabag_equivalent = excluded.itabag_equivalent,
		updated_at = excluded.updated_at`

const upsertMonthlySQL = `
	INSERT INTO monthly_summaries
		(user_id, year, month, drink_total, snack_total, main_dish_total, irregular_total,
		 monthly_total, badge_equivalent, itabag_equivalent, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, year, month) DO UPDATE SET
		drink_total = excluded.drink_total,
		snack_total = excluded.snack_total,
		main_dish_total = excluded.main_dish_total,
		irregular_total = excluded.irregular_total,
		monthly_total = excluded.monthly_total,
		badge_equivalent = excluded.badge_equivalent,
		itabag_equivalent = excluded.itabag_equivalent,
		updated_at = excluded.updated_at`

const (
	dailyColumns = `user_id, summary_date, drink_total, snack_total, main_dish_total, irregular_total,
		daily_total, badge_equivalent, itabag_equivalent, updated_at`
	weeklyColumns = `user_id, start_date, end_date, drink_total, snack_total, main_dish_total, irregular_total,
		weekly_total, badge_equivalent, itabag_equivalent, updated_at`
	monthlyColumns = `user_id, year, month, drink_total, snack_total, main_dish_total, irregular_total,
		monthly_total, badge_equivalent, itabag_equivalent, updated_at`
)

// UpsertDaily writes the day's summary in a single transaction and returns
// the row as stored.
func (r *SQLiteRepository) UpsertDaily(ctx context.Context, s core.DailySummary) (core.DailySummary, error) {
	var out core.DailySummary
	err := retryTransient(ctx, r.upsertAttempts, "upsert daily summary", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			f := s.SummaryFields
			if _, err := tx.ExecContext(ctx, upsertDailySQL,
				s.UserID, s.Date.String(),
				f.Amounts.Drink, f.Amounts.Snack, f.Amounts.Main, f.Amounts.Irregular,
				f.GrandTotal, f.BadgeEquivalent, f.ItabagEquivalent, r.timestamp(),
			); err != nil {
				return err
			}
			var err error
			out, err = scanDaily(tx.QueryRowContext(ctx,
				`SELECT `+dailyColumns+` FROM daily_summaries WHERE user_id = ? AND summary_date = ?`,
				s.UserID, s.Date.String()))
			return err
		})
	})
	if err != nil {
		return core.DailySummary{}, fmt.Errorf("daily %s: %w", s.Date, err)
	}

	slog.DebugContext(ctx, "Daily summary upserted",
		"user_id", out.UserID,
		"bucket", out.Date.String(),
		"grand_total", out.GrandTotal)
	return out, nil
}

func (r *SQLiteRepository) UpsertWeekly(ctx context.Context, s core.WeeklySummary) (core.WeeklySummary, error) {
	var out core.WeeklySummary
	err := retryTransient(ctx, r.upsertAttempts, "upsert weekly summary", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			f := s.SummaryFields
			if _, err := tx.ExecContext(ctx, upsertWeeklySQL,
				s.UserID, s.StartDate.String(), s.EndDate.String(),
				f.Amounts.Drink, f.Amounts.Snack, f.Amounts.Main, f.Amounts.Irregular,
				f.GrandTotal, f.BadgeEquivalent, f.ItabagEquivalent, r.timestamp(),
			); err != nil {
				return err
			}
			var err error
			out, err = scanWeekly(tx.QueryRowContext(ctx,
				`SELECT `+weeklyColumns+` FROM weekly_summaries WHERE user_id = ? AND start_date = ?`,
				s.UserID, s.StartDate.String()))
			return err
		})
	})
	if err != nil {
		return core.WeeklySummary{}, fmt.Errorf("weekly %s: %w", s.StartDate, err)
	}

	slog.DebugContext(ctx, "Weekly summary upserted",
		"user_id", out.UserID,
		"bucket", out.StartDate.String(),
		"grand_total", out.GrandTotal)
	return out, nil
}

func (r *SQLiteRepository) UpsertMonthly(ctx context.Context, s core.MonthlySummary) (core.MonthlySummary, error) {
	var out core.MonthlySummary
	err := retryTransient(ctx, r.upsertAttempts, "upsert monthly summary", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			f := s.SummaryFields
			if _, err := tx.ExecContext(ctx, upsertMonthlySQL,
				s.UserID, s.Year, s.Month,
				f.Amounts.Drink, f.Amounts.Snack, f.Amounts.Main, f.Amounts.Irregular,
				f.GrandTotal, f.BadgeEquivalent, f.ItabagEquivalent, r.timestamp(),
			); err != nil {
				return err
			}
			var err error
			out, err = scanMonthly(tx.QueryRowContext(ctx,
				`SELECT `+monthlyColumns+` FROM monthly_summaries WHERE user_id = ? AND year = ? AND month = ?`,
				s.UserID, s.Year, s.Month))
			return err
		})
	})
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("monthly %s: %w", s.Key(), err)
	}

	slog.DebugContext(ctx, "Monthly summary upserted",
		"user_id", out.UserID,
		"bucket", out.Key().String(),
		"grand_total", out.GrandTotal)
	return out, nil
}

// GetDaily returns found=false when the bucket has never been computed.
func (r *SQLiteRepository) GetDaily(ctx context.Context, userID int64, date core.Date) (core.DailySummary, bool, error) {
	s, err := scanDaily(r.db.QueryRowContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_summaries WHERE user_id = ? AND summary_date = ?`,
		userID, date.String()))
	return absentOnNoRows(s, err)
}

func (r *SQLiteRepository) GetWeekly(ctx context.Context, userID int64, start core.Date) (core.WeeklySummary, bool, error) {
	s, err := scanWeekly(r.db.QueryRowContext(ctx,
		`SELECT `+weeklyColumns+` FROM weekly_summaries WHERE user_id = ? AND start_date = ?`,
		userID, start.String()))
	return absentOnNoRows(s, err)
}

func (r *SQLiteRepository) GetMonthly(ctx context.Context, userID int64, key core.MonthKey) (core.MonthlySummary, bool, error) {
	s, err := scanMonthly(r.db.QueryRowContext(ctx,
		`SELECT `+monthlyColumns+` FROM monthly_summaries WHERE user_id = ? AND year = ? AND month = ?`,
		userID, key.Year, key.Month))
	return absentOnNoRows(s, err)
}

// ListDaily returns the user's daily summaries ordered by date.
func (r *SQLiteRepository) ListDaily(ctx context.Context, userID int64) ([]core.DailySummary, error) {
	return listSummaries(ctx, r.db,
		`SELECT `+dailyColumns+` FROM daily_summaries WHERE user_id = ? ORDER BY summary_date`,
		userID, scanDaily)
}

// ListWeekly returns the user's weekly summaries ordered by start date.
func (r *SQLiteRepository) ListWeekly(ctx context.Context, userID int64) ([]core.WeeklySummary, error) {
	return listSummaries(ctx, r.db,
		`SELECT `+weeklyColumns+` FROM weekly_summaries WHERE user_id = ? ORDER BY start_date`,
		userID, scanWeekly)
}

// ListMonthly returns the user's monthly summaries ordered by (year, month).
func (r *SQLiteRepository) ListMonthly(ctx context.Context, userID int64) ([]core.MonthlySummary, error) {
	return listSummaries(ctx, r.db,
		`SELECT `+monthlyColumns+` FROM monthly_summaries WHERE user_id = ? ORDER BY year, month`,
		userID, scanMonthly)
}

func listSummaries[T any](ctx context.Context, q querier, query string, userID int64, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

func absentOnNoRows[T any](s T, err error) (T, bool, error) {
	var zero T
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return s, true, nil
}

func scanFields(f *core.SummaryFields) []any {
	return []any{
		&f.Amounts.Drink, &f.Amounts.Snack, &f.Amounts.Main, &f.Amounts.Irregular,
		&f.GrandTotal, &f.BadgeEquivalent, &f.ItabagEquivalent,
	}
}

func scanDaily(s rowScanner) (core.DailySummary, error) {
	var (
		d           core.DailySummary
		date, stamp string
	)
	dest := append([]any{&d.UserID, &date}, scanFields(&d.SummaryFields)...)
	if err := s.Scan(append(dest, &stamp)...); err != nil {
		return d, wrapScan(err, "daily summary")
	}
	var err error
	if d.Date, err = parseDate(date); err != nil {
		return d, err
	}
	d.UpdatedAt = parseTimestamp(stamp)
	return d, nil
}

func scanWeekly(s rowScanner) (core.WeeklySummary, error) {
	var (
		w                 core.WeeklySummary
		start, end, stamp string
	)
	dest := append([]any{&w.UserID, &start, &end}, scanFields(&w.SummaryFields)...)
	if err := s.Scan(append(dest, &stamp)...); err != nil {
		return w, wrapScan(err, "weekly summary")
	}
	var err error
	if w.StartDate, err = parseDate(start); err != nil {
		return w, err
	}
	if w.EndDate, err = parseDate(end); err != nil {
		return w, err
	}
	w.UpdatedAt = parseTimestamp(stamp)
	return w, nil
}

func scanMonthly(s rowScanner) (core.MonthlySummary, error) {
	var (
		m     core.MonthlySummary
		stamp string
	)
	dest := append([]any{&m.UserID, &m.Year, &m.Month}, scanFields(&m.SummaryFields)...)
	if err := s.Scan(append(dest, &stamp)...); err != nil {
		return m, wrapScan(err, "monthly summary")
	}
	m.UpdatedAt = parseTimestamp(stamp)
	return m, nil
}

func wrapScan(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("scan %s: %w", what, err)
}
