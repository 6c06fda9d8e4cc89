package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"oshikatsu/internal/core"
)

const purchaseColumns = `id, user_id, purchase_date, time_period,
	drink_amount, snack_amount, main_dish_amount, irregular_amount, memo, created_at`

// AppendPurchase adds one immutable record to the ledger and returns its id.
func (r *SQLiteRepository) AppendPurchase(ctx context.Context, p core.PurchaseRecord) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases
			(user_id, purchase_date, time_period, drink_amount, snack_amount,
			 main_dish_amount, irregular_amount, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Date.String(), string(p.TimePeriod),
		p.Amounts.Drink, p.Amounts.Snack, p.Amounts.Main, p.Amounts.Irregular,
		p.Memo, r.timestamp(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: %d", core.ErrUserNotFound, p.UserID)
		}
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("purchase id: %w", err)
	}

	slog.InfoContext(ctx, "Purchase appended to ledger",
		"id", id,
		"user_id", p.UserID,
		"date", p.Date.String(),
		"time_period", p.TimePeriod,
		"total", p.Amounts.Total())

	return id, nil
}

func (r *SQLiteRepository) GetPurchase(ctx context.Context, id int64) (core.PurchaseRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PurchaseRecord{}, fmt.Errorf("purchase %d: %w", id, sql.ErrNoRows)
	}
	return p, err
}

// PurchasesByDate returns the user's records for a single day.
func (r *SQLiteRepository) PurchasesByDate(ctx context.Context, userID int64, date core.Date) ([]core.PurchaseRecord, error) {
	return r.PurchasesInRange(ctx, userID, date, date)
}

// PurchasesInRange returns the user's records with start <= date <= end,
// ordered by date then id.
func (r *SQLiteRepository) PurchasesInRange(ctx context.Context, userID int64, start, end core.Date) ([]core.PurchaseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE user_id = ? AND purchase_date >= ? AND purchase_date <= ?
		ORDER BY purchase_date, id`,
		userID, start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query purchases %s..%s: %w", start, end, err)
	}
	defer rows.Close()

	var out []core.PurchaseRecord
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return out, nil
}

// TimePeriodSubtotals sums each category per time period over the range.
// Periods without records are absent from the map.
func (r *SQLiteRepository) TimePeriodSubtotals(ctx context.Context, userID int64, start, end core.Date) (map[core.TimePeriod]core.Amounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT time_period,
		       COALESCE(SUM(drink_amount), 0),
		       COALESCE(SUM(snack_amount), 0),
		       COALESCE(SUM(main_dish_amount), 0),
		       COALESCE(SUM(irregular_amount), 0)
		FROM purchases
		WHERE user_id = ? AND purchase_date >= ? AND purchase_date <= ?
		GROUP BY time_period`,
		userID, start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query time period subtotals: %w", err)
	}
	defer rows.Close()

	out := make(map[core.TimePeriod]core.Amounts)
	for rows.Next() {
		var (
			period string
			a      core.Amounts
		)
		if err := rows.Scan(&period, &a.Drink, &a.Snack, &a.Main, &a.Irregular); err != nil {
			return nil, fmt.Errorf("scan time period subtotal: %w", err)
		}
		p, err := core.ParseTimePeriod(period)
		if err != nil {
			return nil, fmt.Errorf("stored time period: %w", err)
		}
		out[p] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time period subtotals: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(s rowScanner) (core.PurchaseRecord, error) {
	var (
		p                   core.PurchaseRecord
		date, period, stamp string
	)
	err := s.Scan(&p.ID, &p.UserID, &date, &period,
		&p.Amounts.Drink, &p.Amounts.Snack, &p.Amounts.Main, &p.Amounts.Irregular,
		&p.Memo, &stamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan purchase: %w", err)
	}
	if p.Date, err = parseDate(date); err != nil {
		return p, err
	}
	p.TimePeriod = core.TimePeriod(period)
	p.CreatedAt = parseTimestamp(stamp)
	return p, nil
}
