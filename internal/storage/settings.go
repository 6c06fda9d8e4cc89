package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"oshikatsu/internal/core"
)

func createDefaultSettings(ctx context.Context, q querier, userID int64, stamp string) error {
	def := core.DefaultConversionSettings(userID)
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversion_settings
			(user_id, badge_price, itabag_item_count, itabag_total_price, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, def.BadgePrice, def.ItabagCount, def.ItabagTotalPrice, stamp)
	if err != nil {
		return fmt.Errorf("insert default settings: %w", err)
	}
	return nil
}

// GetSettings returns core.ErrMissingSettings when the user has no row.
func (r *SQLiteRepository) GetSettings(ctx context.Context, userID int64) (core.ConversionSettings, error) {
	var (
		s     core.ConversionSettings
		stamp string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, badge_price, itabag_item_count, itabag_total_price, updated_at
		FROM conversion_settings WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.BadgePrice, &s.ItabagCount, &s.ItabagTotalPrice, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ConversionSettings{}, fmt.Errorf("user %d: %w", userID, core.ErrMissingSettings)
	}
	if err != nil {
		return core.ConversionSettings{}, fmt.Errorf("get settings: %w", err)
	}
	s.UpdatedAt = parseTimestamp(stamp)
	return s, nil
}

// UpdateSettings stores new rates, deriving the itabag total. It does not
// touch any summary.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, userID, badgePrice, itabagCount int64) (core.ConversionSettings, error) {
	s, err := core.NewConversionSettings(userID, badgePrice, itabagCount)
	if err != nil {
		return core.ConversionSettings{}, err
	}
	stamp := r.timestamp()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversion_settings
			(user_id, badge_price, itabag_item_count, itabag_total_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			badge_price = excluded.badge_price,
			itabag_item_count = excluded.itabag_item_count,
			itabag_total_price = excluded.itabag_total_price,
			updated_at = excluded.updated_at`,
		s.UserID, s.BadgePrice, s.ItabagCount, s.ItabagTotalPrice, stamp)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ConversionSettings{}, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
		}
		return core.ConversionSettings{}, fmt.Errorf("update settings: %w", err)
	}
	s.UpdatedAt = parseTimestamp(stamp)

	slog.InfoContext(ctx, "Conversion settings updated",
		"user_id", userID,
		"badge_price", s.BadgePrice,
		"itabag_item_count", s.ItabagCount,
		"itabag_total_price", s.ItabagTotalPrice)

	return s, nil
}
