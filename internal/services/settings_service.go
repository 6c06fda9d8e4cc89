package services

import (
	"context"
	"fmt"
	"time"

	"oshikatsu/internal/core"
	"oshikatsu/internal/log"
)

// SettingsService changes a user's conversion rates.
//
// Only today's daily summary is refreshed after a change. Weekly and
// monthly summaries, and earlier days, keep the equivalences they were
// computed with until someone recomputes them.
type SettingsService struct {
	store      SettingsStore
	aggregator *Aggregator
	now        func() time.Time
	logger     *log.Logger
}

func NewSettingsService(store SettingsStore, aggregator *Aggregator) *SettingsService {
	return &SettingsService{
		store:      store,
		aggregator: aggregator,
		now:        time.Now,
		logger:     log.ForComponent(log.ComponentSettings),
	}
}

// SetClock replaces the source of "today".
func (s *SettingsService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *SettingsService) GetRates(ctx context.Context, userID int64) (core.ConversionSettings, error) {
	return s.store.GetSettings(ctx, userID)
}

// UpdateRates stores the new rates and recomputes today's daily bucket.
func (s *SettingsService) UpdateRates(ctx context.Context, userID, badgePrice, itabagCount int64) (core.ConversionSettings, core.DailySummary, error) {
	settings, err := s.store.UpdateSettings(ctx, userID, badgePrice, itabagCount)
	if err != nil {
		return core.ConversionSettings{}, core.DailySummary{}, fmt.Errorf("update settings: %w", err)
	}

	today := core.DateOf(s.now())
	daily, err := s.aggregator.RecomputeDaily(ctx, userID, today)
	if err != nil {
		return settings, core.DailySummary{}, fmt.Errorf("recompute %s: %w", today, err)
	}

	s.logger.InfoContext(ctx, "Rates updated",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpUpdate,
		"badge_price", settings.BadgePrice,
		"itabag_total_price", settings.ItabagTotalPrice,
		log.FieldBucket, today.String())
	return settings, daily, nil
}
