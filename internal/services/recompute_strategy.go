// This file implements the Strategy Pattern for recomputing one summary
// bucket. Each granularity (daily, weekly, monthly) has its own strategy
// that knows which store record it writes.

package services

import (
	"context"
	"fmt"

	"oshikatsu/internal/core"
)

// RecomputeResult is the granularity-independent view of a written summary.
type RecomputeResult struct {
	Granularity core.Granularity
	UserID      int64
	Start       core.Date
	End         core.Date
	core.SummaryFields
}

// Bucket returns the key the result is stored under.
func (r RecomputeResult) Bucket() string {
	switch r.Granularity {
	case core.Weekly:
		return r.Start.String()
	case core.Monthly:
		return core.MonthKeyOf(r.Start).String()
	}
	return r.Start.String()
}

// RecomputeStrategy recomputes the bucket of its granularity that contains date.
type RecomputeStrategy interface {
	Recompute(ctx context.Context, a *Aggregator, userID int64, date core.Date) (RecomputeResult, error)
}

type DailyRecompute struct{}

func (DailyRecompute) Recompute(ctx context.Context, a *Aggregator, userID int64, date core.Date) (RecomputeResult, error) {
	s, err := a.RecomputeDaily(ctx, userID, date)
	if err != nil {
		return RecomputeResult{}, err
	}
	return RecomputeResult{
		Granularity: core.Daily, UserID: s.UserID,
		Start: s.Date, End: s.Date, SummaryFields: s.SummaryFields,
	}, nil
}

type WeeklyRecompute struct{}

func (WeeklyRecompute) Recompute(ctx context.Context, a *Aggregator, userID int64, date core.Date) (RecomputeResult, error) {
	s, err := a.RecomputeWeekly(ctx, userID, date)
	if err != nil {
		return RecomputeResult{}, err
	}
	return RecomputeResult{
		Granularity: core.Weekly, UserID: s.UserID,
		Start: s.StartDate, End: s.EndDate, SummaryFields: s.SummaryFields,
	}, nil
}

type MonthlyRecompute struct{}

func (MonthlyRecompute) Recompute(ctx context.Context, a *Aggregator, userID int64, date core.Date) (RecomputeResult, error) {
	s, err := a.RecomputeMonthly(ctx, userID, date)
	if err != nil {
		return RecomputeResult{}, err
	}
	first, last := s.Key().Range()
	return RecomputeResult{
		Granularity: core.Monthly, UserID: s.UserID,
		Start: first, End: last, SummaryFields: s.SummaryFields,
	}, nil
}

// recomputeStrategies maps each granularity to the strategy that writes it.
var recomputeStrategies = map[core.Granularity]RecomputeStrategy{
	core.Daily:   DailyRecompute{},
	core.Weekly:  WeeklyRecompute{},
	core.Monthly: MonthlyRecompute{},
}

// GetRecomputeStrategy returns the strategy for g, or an error for an
// unknown granularity.
func GetRecomputeStrategy(g core.Granularity) (RecomputeStrategy, error) {
	s, ok := recomputeStrategies[g]
	if !ok {
		return nil, fmt.Errorf("unknown granularity: %s", g)
	}
	return s, nil
}

// RegisterRecomputeStrategy adds or replaces the strategy for g. It is not
// safe to call concurrently with Recompute.
func RegisterRecomputeStrategy(g core.Granularity, s RecomputeStrategy) {
	recomputeStrategies[g] = s
}
