package core

import "time"

// SummaryFields are the computed columns shared by every summary shape.
// A recompute replaces all of them at once.
type SummaryFields struct {
	Amounts          Amounts
	GrandTotal       int64
	BadgeEquivalent  float64
	ItabagEquivalent float64
}

// NewSummaryFields sums the categories and applies the conversion.
func NewSummaryFields(a Amounts, eq Equivalence) SummaryFields {
	return SummaryFields{
		Amounts:          a,
		GrandTotal:       a.Total(),
		BadgeEquivalent:  eq.Badge,
		ItabagEquivalent: eq.Itabag,
	}
}

type DailySummary struct {
	UserID int64
	Date   Date
	SummaryFields
	UpdatedAt time.Time
}

type WeeklySummary struct {
	UserID    int64
	StartDate Date
	EndDate   Date
	SummaryFields
	UpdatedAt time.Time
}

type MonthlySummary struct {
	UserID int64
	Year   int
	Month  int
	SummaryFields
	UpdatedAt time.Time
}

// Key returns the month this summary covers.
func (m MonthlySummary) Key() MonthKey {
	return MonthKey{Year: m.Year, Month: m.Month}
}

// PeriodBreakdown is spend per time of day across a date range.
// Total always equals Morning + Noon + Night.
type PeriodBreakdown struct {
	Morning int64
	Noon    int64
	Night   int64
	Total   int64
}

// Get returns the subtotal for p.
func (b PeriodBreakdown) Get(p TimePeriod) int64 {
	switch p {
	case Morning:
		return b.Morning
	case Noon:
		return b.Noon
	case Night:
		return b.Night
	}
	return 0
}

// NewPeriodBreakdown collapses per-period category sums into grand totals.
func NewPeriodBreakdown(byPeriod map[TimePeriod]Amounts) PeriodBreakdown {
	b := PeriodBreakdown{
		Morning: byPeriod[Morning].Total(),
		Noon:    byPeriod[Noon].Total(),
		Night:   byPeriod[Night].Total(),
	}
	b.Total = b.Morning + b.Noon + b.Night
	return b
}
