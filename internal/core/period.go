// Package core provides the spending domain: purchases, conversion settings,
// summary shapes and the pure calendar and conversion rules the aggregation
// engine is built on.
//
// This file resolves a date into its day, week and month buckets. Weeks run
// Sunday through Saturday.
package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

type (
	// Granularity names one of the three aggregation levels.
	Granularity string

	// WeekRange is the Sunday..Saturday span containing a date.
	WeekRange struct {
		Start Date
		End   Date
	}

	// MonthKey identifies a calendar month.
	MonthKey struct {
		Year  int
		Month int // 1-12
	}
)

var ErrInvalidBucket = errors.New("invalid bucket")

// Granularities lists every granularity in recompute order.
var Granularities = []Granularity{Daily, Weekly, Monthly}

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Daily, Weekly, Monthly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity: %q", s)
}

// ValidateBucketDate rejects dates that cannot identify a bucket. Every
// bucket containing d, including its week, must lie within years 1-9999.
func ValidateBucketDate(d Date) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBucket, err)
	}
	if w := WeekKey(d); w.End.Year() > 9999 {
		return fmt.Errorf("%w: week %s..%s of %s is out of range", ErrInvalidBucket,
			w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"), d)
	}
	return nil
}

func DayKey(d Date) Date {
	return d
}

// sundayIndex maps the date onto Sunday=0 .. Saturday=6.
func sundayIndex(d Date) int {
	// time.Weekday is already Sunday-first; normalise from a Monday-first
	// count so the rule stays explicit.
	mondayFirst := (int(d.Weekday()) + 6) % 7
	return (mondayFirst + 1) % 7
}

func WeekKey(d Date) WeekRange {
	start := d.AddDays(-sundayIndex(d))
	return WeekRange{Start: start, End: start.AddDays(6)}
}

// Contains reports whether d falls inside the week.
func (w WeekRange) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

func (w WeekRange) String() string {
	return w.Start.String() + ".." + w.End.String()
}

func MonthKeyOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: int(d.Month())}
}

// LastDayOfMonth returns 28, 29, 30 or 31.
func LastDayOfMonth(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m MonthKey) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidBucket, m.Month)
	}
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidBucket, m.Year)
	}
	return nil
}

// Range returns the first and last date of the month.
func (m MonthKey) Range() (Date, Date) {
	return NewDate(m.Year, m.Month, 1), NewDate(m.Year, m.Month, LastDayOfMonth(m.Year, m.Month))
}

func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// BucketRange returns the inclusive date span of the bucket containing d.
func BucketRange(g Granularity, d Date) (Date, Date, error) {
	switch g {
	case Daily:
		day := DayKey(d)
		return day, day, nil
	case Weekly:
		w := WeekKey(d)
		return w.Start, w.End, nil
	case Monthly:
		first, last := MonthKeyOf(d).Range()
		return first, last, nil
	}
	return Date{}, Date{}, fmt.Errorf("unknown granularity: %q", string(g))
}
