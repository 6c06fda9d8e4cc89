package core

import (
	"errors"
	"fmt"
	"time"
)

// Seed rates written for every new user. The seed total is kept as
// documented rather than derived; any update re-derives it.
const (
	DefaultBadgePrice       int64 = 600
	DefaultItabagCount      int64 = 35
	DefaultItabagTotalPrice int64 = 19250
)

var (
	ErrMissingSettings = errors.New("conversion settings not found")
	ErrInvalidSettings = errors.New("invalid conversion settings")
)

// ConversionSettings holds a user's badge price and itabag size.
// ItabagTotalPrice is derived and must always equal BadgePrice * ItabagCount.
type ConversionSettings struct {
	UserID           int64
	BadgePrice       int64
	ItabagCount      int64
	ItabagTotalPrice int64
	UpdatedAt        time.Time
}

// NewConversionSettings builds settings with the derived bundle price filled in.
func NewConversionSettings(userID, badgePrice, itabagCount int64) (ConversionSettings, error) {
	s := ConversionSettings{
		UserID:           userID,
		BadgePrice:       badgePrice,
		ItabagCount:      itabagCount,
		ItabagTotalPrice: badgePrice * itabagCount,
	}
	return s, s.Validate()
}

// DefaultConversionSettings returns the seed rates every new user starts with.
func DefaultConversionSettings(userID int64) ConversionSettings {
	return ConversionSettings{
		UserID:           userID,
		BadgePrice:       DefaultBadgePrice,
		ItabagCount:      DefaultItabagCount,
		ItabagTotalPrice: DefaultItabagTotalPrice,
	}
}

func (s ConversionSettings) isSeed() bool {
	return s.BadgePrice == DefaultBadgePrice &&
		s.ItabagCount == DefaultItabagCount &&
		s.ItabagTotalPrice == DefaultItabagTotalPrice
}

func (s ConversionSettings) Validate() error {
	if s.BadgePrice <= 0 {
		return fmt.Errorf("%w: badge price must be positive, got %d", ErrInvalidSettings, s.BadgePrice)
	}
	if s.ItabagCount <= 0 {
		return fmt.Errorf("%w: itabag item count must be positive, got %d", ErrInvalidSettings, s.ItabagCount)
	}
	if s.ItabagTotalPrice != s.BadgePrice*s.ItabagCount && !s.isSeed() {
		return fmt.Errorf("%w: itabag total %d != %d x %d", ErrInvalidSettings, s.ItabagTotalPrice, s.BadgePrice, s.ItabagCount)
	}
	return nil
}

// Convert applies these rates to a spend total.
func (s ConversionSettings) Convert(total int64) Equivalence {
	return Convert(total, s.BadgePrice, s.ItabagTotalPrice)
}
