package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Morning TimePeriod = "morning"
	Noon    TimePeriod = "noon"
	Night   TimePeriod = "night"
)

// DateLayout is the on-disk and CLI representation of a calendar date.
const DateLayout = "2006-01-02"

const maxMemoLength = 200

type (
	TimePeriod string

	// Date is a calendar date pinned to midnight UTC.
	Date struct {
		time.Time
	}

	// Amounts holds the four spending categories in yen.
	Amounts struct {
		Drink     int64
		Snack     int64
		Main      int64
		Irregular int64
	}

	User struct {
		ID        int64
		Username  string
		CreatedAt time.Time
	}

	PurchaseRecord struct {
		ID         int64
		UserID     int64
		Date       Date
		TimePeriod TimePeriod
		Amounts    Amounts
		Memo       string
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTimePeriod = errors.New("invalid time period")
	ErrMemoTooLong       = errors.New("memo too long (max 200 characters)")
	ErrEmptyUsername     = errors.New("empty username")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("username already taken")
)

// TimePeriods lists every period in display order.
var TimePeriods = []TimePeriod{Morning, Noon, Night}

// periodAliases maps the labels used by the original dashboard onto periods.
var periodAliases = map[string]TimePeriod{
	"morning": Morning,
	"noon":    Noon,
	"night":   Night,
	"朝":       Morning,
	"昼":       Noon,
	"晩":       Night,
}

// ParseTimePeriod accepts either the English names or the 朝/昼/晩 labels.
func ParseTimePeriod(s string) (TimePeriod, error) {
	p, ok := periodAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimePeriod, s)
	}
	return p, nil
}

func (p TimePeriod) Validate() error {
	switch p {
	case Morning, Noon, Night:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTimePeriod, string(p))
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Unlike NewDate it refuses
// values such as 2023-02-30 instead of normalising them.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	if y := d.Year(); y < 1 || y > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidDate, y)
	}
	return nil
}

// Total is the exact sum of the four categories.
func (a Amounts) Total() int64 {
	return a.Drink + a.Snack + a.Main + a.Irregular
}

// Add returns the category-wise sum of a and b.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Drink:     a.Drink + b.Drink,
		Snack:     a.Snack + b.Snack,
		Main:      a.Main + b.Main,
		Irregular: a.Irregular + b.Irregular,
	}
}

func (a Amounts) Validate() error {
	if a.Drink < 0 || a.Snack < 0 || a.Main < 0 || a.Irregular < 0 {
		return fmt.Errorf("%w: categories must be non-negative", ErrInvalidAmount)
	}
	return nil
}

func (p PurchaseRecord) Validate() error {
	if p.UserID <= 0 {
		return ErrUserNotFound
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if err := p.TimePeriod.Validate(); err != nil {
		return err
	}
	if err := p.Amounts.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.Memo) > maxMemoLength {
		return ErrMemoTooLong
	}
	return nil
}

func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyUsername
	}
	return nil
}
