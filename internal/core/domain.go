package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the persisted and wire format for goal dates.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// GoalInput carries the caller-supplied fields of a new goal entry.
	GoalInput struct {
		Category      string
		MonthlyTarget int64
		Achieved      int64
		Date          Date
	}

	// GoalRecord is an immutable stored goal entry.
	GoalRecord struct {
		ID            int64
		Category      string
		MonthlyTarget int64
		Achieved      int64
		Date          Date
	}

	// Period is an inclusive date range used to filter records.
	Period struct {
		Start Date
		End   Date
	}
)

// MaxQuantity bounds targets and achieved counts so that sums over any
// realistic number of rows and the yearly multiples stay within int64.
const MaxQuantity = math.MaxInt32

var (
	// ErrValidation is the kind shared by every input validation failure.
	ErrValidation = errors.New("validation error")
	// ErrStorage is the kind shared by every record store I/O failure.
	ErrStorage = errors.New("storage error")

	ErrInvalidTarget   = fmt.Errorf("%w: monthly target must be between 1 and %d", ErrValidation, MaxQuantity)
	ErrInvalidAchieved = fmt.Errorf("%w: achieved must be between 0 and %d", ErrValidation, MaxQuantity)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrValidation)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range values such as
// 2026-02-30 are rejected rather than normalised.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Validate applies the type and range checks required before insertion.
func (g GoalInput) Validate() error {
	if strings.TrimSpace(g.Category) == "" {
		return ErrEmptyCategory
	}
	if g.MonthlyTarget < 1 || g.MonthlyTarget > MaxQuantity {
		return ErrInvalidTarget
	}
	if g.Achieved < 0 || g.Achieved > MaxQuantity {
		return ErrInvalidAchieved
	}
	if err := g.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// YearPeriod returns the Jan 1 .. Dec 31 period of year.
func YearPeriod(year int) Period {
	return Period{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

// Contains reports whether d lies within the inclusive period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

// Key identifies the period in caches and file names.
func (p Period) Key() string {
	return p.Start.String() + "_" + p.End.String()
}
