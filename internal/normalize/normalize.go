package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat selects how a raw date string is interpreted. The selector is
// explicit per source: day-first vs month-first is ambiguous for many real
// dates, so the loader must never auto-detect.
type DateFormat int

const (
	DateISO DateFormat = iota
	DateDayFirst
	DateTimeDayFirst
)

func DateFormatFromString(s string) (DateFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "iso":
		return DateISO, nil
	case "day-first":
		return DateDayFirst, nil
	case "day-first-time":
		return DateTimeDayFirst, nil
	}
	return DateISO, fmt.Errorf("unknown date format %q", s)
}

func (f DateFormat) layout() string {
	switch f {
	case DateDayFirst:
		return "02/01/2006"
	case DateTimeDayFirst:
		return "02/01/2006 15:04"
	}
	return "2006-01-02"
}

// ParseDecimal parses a money string in the source locale. A comma is the
// decimal separator; when dots are also present they are thousands
// separators and removed first ("1.234,56" -> 1234.56). Plain dot-decimal
// input passes through unchanged.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty decimal")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", raw, err)
	}
	return d, nil
}

// ParseDate parses with the stated format only. Out-of-range components
// (month 13, day 31 in February) fail rather than roll over.
func ParseDate(raw string, f DateFormat) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.ParseInLocation(f.layout(), s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// Day truncates a timestamp to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
