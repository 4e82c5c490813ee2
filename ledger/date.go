package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date layout used everywhere in the ledger.
const DateLayout = "2006-01-02"

// Date represents a calendar date without a time component. Dates are stored
// at UTC midnight so that comparisons and day arithmetic are exact.
type Date struct {
	time.Time
}

// NewDate parses a date in YYYY-MM-DD format.
func NewDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return Date{Time: t}, nil
}

// MustDate parses a date and panics on error.
// Use only in tests or for constants.
func MustDate(value string) Date {
	d, err := NewDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates a time to its calendar date in the time's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in the local time zone.
func Today() Date {
	return DateOf(time.Now())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// secondsPerDay holds for dates at UTC midnight, which have no DST shifts.
const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the number of whole days from d to other.
// The result is negative when other is before d. Seconds are compared
// directly since time.Duration cannot span more than about 292 years.
func (d Date) DaysUntil(other Date) int {
	return int((other.Unix() - d.Unix()) / secondsPerDay)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether both dates denote the same day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// Compare returns -1, 0 or +1 depending on the chronological order of d and other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Before(other):
		return -1
	case d.After(other):
		return 1
	default:
		return 0
	}
}

// String returns the date in YYYY-MM-DD format, or an empty string for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string. null and "" decode to the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := NewDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
