package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for appointment dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidClockTime = errors.New("time must be HH:MM (24h, zero padded)")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
)

// ParseClock converts a zero padded "HH:MM" string into minutes after midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClockTime
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidClockTime
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrInvalidClockTime
	}
	return h*60 + m, nil
}

// IsClock reports whether s is a valid "HH:MM" value.
func IsClock(s string) bool {
	_, err := ParseClock(s)
	return err == nil
}

// ParseDate parses a calendar day in the given location (midnight).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// IsDate reports whether s is a valid "YYYY-MM-DD" value.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// TimeRange is a start/end pair of "HH:MM" strings within a single day.
// Because the format is fixed width and zero padded, lexicographic order
// equals chronological order.
type TimeRange struct {
	Start string `bson:"start" json:"start"`
	End   string `bson:"end" json:"end"`
}

// Validate checks both bounds are well formed and that start < end.
func (r TimeRange) Validate() error {
	start, err := ParseClock(r.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return errors.New("start must be before end")
	}
	return nil
}

// Overlaps uses the half-open overlap test: a.start < b.end AND a.end > b.start.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && r.End > other.Start
}

// Within reports whether r lies entirely inside outer.
func (r TimeRange) Within(outer TimeRange) bool {
	return r.Start >= outer.Start && r.End <= outer.End
}

// At combines a calendar day and an "HH:MM" value into an instant in loc.
func At(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location()), nil
}

// MonthStart returns midnight of the first day of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}
