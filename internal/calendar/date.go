// Package calendar implements the booked-dates calendar of a pass: parsing
// free-text date ranges, keeping a merged set of booked ranges and answering
// availability questions against it.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the storage and comparison form of a calendar day.
const DateLayout = "2006-01-02"

// Date is a calendar day in zero-padded YYYY-MM-DD form. Two valid Dates
// compare chronologically with the ordinary string operators.
type Date string

// NewDate builds a Date from calendar components. Out-of-range components
// roll over the way time.Date normalizes them (Feb 30 becomes Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(DateLayout))
}

// ParseDate validates s as a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Format(DateLayout)), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

// AddDays shifts the day by n calendar days. An invalid Date is returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := d.Time()
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(DateLayout))
}

// Valid reports whether d is a well-formed calendar day.
func (d Date) Valid() bool {
	_, err := d.Time()
	return err == nil
}

func (d Date) String() string {
	return string(d)
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Validate checks both bounds and start <= end.
func (r DateRange) Validate() error {
	if !r.Start.Valid() {
		return fmt.Errorf("invalid start date %q", r.Start)
	}
	if !r.End.Valid() {
		return fmt.Errorf("invalid end date %q", r.End)
	}
	if r.End < r.Start {
		return fmt.Errorf("end date %s is before start date %s", r.End, r.Start)
	}
	return nil
}

// Contains reports whether d falls inside the range, both ends inclusive.
func (r DateRange) Contains(d Date) bool {
	return d >= r.Start && d <= r.End
}

func (r DateRange) String() string {
	return string(r.Start) + ".." + string(r.End)
}
