package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError is returned when requested-dates text cannot be turned into a
// DateRange. Text is the input as the user typed it.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date format %q: %s", e.Text, e.Reason)
}

var (
	// "Dec 15-17, 2025"
	sameMonthPattern = regexp.MustCompile(`(\w+)\s+(\d+)-(\d+),?\s+(\d+)`)
	// "Nov 28 - Dec 2, 2025"
	crossMonthPattern = regexp.MustCompile(`(\w+)\s+(\d+)\s*-\s*(\w+)\s+(\d+),?\s+(\d+)`)
	// "Dec 15, 2025 - Jan 5, 2026"
	crossYearPattern = regexp.MustCompile(`(\w+)\s+(\d+),?\s+(\d+)\s*-\s*(\w+)\s+(\d+),?\s+(\d+)`)
)

// Keyed by the first three letters of the month name, so "sep", "sept" and
// "september" resolve alike.
var monthPrefixes = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

func lookupMonth(token string) (time.Month, bool) {
	token = strings.ToLower(token)
	if len(token) > 3 {
		token = token[:3]
	}
	m, ok := monthPrefixes[token]
	return m, ok
}

// ParseRequestedDates converts a human-entered range such as
// "Dec 15-17, 2025", "Nov 28 - Dec 2, 2025" or "Dec 30, 2025 - Jan 2, 2026"
// into a DateRange. The three shapes are tried in that order and the first
// match wins. Failures are always *ParseError.
func ParseRequestedDates(text string) (DateRange, error) {
	if strings.TrimSpace(text) == "" {
		return DateRange{}, &ParseError{Text: text, Reason: "empty"}
	}

	if m := sameMonthPattern.FindStringSubmatch(text); m != nil {
		return buildRange(text, m[1], m[2], m[4], m[1], m[3], m[4])
	}
	if m := crossMonthPattern.FindStringSubmatch(text); m != nil {
		return buildRange(text, m[1], m[2], m[5], m[3], m[4], m[5])
	}
	if m := crossYearPattern.FindStringSubmatch(text); m != nil {
		return buildRange(text, m[1], m[2], m[3], m[4], m[5], m[6])
	}

	return DateRange{}, &ParseError{Text: text, Reason: "unrecognized format"}
}

func buildRange(text, startMonth, startDay, startYear, endMonth, endDay, endYear string) (DateRange, error) {
	start, err := buildDate(text, startMonth, startDay, startYear)
	if err != nil {
		return DateRange{}, err
	}
	end, err := buildDate(text, endMonth, endDay, endYear)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, &ParseError{Text: text, Reason: err.Error()}
	}
	return r, nil
}

func buildDate(text, monthToken, dayToken, yearToken string) (Date, error) {
	month, ok := lookupMonth(monthToken)
	if !ok {
		return "", &ParseError{Text: text, Reason: fmt.Sprintf("unknown month %q", monthToken)}
	}
	day, err := strconv.Atoi(dayToken)
	if err != nil {
		return "", &ParseError{Text: text, Reason: fmt.Sprintf("bad day %q", dayToken)}
	}
	year, err := strconv.Atoi(yearToken)
	if err != nil {
		return "", &ParseError{Text: text, Reason: fmt.Sprintf("bad year %q", yearToken)}
	}
	// Two-digit years mean the 1900s.
	if year < 100 {
		year += 1900
	}

	// Rollover of a large day can leave the four-digit range.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() < 1 || t.Year() > 9999 {
		return "", &ParseError{Text: text, Reason: fmt.Sprintf("date out of range: %s %s, %s", monthToken, dayToken, yearToken)}
	}
	return Date(t.Format(DateLayout)), nil
}
