// Package dates parses the loosely formatted due dates the LMS returns and
// callers supply, and decides whether a due date falls inside a day range.
//
// A bare calendar date (YYYY-MM-DD) is read as midnight in the local calendar,
// not UTC, so "due before 2024-06-01" means the end of that local day.
package dates

import (
	"fmt"
	"strings"
	"time"
)

const (
	// NoDueDate is shown when an assignment has no usable due date.
	NoDueDate = "No due date"
	// NoDateSet is the fallback used by the content view.
	NoDateSet = "No date set"

	displayLayout = "Mon, Jan 2, 2006 3:04 PM"
	dayLayout     = "2006-01-02"
)

// zoned layouts carry their own offset; local layouts are interpreted in time.Local.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// ParseError reports a date string that could not be read where a value is mandatory.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("unrecognized date %q (expected YYYY-MM-DD or an ISO 8601 timestamp)", e.Input)
}

// Parse reads a bare calendar date or a full timestamp. It reports false for
// empty or unparsable input and never panics.
func Parse(input string) (time.Time, bool) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return time.Time{}, false
	}
	if len(raw) == len(dayLayout) {
		if t, err := time.ParseInLocation(dayLayout, raw, time.Local); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseStrict is Parse for inputs that must be valid when present.
func ParseStrict(input string) (time.Time, error) {
	t, ok := Parse(input)
	if !ok {
		return time.Time{}, &ParseError{Input: strings.TrimSpace(input)}
	}
	return t, nil
}

// FormatForDisplay renders input in the local zone, or NoDueDate.
func FormatForDisplay(input string) string {
	return FormatOr(input, NoDueDate)
}

// FormatOr renders input in the local zone, or fallback when it is absent or unparsable.
func FormatOr(input, fallback string) string {
	t, ok := Parse(input)
	if !ok {
		return fallback
	}
	return t.In(time.Local).Format(displayLayout)
}

// IsWithinRange reports whether dueDate lies between after (from 00:00:00.000
// of that day) and before (through 23:59:59.999 of that day), both inclusive.
// A missing due date always matches; an unparsable bound is ignored.
func IsWithinRange(dueDate, before, after string) bool {
	due, ok := Parse(dueDate)
	if !ok {
		return true
	}
	if upper, ok := Parse(before); ok && due.After(EndOfDay(upper)) {
		return false
	}
	if lower, ok := Parse(after); ok && due.Before(StartOfDay(lower)) {
		return false
	}
	return true
}

// StartOfDay returns 00:00:00.000 of t's local calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// EndOfDay returns 23:59:59.999 of t's local calendar day.
func EndOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.Local)
}

// RangePhrase describes a due-date window for messages, e.g.
// ` due after 2024-05-01 and before 2024-06-01`. It is empty without bounds.
func RangePhrase(before, after string) string {
	before = strings.TrimSpace(before)
	after = strings.TrimSpace(after)
	switch {
	case before != "" && after != "":
		return fmt.Sprintf(" due after %s and before %s", after, before)
	case before != "":
		return fmt.Sprintf(" due before %s", before)
	case after != "":
		return fmt.Sprintf(" due after %s", after)
	default:
		return ""
	}
}
