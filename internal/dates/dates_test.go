package dates

import (
	"errors"
	"testing"
	"time"
)

func TestParseBareDateIsLocalMidnight(t *testing.T) {
	t.Parallel()

	got, ok := Parse("2024-06-01")
	if !ok {
		t.Fatal("expected bare date to parse")
	}
	want := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
}

func TestParseTimestamps(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"2024-06-15T23:59:00Z":          time.Date(2024, time.June, 15, 23, 59, 0, 0, time.UTC),
		"2024-06-15T23:59:00.5Z":        time.Date(2024, time.June, 15, 23, 59, 0, int(500*time.Millisecond), time.UTC),
		"2024-06-15T20:00:00-04:00":     time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC),
		" 2024-06-15T10:30:00 ":         time.Date(2024, time.June, 15, 10, 30, 0, 0, time.Local),
		"2024-06-15 10:30:00":           time.Date(2024, time.June, 15, 10, 30, 0, 0, time.Local),
		"2024-06-15T10:30":              time.Date(2024, time.June, 15, 10, 30, 0, 0, time.Local),
		"2024-06-15T10:30:00.123456789": time.Date(2024, time.June, 15, 10, 30, 0, 123456789, time.Local),
	}
	for in, want := range cases {
		got, ok := Parse(in)
		if !ok {
			t.Fatalf("Parse(%q) failed", in)
		}
		if !got.Equal(want) {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "tomorrow", "2024-13-01", "2024-02-30", "06/01/2024", "2024-06-01Tnoon"} {
		if _, ok := Parse(in); ok {
			t.Fatalf("Parse(%q) should fail", in)
		}
	}
}

func TestParseStrict(t *testing.T) {
	t.Parallel()

	if _, err := ParseStrict("2024-06-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := ParseStrict(" next week ")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Input != "next week" {
		t.Fatalf("unexpected input: %q", parseErr.Input)
	}
}

func TestFormatForDisplay(t *testing.T) {
	t.Parallel()

	if got := FormatForDisplay(""); got != NoDueDate {
		t.Fatalf("empty = %q", got)
	}
	if got := FormatForDisplay("not a date"); got != NoDueDate {
		t.Fatalf("garbage = %q", got)
	}
	if got := FormatOr("", NoDateSet); got != NoDateSet {
		t.Fatalf("fallback = %q", got)
	}
	if got := FormatForDisplay("2024-06-01T15:04:00"); got != "Sat, Jun 1, 2024 3:04 PM" {
		t.Fatalf("local timestamp = %q", got)
	}
}

func TestFormatForDisplayIsDeterministic(t *testing.T) {
	t.Parallel()

	const due = "2024-06-15T23:59:00Z"
	first := FormatForDisplay(due)
	for i := 0; i < 5; i++ {
		if got := FormatForDisplay(due); got != first {
			t.Fatalf("call %d = %q, first = %q", i, got, first)
		}
	}
	want := time.Date(2024, time.June, 15, 23, 59, 0, 0, time.UTC).In(time.Local).Format(displayLayout)
	if first != want {
		t.Fatalf("FormatForDisplay = %q, want %q", first, want)
	}
}

func TestIsWithinRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		due    string
		before string
		after  string
		want   bool
	}{
		{"no due date always matches", "", "2024-06-01", "2024-05-01", true},
		{"unparsable due date matches", "soon", "2024-06-01", "", true},
		{"after before bound", "2024-06-15T23:59:00Z", "2024-06-01", "", false},
		{"no bounds", "2024-06-15T23:59:00Z", "", "", true},
		{"before bound is inclusive through end of day", "2024-06-01T23:59:59", "2024-06-01", "", true},
		{"past end of before day", "2024-06-02T00:00:00", "2024-06-01", "", false},
		{"after bound is inclusive from midnight", "2024-05-01T00:00:00", "", "2024-05-01", true},
		{"just before after day", "2024-04-30T23:59:59", "", "2024-05-01", false},
		{"inside both bounds", "2024-05-15T12:00:00", "2024-06-01", "2024-05-01", true},
		{"unparsable bounds are ignored", "2024-05-15T12:00:00", "june", "may", true},
		{"unparsable before keeps after", "2024-04-15T12:00:00", "june", "2024-05-01", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsWithinRange(tc.due, tc.before, tc.after); got != tc.want {
				t.Fatalf("IsWithinRange(%q, %q, %q) = %v, want %v", tc.due, tc.before, tc.after, got, tc.want)
			}
		})
	}
}

func TestRangePhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		before, after, want string
	}{
		{"", "", ""},
		{"2024-06-01", "", " due before 2024-06-01"},
		{"", "2024-05-01", " due after 2024-05-01"},
		{"2024-06-01", "2024-05-01", " due after 2024-05-01 and before 2024-06-01"},
	}
	for _, tc := range cases {
		if got := RangePhrase(tc.before, tc.after); got != tc.want {
			t.Fatalf("RangePhrase(%q, %q) = %q, want %q", tc.before, tc.after, got, tc.want)
		}
	}
}
