// Package streak derives the current completion streak from a set of dates.
//
// Everything here is pure: "today" is always supplied by the caller.
package streak

import (
	"sort"
	"time"
)

// DateLayout is the calendar-date format of completion dates.
const DateLayout = "2006-01-02"

// DateString formats t as a calendar date in t's location.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD completion date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Compute returns the number of consecutive completed days ending today,
// or ending yesterday when today is not completed yet. A missing yesterday
// and today breaks the streak.
func Compute(completed []string, today time.Time) int {
	if len(completed) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(completed))
	for _, d := range completed {
		set[d] = struct{}{}
	}

	y, m, d := today.Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	if _, ok := set[DateString(anchor)]; !ok {
		anchor = anchor.AddDate(0, 0, -1)
		if _, ok := set[DateString(anchor)]; !ok {
			return 0
		}
	}

	count := 1
	for day := anchor.AddDate(0, 0, -1); ; day = day.AddDate(0, 0, -1) {
		if _, ok := set[DateString(day)]; !ok {
			break
		}
		count++
	}
	return count
}

// Normalize returns the valid dates sorted ascending with duplicates removed.
func Normalize(dates []string) []string {
	out := make([]string, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := ParseDate(d); err != nil {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
