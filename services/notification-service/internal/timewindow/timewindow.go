// Package timewindow decides whether a visiting-hours slot such as "5:00 PM - 6:00 PM"
// has entered its reminder window.
package timewindow

import (
	"strings"
	"time"
)

// Separator splits a display range into start and end.
const Separator = " - "

const clockLayout = "3:04 PM"

// StartOf returns the start segment of a "<start> - <end>" range.
func StartOf(rangeString string) (string, bool) {
	start, _, found := strings.Cut(rangeString, Separator)
	start = strings.TrimSpace(start)
	if !found || start == "" {
		return "", false
	}
	return start, true
}

// ParseClock parses "h:mm AM" / "h:mm PM" into a 24-hour hour and minute.
// The meridiem marker must be upper case.
func ParseClock(s string) (hour, minute int, ok bool) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour() % 24, t.Minute(), true
}

// ValidRange reports whether both ends of a range parse as clock times.
func ValidRange(rangeString string) bool {
	start, end, found := strings.Cut(rangeString, Separator)
	if !found {
		return false
	}
	if _, _, ok := ParseClock(start); !ok {
		return false
	}
	_, _, ok := ParseClock(end)
	return ok
}

// IsDue reports whether now has reached start-of-slot minus bufferHours, with the slot
// anchored to today's date in timeZone. Any parse failure or unknown zone yields false.
func IsDue(now time.Time, rangeString string, bufferHours int, timeZone string) bool {
	start, ok := StartOf(rangeString)
	if !ok {
		return false
	}
	hour, minute, ok := ParseClock(start)
	if !ok {
		return false
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return false
	}

	local := now.In(loc)
	startAt := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	threshold := startAt.Add(-time.Duration(bufferHours) * time.Hour)
	return !local.Before(threshold)
}
