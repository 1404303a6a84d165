package common

import (
	"fmt"
	"strings"
	"time"
)

// Standard date format constants
const (
	// DisplayDateTime is the human-readable format used on job cards
	DisplayDateTime = "Jan 2, 15:04"

	// JobNameClock is the clock format used in generated job names
	JobNameClock = "15:04:05"
)

// timestampLayouts are tried in order; the service emits naive ISO 8601
// timestamps (no zone) which are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a service timestamp
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FormatDisplay formats a job creation time for display in local time
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DisplayDateTime)
}
