package utils

import (
	"strings"
	"time"
)

const (
	DateOnly    = "2006-01-02"
	DateTime    = "2006-01-02 15:04"
	DateTimeSec = "2006-01-02 15:04:05"
	TimeOnly    = "15:04:05"
)

// Dash stands in for a missing value.
const Dash = "—"

// TimeOrDash formats a time value in UTC using the given layout, or returns
// Dash if zero.
func TimeOrDash(t time.Time, layout string) string {
	if t.IsZero() {
		return Dash
	}
	return t.UTC().Format(layout)
}

// OrDash returns s, or Dash if s is blank.
func OrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return Dash
	}
	return s
}

// JoinOrDash joins items with ", ", or returns Dash if there are none.
func JoinOrDash(items []string) string {
	if len(items) == 0 {
		return Dash
	}
	return strings.Join(items, ", ")
}
