package utils

import (
	"time"

	strftime "github.com/ncruces/go-strftime"
)

// Layouts used in the transcript and the saved report.
const (
	TimestampLayout = "%Y-%m-%d %H:%M:%S"
	ClockLayout     = "%H:%M:%S"
)

// Now returns the current local time. Replaced in tests.
var Now = time.Now

// FormatTimestamp renders t as "2025-01-31 14:05:09" (local time of t).
func FormatTimestamp(t time.Time) string {
	return strftime.Format(TimestampLayout, t)
}

// FormatClock renders the wall clock part of t as "14:05:09".
func FormatClock(t time.Time) string {
	return strftime.Format(ClockLayout, t)
}
