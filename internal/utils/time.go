package utils

import (
	"fmt"
	"time"
)

const layoutDateTime = "2006-01-02 15:04:05"

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM:SS" in local timezone.
func FormatDateTime(t time.Time) string {
	return t.In(time.Local).Format(layoutDateTime)
}

// FormatCountdown renders a duration as MM:SS, prefixed with "-" once overdue.
// Sub-second remainders are truncated toward zero.
func FormatCountdown(d time.Duration) string {
	secs := int64(d / time.Second)
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	return fmt.Sprintf("%s%02d:%02d", sign, secs/60, secs%60)
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
