package logging

import (
	"strconv"
	"time"
)

// Console lines carry milliseconds so stages of one recording can be told
// apart; the date is kept because a run can cross midnight.
const consoleTimestampLayout = "2006-01-02 15:04:05.000"

// jsonTimestampLayout is RFC 3339 with fixed milliseconds and the local
// offset, matching the clock batch folders are named by.
const jsonTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(consoleTimestampLayout)
}

func formatJSONTimestamp(ts time.Time) string {
	return ts.In(time.Local).Format(jsonTimestampLayout)
}

// formatSeconds renders d in seconds rounded to the millisecond, the unit
// chunk names and audio lengths use ("25s", "1.5s").
func formatSeconds(d time.Duration) string {
	d = d.Round(time.Millisecond)
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

func durationSeconds(d time.Duration) float64 {
	return d.Round(time.Millisecond).Seconds()
}
