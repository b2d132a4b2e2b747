package reports

import (
	"fmt"
	"time"
)

// WeekKey returns the ISO-8601 week identifier ("2025-W01") of the UTC calendar date of t.
//
// Weeks start on Monday and week 1 contains the year's first Thursday, so
// dates around New Year may belong to the neighbouring ISO year.
func WeekKey(t time.Time) string {
	utc := t.UTC()
	date := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	year, week := date.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
