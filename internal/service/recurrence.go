package service

import (
	"time"

	"github.com/noah-isme/creatia-api/internal/models"
)

const dateLayout = "2006-01-02"

// NextOccurrence returns the due date following d for the recurrence type.
// A monthly step whose day does not exist in the target month lands on the
// 28th for February and the 30th otherwise. A yearly step from February 29
// lands on February 28 in a common year. Unknown types return d unchanged.
func NextOccurrence(d time.Time, rtype models.RecurrenceType) time.Time {
	year, month, day := d.Date()
	switch rtype {
	case models.RecurrenceDaily:
		return d.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		return d.AddDate(0, 0, 7)
	case models.RecurrenceMonthly:
		month++
		if month > time.December {
			month = time.January
			year++
		}
		if day > daysIn(year, month) {
			if month == time.February {
				day = 28
			} else {
				day = 30
			}
		}
		return time.Date(year, month, day, 0, 0, 0, 0, d.Location())
	case models.RecurrenceYearly:
		year++
		if day > daysIn(year, month) {
			day = daysIn(year, month)
		}
		return time.Date(year, month, day, 0, 0, 0, 0, d.Location())
	}
	return d
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate accepts YYYY-MM-DD, optionally followed by a time component.
func parseDate(raw string) (time.Time, bool) {
	if len(raw) < len(dateLayout) {
		return time.Time{}, false
	}
	if len(raw) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return dateOnly(t), true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return dateOnly(t), true
		}
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
