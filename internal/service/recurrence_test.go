package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/creatia-api/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		from  string
		rtype models.RecurrenceType
		want  string
	}{
		{"2024-01-31", models.RecurrenceDaily, "2024-02-01"},
		{"2024-12-28", models.RecurrenceWeekly, "2025-01-04"},
		{"2024-01-15", models.RecurrenceMonthly, "2024-02-15"},
		{"2024-01-31", models.RecurrenceMonthly, "2024-02-28"},
		{"2024-01-29", models.RecurrenceMonthly, "2024-02-29"},
		{"2024-03-31", models.RecurrenceMonthly, "2024-04-30"},
		{"2024-12-31", models.RecurrenceMonthly, "2025-01-31"},
		{"2024-05-31", models.RecurrenceMonthly, "2024-06-30"},
		{"2023-06-10", models.RecurrenceYearly, "2024-06-10"},
		{"2024-02-29", models.RecurrenceYearly, "2025-02-28"},
		{"2024-02-29", models.RecurrenceOneTime, "2024-02-29"},
	}
	for _, tc := range cases {
		got := NextOccurrence(day(tc.from), tc.rtype)
		assert.Equal(t, tc.want, got.Format(dateLayout), "%s %s", tc.from, tc.rtype)
	}
}

func TestParseDate(t *testing.T) {
	got, ok := parseDate("2024-03-05")
	assert.True(t, ok)
	assert.Equal(t, day("2024-03-05"), got)

	got, ok = parseDate("2024-03-05T10:30:00")
	assert.True(t, ok)
	assert.Equal(t, day("2024-03-05"), got)

	for _, raw := range []string{"", "05/03/2024", "2024-13-01", "2024-3-5", "tomorrow"} {
		_, ok := parseDate(raw)
		assert.False(t, ok, raw)
	}
}
