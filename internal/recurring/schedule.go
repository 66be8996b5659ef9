// Package recurring implements template storage, due-date advancement
// and catch-up generation for scheduled expenses.
package recurring

import (
	"time"

	"tally/internal/core"
)

// Step advances a due-date cursor by one period of the given frequency.
// Month-based frequencies clamp to the last day of a shorter target
// month instead of rolling into the next one, so a cursor on Jan 31
// lands on Feb 28 (or 29), and a cursor on Feb 28 steps to Mar 28.
func Step(d core.Date, f core.Frequency) core.Date {
	switch f {
	case core.Daily:
		return d.AddDays(1)
	case core.Weekly:
		return d.AddDays(7)
	case core.FourWeekly:
		return d.AddDays(28)
	case core.Monthly:
		return addMonthsClamped(d, 1)
	case core.Quarterly:
		return addMonthsClamped(d, 3)
	case core.Yearly:
		return addYearsClamped(d, 1)
	}
	return d
}

// addMonthsClamped shifts the date by n months, clamping the day to the
// target month's length. Go's AddDate normalizes Jan 31 + 1 month into
// Mar 2/3, which is wrong for billing dates.
func addMonthsClamped(d core.Date, n int) core.Date {
	year, month, day := d.Date()
	m := int(month) + n
	year += (m - 1) / 12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		year--
	}
	if last := daysIn(year, time.Month(m)); day > last {
		day = last
	}
	return core.NewDate(year, m, day)
}

func addYearsClamped(d core.Date, n int) core.Date {
	year, month, day := d.Date()
	year += n
	if last := daysIn(year, month); day > last {
		day = last
	}
	return core.NewDate(year, int(month), day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
