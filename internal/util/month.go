package util

import "time"

// StartOfMonth returns midnight of the first day of t's month, in t's location
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfQuarter returns midnight of the first day of the 3-month block containing t
func StartOfQuarter(t time.Time) time.Time {
	firstMonth := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), firstMonth, 1, 0, 0, 0, 0, t.Location())
}

// StartOfYear returns midnight of January 1 of t's year
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// StartOfDay truncates t to midnight in its location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddMonths moves t forward by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	target := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return CalculateActualDate(target, t.Day())
}

// CalculateActualDate returns the date for a target day in the given month,
// handling months with fewer days (e.g., day 31 in February returns Feb 28/29)
func CalculateActualDate(month time.Time, targetDay int) time.Time {
	// Last day of month is day 0 of the next month
	lastDay := time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, month.Location()).Day()

	actualDay := targetDay
	if actualDay > lastDay {
		actualDay = lastDay
	}

	return time.Date(month.Year(), month.Month(), actualDay, month.Hour(), month.Minute(), month.Second(), month.Nanosecond(), month.Location())
}
