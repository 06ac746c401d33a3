package util

import (
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
)

// ResolvePeriod maps a symbolic period to a concrete [start, end) window relative to now.
// Calendar periods run from the start of the month/quarter/year through now. A custom
// period needs both bounds; its end date is inclusive, so the window ends the day after.
// Calendar boundaries are taken in UTC whatever the location of now.
func ResolvePeriod(period domain.Period, now time.Time, customStart, customEnd *time.Time) (domain.Window, error) {
	now = now.UTC()
	switch period {
	case domain.PeriodMonth:
		return domain.Window{Start: StartOfMonth(now), End: now}, nil
	case domain.PeriodQuarter:
		return domain.Window{Start: StartOfQuarter(now), End: now}, nil
	case domain.PeriodYear:
		return domain.Window{Start: StartOfYear(now), End: now}, nil
	case domain.PeriodCustom:
		if customStart == nil || customEnd == nil {
			return domain.Window{}, fmt.Errorf("%w: custom period requires start and end dates", domain.ErrInvalidPeriod)
		}
		start := StartOfDay(*customStart)
		end := StartOfDay(*customEnd).AddDate(0, 0, 1)
		if !start.Before(end) {
			return domain.Window{}, fmt.Errorf("%w: end date before start date", domain.ErrInvalidPeriod)
		}
		return domain.Window{Start: start, End: end}, nil
	}
	return domain.Window{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidPeriod, period)
}
