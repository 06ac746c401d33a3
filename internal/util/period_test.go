package util

import (
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePeriod_CalendarPeriods(t *testing.T) {
	now := time.Date(2026, time.August, 20, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		period    domain.Period
		wantStart time.Time
	}{
		{domain.PeriodMonth, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{domain.PeriodQuarter, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{domain.PeriodYear, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			w, err := ResolvePeriod(tt.period, now, nil, nil)
			require.NoError(t, err)
			assert.True(t, w.Start.Equal(tt.wantStart), "start = %s", w.Start)
			assert.True(t, w.End.Equal(now), "end = %s", w.End)
		})
	}
}

func TestResolvePeriod_FirstDayOfQuarter(t *testing.T) {
	now := time.Date(2026, time.October, 1, 0, 0, 1, 0, time.UTC)

	w, err := ResolvePeriod(domain.PeriodQuarter, now, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, time.October, w.Start.Month())
	assert.False(t, w.Empty())
}

func TestResolvePeriod_NonUTCClockUsesUTCBoundaries(t *testing.T) {
	newYork := time.FixedZone("EDT", -4*60*60)
	// 2024-10-01 02:00 UTC is still September 30 in New York
	now := time.Date(2024, time.October, 19, 12, 0, 0, 0, newYork)

	w, err := ResolvePeriod(domain.PeriodMonth, now, nil, nil)

	require.NoError(t, err)
	assert.True(t, w.Start.Equal(time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)), "start = %s", w.Start)
	assert.True(t, w.Contains(time.Date(2024, time.October, 1, 2, 0, 0, 0, time.UTC)))
}

func TestResolvePeriod_Custom(t *testing.T) {
	now := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)

	w, err := ResolvePeriod(domain.PeriodCustom, now, &start, &end)

	require.NoError(t, err)
	assert.True(t, w.Start.Equal(start))
	assert.True(t, w.End.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolvePeriod_CustomMissingBound(t *testing.T) {
	now := time.Now()
	start := now.AddDate(0, -1, 0)

	_, err := ResolvePeriod(domain.PeriodCustom, now, &start, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
	assert.True(t, errors.Is(err, domain.ErrInvalidCondition))

	_, err = ResolvePeriod(domain.PeriodCustom, now, nil, &start)
	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
}

func TestResolvePeriod_CustomReversedBounds(t *testing.T) {
	now := time.Now()
	start := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	_, err := ResolvePeriod(domain.PeriodCustom, now, &start, &end)

	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
}

func TestResolvePeriod_Unknown(t *testing.T) {
	_, err := ResolvePeriod(domain.Period("fortnight"), time.Now(), nil, nil)

	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
}
