package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMonth(t *testing.T) {
	year, month, err := ParseMonth("2026-02")
	assert.NoError(t, err)
	assert.Equal(t, 2026, year)
	assert.Equal(t, time.February, month)

	_, _, err = ParseMonth("2026-2")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = ParseMonth("February 2026")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPrevMonth(t *testing.T) {
	assert.Equal(t, "2026-02", PrevMonth("2026-03"))
	assert.Equal(t, "2025-12", PrevMonth("2026-01"))
}

func TestParseEventTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 45, 123456789, time.UTC)

	// Empty means now, truncated to seconds.
	got, err := ParseEventTime("", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 45, 0, time.UTC), got)

	// RFC 3339 with offset normalizes to UTC.
	got, err = ParseEventTime("2026-03-01T10:00:00+02:00", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), got)

	// Local-style timestamps without a zone.
	got, err = ParseEventTime("2026-03-01T10:00", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got)

	// Bare day means midnight.
	got, err = ParseEventTime("2026-03-01", now)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseEventTime("yesterday", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClampDay(t *testing.T) {
	assert.Equal(t, 28, ClampDay(2026, time.February, 31))
	assert.Equal(t, 29, ClampDay(2024, time.February, 31))
	assert.Equal(t, 30, ClampDay(2026, time.April, 31))
	assert.Equal(t, 15, ClampDay(2026, time.April, 15))
}

func TestMonthRange(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	// Test case 1: Completed cycle. March with payday 25 runs from Feb 25
	// through Mar 24.
	window, err := MonthRange("2026-03", 25, 25, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-02-25", window.FromDate)
	assert.Equal(t, "2026-03-24", window.ToDate)
	assert.Equal(t, time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC), window.From)
	assert.Equal(t, time.Date(2026, 3, 24, 23, 59, 59, 999000000, time.UTC), window.To)

	// Test case 2: Payday 31 clamps in short months.
	window, err = MonthRange("2026-02", 31, 31, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-01-31", window.FromDate)
	assert.Equal(t, "2026-02-27", window.ToDate)

	// Test case 3: Differing previous-month payday shifts the open.
	window, err = MonthRange("2026-03", 25, 10, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-02-10", window.FromDate)
	assert.Equal(t, "2026-03-24", window.ToDate)

	// Test case 4: The still-open cycle is clamped to today.
	window, err = MonthRange("2026-06", 25, 25, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-05-25", window.FromDate)
	assert.Equal(t, "2026-06-15", window.ToDate)

	_, err = MonthRange("bogus", 25, 25, now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExportRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	// Payday has not happened yet this month, so the window anchors to the
	// previous month's payday.
	window, err := ExportRange(25, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-02-25", window.FromDate)
	assert.Equal(t, "2026-03-10", window.ToDate)

	// Payday already passed.
	window, err = ExportRange(5, now)
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-05", window.FromDate)

	_, err = ExportRange(0, now)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ExportRange(32, now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeBudgetStatus(t *testing.T) {
	limit := func(v int64) *int64 { return &v }

	// Test case 1: No limit configured reports nothing
	pct, status, remaining := ComputeBudgetStatus(nil, 500)
	assert.Nil(t, pct)
	assert.Empty(t, status)
	assert.Nil(t, remaining)

	// Test case 2: Under 80% is ok
	pct, status, remaining = ComputeBudgetStatus(limit(1000), 500)
	assert.Equal(t, 50, *pct)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, int64(500), *remaining)

	// Test case 3: 80% and up warns
	pct, status, _ = ComputeBudgetStatus(limit(1000), 800)
	assert.Equal(t, 80, *pct)
	assert.Equal(t, StatusWarn, status)

	// Test case 4: At or over the limit is critical
	pct, status, remaining = ComputeBudgetStatus(limit(1000), 1200)
	assert.Equal(t, 120, *pct)
	assert.Equal(t, StatusCritical, status)
	assert.Equal(t, int64(-200), *remaining)

	// Test case 5: Zero limit with spend is critical
	pct, status, _ = ComputeBudgetStatus(limit(0), 100)
	assert.Equal(t, 100, *pct)
	assert.Equal(t, StatusCritical, status)

	// Test case 6: Rounding sits on the boundary
	pct, status, _ = ComputeBudgetStatus(limit(1000), 795)
	assert.Equal(t, 80, *pct)
	assert.Equal(t, StatusWarn, status)
}

func TestSearchPattern(t *testing.T) {
	assert.Equal(t, "", SearchPattern("   "))
	assert.Equal(t, "%groceries%", SearchPattern("  Groceries "))

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	pattern := SearchPattern(string(long))
	assert.Len(t, pattern, 66)
}
