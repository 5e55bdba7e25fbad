package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FallbackPaydayDay applies when a user has no default payday configured.
const FallbackPaydayDay = 25

// Budget status levels.
const (
	StatusOK       = "ok"
	StatusWarn     = "warn"
	StatusCritical = "critical"
)

// CycleWindow is a resolved payday-anchored reporting window. FromDate and
// ToDate are the calendar days (YYYY-MM-DD); From and To are the inclusive
// UTC instants covering those days.
type CycleWindow struct {
	FromDate string    `json:"from"`
	ToDate   string    `json:"to"`
	From     time.Time `json:"-"`
	To       time.Time `json:"-"`
}

// ParseMonth validates a YYYY-MM month string.
func ParseMonth(month string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month must be YYYY-MM", ErrValidation)
	}
	return t.Year(), t.Month(), nil
}

// PrevMonth returns the month preceding a YYYY-MM month string.
func PrevMonth(month string) string {
	year, m, err := ParseMonth(month)
	if err != nil {
		return month
	}
	t := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Format("2006-01")
}

// ParseDate parses a YYYY-MM-DD day into a UTC instant, at midnight or at
// the last millisecond of the day.
func ParseDate(date string, endOfDay bool) (time.Time, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

// ParseEventTime parses a transaction's effective timestamp. Full RFC 3339
// timestamps and bare days are both accepted; empty input means now.
// Sub-second precision is dropped so same-payload retries land on the same
// instant.
func ParseEventTime(value string, now time.Time) (time.Time, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return now.UTC().Truncate(time.Second), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return ParseDate(cleaned, false)
}

// ClampDay caps a day-of-month at the month's actual length, so payday 31
// resolves to Feb 28/29, Apr 30 and so on.
func ClampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// MonthRange resolves the payday cycle for a month: the window opens on the
// previous month's payday and closes the day before this month's payday.
// The close is clamped to today so the still-open current cycle only
// reports elapsed days. prevPaydayDay covers months whose preceding month
// had its own override.
func MonthRange(month string, paydayDay, prevPaydayDay int, now time.Time) (CycleWindow, error) {
	year, m, err := ParseMonth(month)
	if err != nil {
		return CycleWindow{}, err
	}
	payday := time.Date(year, m, ClampDay(year, m, paydayDay), 0, 0, 0, 0, time.UTC)

	prev := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	prevPayday := time.Date(prev.Year(), prev.Month(), ClampDay(prev.Year(), prev.Month(), prevPaydayDay), 0, 0, 0, 0, time.UTC)

	start := prevPayday
	end := payday.AddDate(0, 0, -1)
	today := now.UTC().Truncate(24 * time.Hour)
	if end.After(today) {
		end = today
	}
	return newCycleWindow(start, end), nil
}

// ExportRange resolves the most recently completed payday window ending
// today, anchored to a day-of-month: from the last payday on or before
// today through today.
func ExportRange(day int, now time.Time) (CycleWindow, error) {
	if day < 1 || day > 31 {
		return CycleWindow{}, fmt.Errorf("%w: day must be between 1 and 31", ErrValidation)
	}
	today := now.UTC().Truncate(24 * time.Hour)
	paydayThis := time.Date(today.Year(), today.Month(), ClampDay(today.Year(), today.Month(), day), 0, 0, 0, 0, time.UTC)

	lastPayday := paydayThis
	if !today.After(paydayThis) {
		prev := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		lastPayday = time.Date(prev.Year(), prev.Month(), ClampDay(prev.Year(), prev.Month(), day), 0, 0, 0, 0, time.UTC)
	}
	return newCycleWindow(lastPayday, today), nil
}

func newCycleWindow(start, end time.Time) CycleWindow {
	return CycleWindow{
		FromDate: start.Format("2006-01-02"),
		ToDate:   end.Format("2006-01-02"),
		From:     start,
		To:       end.Add(24*time.Hour - time.Millisecond),
	}
}

// ComputeBudgetStatus derives the display status for a budgeted amount.
// A nil limit reports nothing at all; a zero (or negative) limit with any
// usage is critical. Otherwise percentage is rounded and bucketed.
func ComputeBudgetStatus(limit *int64, used int64) (pct *int, status string, remaining *int64) {
	if limit == nil {
		return nil, "", nil
	}
	rem := *limit - used
	if *limit <= 0 {
		p := 100
		return &p, StatusCritical, &rem
	}
	p := int(math.Round(float64(used) / float64(*limit) * 100))
	switch {
	case p >= 100:
		status = StatusCritical
	case p >= 80:
		status = StatusWarn
	default:
		status = StatusOK
	}
	return &p, status, &rem
}

// SearchPattern normalizes a ledger search query into an ILIKE pattern.
// Empty or blank input means no filtering.
func SearchPattern(query string) string {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return "%" + strings.ToLower(cleaned) + "%"
}
