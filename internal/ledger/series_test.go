package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDailySeries(t *testing.T) {
	window := CycleWindow{FromDate: "2026-03-01", ToDate: "2026-03-10"}
	byDay := map[string][2]int64{
		"2026-03-01": {1000, 0},
		"2026-03-04": {0, 250},
		"2026-03-10": {200, 100},
	}

	series := BuildDailySeries(window, byDay)
	assert.Len(t, series, 10)

	assert.Equal(t, DailyPoint{Date: "2026-03-01", TotalIn: 1000, TotalOut: 0, Net: 1000}, series[0])
	assert.Equal(t, DailyPoint{Date: "2026-03-02", TotalIn: 0, TotalOut: 0, Net: 0}, series[1])
	assert.Equal(t, DailyPoint{Date: "2026-03-04", TotalIn: 0, TotalOut: 250, Net: -250}, series[3])
	assert.Equal(t, DailyPoint{Date: "2026-03-10", TotalIn: 200, TotalOut: 100, Net: 100}, series[9])
}

func TestBuildWeeklySeries(t *testing.T) {
	window := CycleWindow{FromDate: "2026-03-01", ToDate: "2026-03-10"}
	daily := BuildDailySeries(window, map[string][2]int64{
		"2026-03-01": {700, 0},
		"2026-03-07": {0, 300},
		"2026-03-08": {0, 100},
	})

	weekly := BuildWeeklySeries(daily)
	assert.Len(t, weekly, 2)

	// First full week: Mar 1-7
	assert.Equal(t, WeeklyPoint{From: "2026-03-01", To: "2026-03-07", TotalIn: 700, TotalOut: 300, Net: 400}, weekly[0])
	// Short trailing bucket: Mar 8-10
	assert.Equal(t, WeeklyPoint{From: "2026-03-08", To: "2026-03-10", TotalIn: 0, TotalOut: 100, Net: -100}, weekly[1])
}
