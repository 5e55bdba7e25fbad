package ledger

import "time"

// DailyPoint is one calendar day's in/out totals.
type DailyPoint struct {
	Date     string `json:"date"`
	TotalIn  int64  `json:"totalIn"`
	TotalOut int64  `json:"totalOut"`
	Net      int64  `json:"net"`
}

// WeeklyPoint is a seven-day bucket of the daily series; the final bucket
// may be shorter when the window does not divide evenly.
type WeeklyPoint struct {
	From     string `json:"from"`
	To       string `json:"to"`
	TotalIn  int64  `json:"totalIn"`
	TotalOut int64  `json:"totalOut"`
	Net      int64  `json:"net"`
}

// BuildDailySeries expands sparse per-day totals into a dense series over
// the window, one point per calendar day including empty ones.
func BuildDailySeries(window CycleWindow, byDay map[string][2]int64) []DailyPoint {
	start, err := time.Parse("2006-01-02", window.FromDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse("2006-01-02", window.ToDate)
	if err != nil {
		return nil
	}

	series := make([]DailyPoint, 0, int(end.Sub(start).Hours()/24)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		totals := byDay[key]
		series = append(series, DailyPoint{
			Date:     key,
			TotalIn:  totals[0],
			TotalOut: totals[1],
			Net:      totals[0] - totals[1],
		})
	}
	return series
}

// BuildWeeklySeries folds a dense daily series into week buckets.
func BuildWeeklySeries(daily []DailyPoint) []WeeklyPoint {
	var series []WeeklyPoint
	for i := 0; i < len(daily); i += 7 {
		j := i + 7
		if j > len(daily) {
			j = len(daily)
		}
		point := WeeklyPoint{From: daily[i].Date, To: daily[j-1].Date}
		for _, d := range daily[i:j] {
			point.TotalIn += d.TotalIn
			point.TotalOut += d.TotalOut
		}
		point.Net = point.TotalIn - point.TotalOut
		series = append(series, point)
	}
	return series
}
