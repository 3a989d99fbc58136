package market

import "time"

// Day is one trading day's slice of the parent series.
type Day struct {
	Date  time.Time // UTC midnight
	Start int       // index of first bar
	End   int       // index one past last bar
}

// SessionStart is the timestamp of the day's first bar.
func (d Day) SessionStart(s *Series) time.Time { return s.Bars[d.Start].Time }

// Series is one instrument's full bar history plus indicator arrays shared
// by the factor, opening-range and breakout stages. Arrays are aligned with
// Bars; entries before an indicator's warmup hold zero. Value at index i
// only uses bars[0..i], so reading Series[i] inside the bar loop never
// looks ahead.
type Series struct {
	Symbol string
	Bars   []Bar
	Days   []Day

	ATRs    map[int][]float64 // Wilder ATR per configured period
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
	VWAP    []float64 // session-anchored, resets each day
	VolSMA  []float64 // simple average volume, excludes current bar
}

// ATRValue returns the Wilder ATR for the given period at bar i, or zero
// when the period was not configured or the bar is inside warmup. Callers
// treat zero as "no ATR" and degrade to their neutral behavior.
func (s *Series) ATRValue(period, i int) float64 {
	arr, ok := s.ATRs[period]
	if !ok || i < 0 || i >= len(arr) {
		return 0
	}
	return arr[i]
}

// DayOf returns the Day containing bar index i.
func (s *Series) DayOf(i int) Day {
	for _, d := range s.Days {
		if i >= d.Start && i < d.End {
			return d
		}
	}
	return Day{}
}

// splitDays indexes day boundaries by UTC calendar date.
func splitDays(bars []Bar) []Day {
	var days []Day
	for i := 0; i < len(bars); i++ {
		date := bars[i].Date()
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			if len(days) > 0 {
				days[len(days)-1].End = i
			}
			days = append(days, Day{Date: date, Start: i})
		}
	}
	if len(days) > 0 {
		days[len(days)-1].End = len(bars)
	}
	return days
}
