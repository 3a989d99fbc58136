package market

import "time"

// Bar is a single OHLCV bar. Timestamps are UTC and strictly increasing
// within one symbol; the data layer deduplicates before bars reach here.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Date returns the UTC calendar date the bar belongs to.
func (b Bar) Date() time.Time {
	return time.Date(b.Time.Year(), b.Time.Month(), b.Time.Day(), 0, 0, 0, 0, time.UTC)
}

type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// Sign is +1 for long, -1 for short. Keeps stop/target arithmetic branch-free.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}
