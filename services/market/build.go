package market

import (
	"fmt"

	"orb-backtest/services/indicators"
)

// IndicatorConfig carries the periods the shared Series arrays are built
// with. ATRPeriods lists every distinct period the opening-range builder,
// breakout buffer and stop capping read; ADX feeds both the trend factor
// and the scorer's regime gate.
type IndicatorConfig struct {
	ATRPeriods   []int
	ADXPeriod    int
	VolumeLookup int
}

// NewSeries indexes days and precomputes every indicator array the bar
// loop reads. Bars must already be sorted, deduplicated and in UTC.
func NewSeries(symbol string, bars []Bar, cfg IndicatorConfig) (*Series, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%s: non-increasing timestamp at bar %d (%s)", symbol, i, bars[i].Time)
		}
	}

	n := len(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	s := &Series{
		Symbol: symbol,
		Bars:   bars,
		Days:   splitDays(bars),
	}
	anchors := make([]int, len(s.Days))
	for i, d := range s.Days {
		anchors[i] = d.Start
	}

	s.ATRs = make(map[int][]float64, len(cfg.ATRPeriods))
	for _, p := range cfg.ATRPeriods {
		if p > 0 {
			s.ATRs[p] = indicators.ATR(highs, lows, closes, p)
		}
	}
	s.ADX, s.PlusDI, s.MinusDI = indicators.ADX(highs, lows, closes, cfg.ADXPeriod)
	s.VWAP = indicators.AnchoredVWAP(highs, lows, closes, volumes, anchors)

	s.VolSMA = make([]float64, n)
	for i := range s.VolSMA {
		s.VolSMA[i] = indicators.TrailingSMA(volumes, i, cfg.VolumeLookup)
	}
	return s, nil
}
