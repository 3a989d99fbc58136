package engine

import (
	"sort"
	"time"

	"orb-backtest/services/trade"
)

// Metrics are the aggregate run statistics in R-multiples.
type Metrics struct {
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64
	TotalR         float64
	AvgR           float64
	AvgWinR        float64
	AvgLossR       float64
	Expectancy     float64
	ProfitFactor   float64
	MaxWinStreak   int
	MaxLossStreak  int
	ORValid        int
	ORInvalid      int
	BlockedSignals int
	Rejected       int
}

// EquityPoint is one closed trade on the cumulative-R curve.
type EquityPoint struct {
	Time        time.Time
	Symbol      string
	TradeR      float64
	CumulativeR float64
}

// computeMetrics rolls all instruments' closed trades into the aggregate.
// Streaks are computed over trades ordered by exit time so they reflect
// the portfolio sequence, not per-symbol sequences.
func computeMetrics(instruments []*InstrumentResult) Metrics {
	var m Metrics
	var all []*trade.Position
	for _, ir := range instruments {
		all = append(all, ir.Trades...)
		m.ORValid += ir.ORValid
		m.ORInvalid += ir.ORInvalid
		m.BlockedSignals += ir.BlockedSignals
		m.Rejected += ir.Rejected
	}
	sortByExit(all)

	var winSum, lossSum float64
	winStreak, lossStreak := 0, 0
	for _, p := range all {
		r := p.RealizedR
		m.TotalR += r
		if r > 0 {
			m.Wins++
			winSum += r
			winStreak++
			lossStreak = 0
		} else {
			m.Losses++
			lossSum += -r
			lossStreak++
			winStreak = 0
		}
		if winStreak > m.MaxWinStreak {
			m.MaxWinStreak = winStreak
		}
		if lossStreak > m.MaxLossStreak {
			m.MaxLossStreak = lossStreak
		}
	}

	m.TotalTrades = len(all)
	if m.TotalTrades == 0 {
		return m
	}
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	m.AvgR = m.TotalR / float64(m.TotalTrades)
	if m.Wins > 0 {
		m.AvgWinR = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossR = lossSum / float64(m.Losses)
	}
	m.Expectancy = m.WinRate*m.AvgWinR - (1-m.WinRate)*m.AvgLossR
	if lossSum > 0 {
		m.ProfitFactor = winSum / lossSum
	} else if winSum > 0 {
		m.ProfitFactor = winSum
	}
	return m
}

// buildEquityCurve emits one point per closed trade, ordered by exit time.
func buildEquityCurve(instruments []*InstrumentResult) []EquityPoint {
	var all []*trade.Position
	for _, ir := range instruments {
		all = append(all, ir.Trades...)
	}
	sortByExit(all)

	curve := make([]EquityPoint, 0, len(all))
	var cum float64
	for _, p := range all {
		cum += p.RealizedR
		curve = append(curve, EquityPoint{
			Time:        p.ExitTime,
			Symbol:      p.Symbol,
			TradeR:      p.RealizedR,
			CumulativeR: cum,
		})
	}
	return curve
}

// sortByExit orders trades by exit time with symbol then entry time as
// deterministic tiebreakers.
func sortByExit(ps []*trade.Position) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].ExitTime.Equal(ps[j].ExitTime) {
			return ps[i].ExitTime.Before(ps[j].ExitTime)
		}
		if ps[i].Symbol != ps[j].Symbol {
			return ps[i].Symbol < ps[j].Symbol
		}
		return ps[i].EntryTime.Before(ps[j].EntryTime)
	})
}
