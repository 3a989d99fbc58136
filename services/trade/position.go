// Package trade owns the position lifecycle: stop placement, partial
// targets, breakeven and exit accounting in R-multiples.
package trade

import (
	"time"

	"orb-backtest/services/market"
	"orb-backtest/services/scoring"
)

type State int

const (
	Open State = iota
	Closed
)

type ExitReason string

const (
	ExitStop       ExitReason = "STOP"
	ExitT1         ExitReason = "T1"
	ExitT2         ExitReason = "T2"
	ExitRunner     ExitReason = "RUNNER"
	ExitTarget     ExitReason = "TARGET"
	ExitSessionEnd ExitReason = "SESSION_END"
)

// Fill is one immutable exit record. Every exit is a Fill, including the
// final remainder close, so quantity conservation holds by construction:
// sum of fill quantities plus remaining always equals the original
// quantity.
type Fill struct {
	Time     time.Time
	Price    float64
	Quantity float64
	Reason   ExitReason
	R        float64
}

// Target is one take-profit level with its allocated quantity.
type Target struct {
	Price    float64
	Quantity float64
	R        float64
	Reason   ExitReason
	Hit      bool
}

// Position is the engine's central mutable aggregate while open and an
// immutable record once State is Closed.
type Position struct {
	ID        string
	Symbol    string
	Direction market.Direction

	EntryTime  time.Time
	EntryPrice float64
	Quantity   float64
	Remaining  float64

	InitialStop float64
	Stop        float64
	InitialRisk float64
	StopMode    StopMode

	Targets        []Target
	Fills          []Fill
	BreakevenMoved bool

	State      State
	ExitTime   time.Time
	ExitPrice  float64
	ExitReason ExitReason

	// Excursions in R. MFE never drops below zero, MAE never rises above.
	MFE float64
	MAE float64

	RealizedR float64

	// Entry context snapshot for reporting.
	ORHigh float64
	ORLow  float64
	Score  scoring.Score
	// Carried from the signal; the retest feature is inactive so this
	// stays false.
	IsSecondChance bool
}

// R converts a price to this position's R-multiple.
func (p *Position) R(price float64) float64 {
	if p.InitialRisk == 0 {
		return 0
	}
	return p.Direction.Sign() * (price - p.EntryPrice) / p.InitialRisk
}

// FullStopLoss reports whether the position died on its stop without a
// single target partial. This is the governance definition of a loss that
// counts toward consecutive-loss lockout.
func (p *Position) FullStopLoss() bool {
	if p.ExitReason != ExitStop {
		return false
	}
	for _, f := range p.Fills {
		if f.Reason != ExitStop {
			return false
		}
	}
	return true
}

// recalcRealizedR is the quantity-weighted average R over every fill.
func (p *Position) recalcRealizedR() {
	if p.Quantity == 0 {
		return
	}
	var sum float64
	for _, f := range p.Fills {
		sum += f.R * f.Quantity
	}
	p.RealizedR = sum / p.Quantity
}
