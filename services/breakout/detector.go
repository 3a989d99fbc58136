// Package breakout detects opening-range breakouts: OR bound + buffer
// crossed intrabar, gated by the confluence scorer.
package breakout

import (
	"time"

	"orb-backtest/services/market"
	"orb-backtest/services/openrange"
	"orb-backtest/services/scoring"
)

type Config struct {
	BufferOffset   float64 `yaml:"buffer_offset"`
	UseATRBuffer   bool    `yaml:"use_atr_buffer"`
	ATRMult        float64 `yaml:"atr_mult"`
	ATRPeriod      int     `yaml:"atr_period"`
	RequireValidOR bool    `yaml:"require_valid_or"`
	// SecondChanceMinutes is accepted for config compatibility but the
	// re-break retest path is not implemented; IsSecondChance is always
	// false on emitted signals.
	SecondChanceMinutes int `yaml:"second_chance_minutes"`
}

// Signal is emitted at most once per bar when no position is open.
type Signal struct {
	Symbol       string
	Time         time.Time
	BarIndex     int
	Direction    market.Direction
	TriggerPrice float64
	ORHigh       float64
	ORLow        float64
	Buffer       float64
	Score        scoring.Score
	// Inactive retest feature; serialized for forward compatibility.
	IsSecondChance bool
}

type Detector struct {
	cfg    Config
	scorer *scoring.Scorer
}

func NewDetector(cfg Config, scorer *scoring.Scorer) *Detector {
	return &Detector{cfg: cfg, scorer: scorer}
}

// Detect checks bar i against the day's opening range. Nil means no
// signal: before the OR window closes, on an invalid OR, when neither
// threshold is crossed, when both are crossed in the same bar (ambiguous
// direction), or when the confluence gate fails.
func (d *Detector) Detect(s *market.Series, i int, or *openrange.Range) *Signal {
	if or == nil || or.Validity == openrange.InsufficientData {
		return nil
	}
	bar := s.Bars[i]
	if bar.Time.Before(or.End) {
		return nil
	}
	if d.cfg.RequireValidOR && !or.IsValid() {
		return nil
	}

	buffer := d.cfg.BufferOffset
	if d.cfg.UseATRBuffer {
		buffer += d.cfg.ATRMult * s.ATRValue(d.cfg.ATRPeriod, i)
	}
	longTrigger := or.High + buffer
	shortTrigger := or.Low - buffer

	longHit := bar.High >= longTrigger
	shortHit := bar.Low <= shortTrigger
	if longHit == shortHit {
		// neither, or both in one bar: ambiguous, no signal
		return nil
	}

	score := d.scorer.Evaluate(s, i)
	sig := &Signal{
		Symbol:   s.Symbol,
		Time:     bar.Time,
		BarIndex: i,
		ORHigh:   or.High,
		ORLow:    or.Low,
		Buffer:   buffer,
		Score:    score,
	}
	if longHit {
		if !score.LongPass {
			return nil
		}
		sig.Direction = market.Long
		sig.TriggerPrice = longTrigger
	} else {
		if !score.ShortPass {
			return nil
		}
		sig.Direction = market.Short
		sig.TriggerPrice = shortTrigger
	}
	return sig
}
