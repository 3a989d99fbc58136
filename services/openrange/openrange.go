// Package openrange builds the per-day opening range that anchors breakout
// thresholds: an adaptive-duration window at session start, validated
// against ATR.
package openrange

import (
	"math"
	"time"

	"go.uber.org/zap"

	"orb-backtest/services/market"
)

type Validity int

const (
	Valid Validity = iota
	TooNarrow
	TooWide
	InsufficientData
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "VALID"
	case TooNarrow:
		return "TOO_NARROW"
	case TooWide:
		return "TOO_WIDE"
	case InsufficientData:
		return "INSUFFICIENT_DATA"
	}
	return "UNKNOWN"
}

// Range is the immutable opening range for one (symbol, date). Built once
// by the Builder and never mutated afterwards.
type Range struct {
	Symbol        string
	Date          time.Time
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	High          float64
	Low           float64
	Width         float64
	Validity      Validity
	ATR           float64
	MinWidth      float64
	MaxWidth      float64
	NormalizedVol float64
	BarCount      int
}

// IsValid reports whether breakouts may anchor on this range.
func (r *Range) IsValid() bool { return r.Validity == Valid }

type Config struct {
	BaseMinutes    int     `yaml:"base_minutes"`
	ShortMinutes   int     `yaml:"short_minutes"`
	LongMinutes    int     `yaml:"long_minutes"`
	Adaptive       bool    `yaml:"adaptive"`
	LowNormVol     float64 `yaml:"low_norm_vol"`
	HighNormVol    float64 `yaml:"high_norm_vol"`
	MinATRMult     float64 `yaml:"min_atr_mult"`
	MaxATRMult     float64 `yaml:"max_atr_mult"`
	ATRPeriod      int     `yaml:"atr_period"`
	MinBarCoverage float64 `yaml:"min_bar_coverage"`
}

type Builder struct {
	cfg             config
	intervalMinutes int
	log             *zap.Logger
}

// config is Config with defaults applied.
type config struct {
	Config
}

func NewBuilder(cfg Config, intervalMinutes int, log *zap.Logger) *Builder {
	c := config{cfg}
	if c.MinBarCoverage <= 0 {
		c.MinBarCoverage = 0.8
	}
	return &Builder{cfg: c, intervalMinutes: intervalMinutes, log: log}
}

// BuildAll constructs one Range per day in the series, keyed by UTC date.
func (b *Builder) BuildAll(s *market.Series) map[time.Time]*Range {
	out := make(map[time.Time]*Range, len(s.Days))
	for di, day := range s.Days {
		r := b.buildDay(s, di, day)
		out[day.Date] = r
		if b.log != nil {
			b.log.Debug("opening range built",
				zap.String("symbol", s.Symbol),
				zap.Time("date", day.Date),
				zap.String("validity", r.Validity.String()),
				zap.Float64("high", r.High),
				zap.Float64("low", r.Low),
				zap.Duration("duration", r.Duration))
		}
	}
	return out
}

func (b *Builder) buildDay(s *market.Series, dayIdx int, day market.Day) *Range {
	sessionStart := s.Bars[day.Start].Time
	duration := b.duration(s, dayIdx)
	end := sessionStart.Add(duration)

	r := &Range{
		Symbol:        s.Symbol,
		Date:          day.Date,
		Start:         sessionStart,
		End:           end,
		Duration:      duration,
		NormalizedVol: b.normalizedVol(s, dayIdx),
	}

	hi := math.Inf(-1)
	lo := math.Inf(1)
	count := 0
	for i := day.Start; i < day.End && s.Bars[i].Time.Before(end); i++ {
		bar := s.Bars[i]
		if bar.High > hi {
			hi = bar.High
		}
		if bar.Low < lo {
			lo = bar.Low
		}
		count++
	}

	expected := int(duration.Minutes()) / b.intervalMinutes
	r.BarCount = count
	if expected <= 0 || float64(count) < b.cfg.MinBarCoverage*float64(expected) {
		r.Validity = InsufficientData
		return r
	}

	r.High = hi
	r.Low = lo
	r.Width = hi - lo
	r.Validity = b.validate(s, day, count, r)
	return r
}

// duration picks the window length. Adaptive mode keys off normalized
// volatility from the previous day; without history it stays on the base
// duration.
func (b *Builder) duration(s *market.Series, dayIdx int) time.Duration {
	minutes := b.cfg.BaseMinutes
	if b.cfg.Adaptive {
		nv := b.normalizedVol(s, dayIdx)
		switch {
		case nv > 0 && nv < b.cfg.LowNormVol:
			minutes = b.cfg.ShortMinutes
		case nv > b.cfg.HighNormVol:
			minutes = b.cfg.LongMinutes
		}
	}
	return time.Duration(minutes) * time.Minute
}

// normalizedVol is the previous day's closing ATR over the previous day's
// full range. Zero when either input degrades, which keeps the duration on
// its base value.
func (b *Builder) normalizedVol(s *market.Series, dayIdx int) float64 {
	if dayIdx == 0 {
		return 0
	}
	prev := s.Days[dayIdx-1]
	atr := s.ATRValue(b.cfg.ATRPeriod, prev.End-1)
	if atr <= 0 {
		return 0
	}
	hi := math.Inf(-1)
	lo := math.Inf(1)
	for i := prev.Start; i < prev.End; i++ {
		if s.Bars[i].High > hi {
			hi = s.Bars[i].High
		}
		if s.Bars[i].Low < lo {
			lo = s.Bars[i].Low
		}
	}
	dayRange := hi - lo
	if dayRange <= 0 {
		return 0
	}
	return atr / dayRange
}

// validate classifies the width against the ATR band. With less than a
// full ATR period of history (or a degraded zero ATR) the filter is
// skipped and the range counts as valid.
func (b *Builder) validate(s *market.Series, day market.Day, windowBars int, r *Range) Validity {
	lastIdx := day.Start + windowBars - 1
	if lastIdx+1 < b.cfg.ATRPeriod {
		return Valid
	}
	atr := s.ATRValue(b.cfg.ATRPeriod, lastIdx)
	if atr <= 0 {
		return Valid
	}
	r.ATR = atr
	r.MinWidth = b.cfg.MinATRMult * atr
	r.MaxWidth = b.cfg.MaxATRMult * atr
	switch {
	case r.Width < r.MinWidth:
		return TooNarrow
	case r.Width > r.MaxWidth:
		return TooWide
	}
	return Valid
}
