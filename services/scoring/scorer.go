// Package scoring aggregates factor signals into weighted directional
// confluence scores and applies the trend-regime pass gate.
package scoring

import (
	"go.uber.org/zap"

	"orb-backtest/services/factors"
	"orb-backtest/services/market"
)

// Weights holds one weight per factor kind. A struct rather than a map so
// a new factor kind cannot silently score at zero.
type Weights struct {
	RelativeVolume float64 `yaml:"relative_volume"`
	PriceAction    float64 `yaml:"price_action"`
	ValueArea      float64 `yaml:"value_area"`
	VWAP           float64 `yaml:"vwap"`
	ADX            float64 `yaml:"adx"`
}

func (w Weights) For(k factors.Kind) float64 {
	switch k {
	case factors.RelativeVolume:
		return w.RelativeVolume
	case factors.PriceAction:
		return w.PriceAction
	case factors.ValueArea:
		return w.ValueArea
	case factors.VWAPAlign:
		return w.VWAP
	case factors.TrendStrength:
		return w.ADX
	}
	return 0
}

type Config struct {
	Enabled           bool    `yaml:"enabled"`
	Weights           Weights `yaml:"weights"`
	BaseRequired      float64 `yaml:"base_required"`
	WeakTrendRequired float64 `yaml:"weak_trend_required"`
	ADXThreshold      float64 `yaml:"adx_threshold"`
}

// Score is the per-bar aggregate. Signals holds every evaluated factor's
// output (neutral when a factor failed), keyed by the closed Kind enum.
type Score struct {
	Long      float64
	Short     float64
	LongPass  bool
	ShortPass bool
	Required  float64
	WeakTrend bool
	Signals   map[factors.Kind]factors.Signal
}

type Scorer struct {
	cfg     Config
	factors []factors.Factor
	hasADX  bool
	log     *zap.Logger
}

func NewScorer(cfg Config, fs []factors.Factor, log *zap.Logger) *Scorer {
	s := &Scorer{cfg: cfg, factors: fs, log: log}
	for _, f := range fs {
		if f.Kind() == factors.TrendStrength {
			s.hasADX = true
		}
	}
	return s
}

// Evaluate scores bar i. Factor failures degrade to the neutral signal;
// they never abort the bar. With scoring disabled both directions pass
// unconditionally, which is the filter-free control configuration.
func (sc *Scorer) Evaluate(s *market.Series, i int) Score {
	out := Score{Signals: make(map[factors.Kind]factors.Signal, len(sc.factors))}
	if !sc.cfg.Enabled {
		out.LongPass = true
		out.ShortPass = true
		return out
	}

	for _, f := range sc.factors {
		sig, err := f.Calculate(s, i)
		if err != nil {
			sig = factors.Signal{}
			if sc.log != nil {
				sc.log.Debug("factor degraded to neutral",
					zap.String("factor", f.Kind().String()),
					zap.Int("bar", i),
					zap.Error(err))
			}
		}
		out.Signals[f.Kind()] = sig
		w := sc.cfg.Weights.For(f.Kind())
		if sig.Long {
			out.Long += w
		}
		if sig.Short {
			out.Short += w
		}
	}

	out.WeakTrend = sc.weakTrend(s, i)
	out.Required = sc.cfg.BaseRequired
	if out.WeakTrend {
		out.Required = sc.cfg.WeakTrendRequired
	}
	out.LongPass = out.Long >= out.Required
	out.ShortPass = out.Short >= out.Required
	return out
}

// weakTrend reports whether the regime gate should demand the higher
// weak-trend score: ADX disabled entirely, not yet warmed up, or below
// its threshold.
func (sc *Scorer) weakTrend(s *market.Series, i int) bool {
	if !sc.hasADX {
		return true
	}
	return s.ADX[i] < sc.cfg.ADXThreshold
}
