// Package factors implements the independent per-bar signal generators the
// confluence scorer aggregates. The factor set is closed: one Kind per
// concrete factor, so weight tables and signal maps are complete by
// construction.
package factors

import (
	"fmt"

	"orb-backtest/services/market"
)

type Kind int

const (
	RelativeVolume Kind = iota
	PriceAction
	ValueArea
	VWAPAlign
	TrendStrength

	numKinds
)

var kindNames = [numKinds]string{
	RelativeVolume: "relative_volume",
	PriceAction:    "price_action",
	ValueArea:      "value_area",
	VWAPAlign:      "vwap",
	TrendStrength:  "adx",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds lists every factor kind in evaluation order.
func Kinds() []Kind {
	return []Kind{RelativeVolume, PriceAction, ValueArea, VWAPAlign, TrendStrength}
}

// Signal is one factor's directional vote for a single bar. A factor that
// cannot evaluate (insufficient history) returns an error and the scorer
// treats it as the neutral signal.
type Signal struct {
	Long  bool
	Short bool
	Value float64
	Valid bool // Value is meaningful
}

// Factor evaluates one bar given the full history up to and including i.
type Factor interface {
	Kind() Kind
	Calculate(s *market.Series, i int) (Signal, error)
}

// Config enables factors and carries their tuning.
type Config struct {
	RelativeVolume RelVolConfig    `yaml:"relative_volume"`
	PriceAction    PatternConfig   `yaml:"price_action"`
	ValueArea      ValueAreaConfig `yaml:"value_area"`
	VWAP           VWAPConfig      `yaml:"vwap"`
	ADX            ADXConfig       `yaml:"adx"`
}

// Build returns the enabled factors in evaluation order.
func Build(cfg Config) []Factor {
	var out []Factor
	if cfg.RelativeVolume.Enabled {
		out = append(out, &relVolFactor{cfg: cfg.RelativeVolume})
	}
	if cfg.PriceAction.Enabled {
		out = append(out, &patternFactor{cfg: cfg.PriceAction})
	}
	if cfg.ValueArea.Enabled {
		out = append(out, &valueAreaFactor{cfg: cfg.ValueArea})
	}
	if cfg.VWAP.Enabled {
		out = append(out, &vwapFactor{})
	}
	if cfg.ADX.Enabled {
		out = append(out, &adxFactor{cfg: cfg.ADX})
	}
	return out
}

var errInsufficient = fmt.Errorf("insufficient history")
