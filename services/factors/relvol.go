package factors

import "orb-backtest/services/market"

// RelVolConfig tunes the relative-volume factor: current bar volume
// against the trailing average.
type RelVolConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Lookback   int     `yaml:"lookback"`
	Multiplier float64 `yaml:"multiplier"`
}

type relVolFactor struct {
	cfg RelVolConfig
}

func (f *relVolFactor) Kind() Kind { return RelativeVolume }

// Calculate flags bars whose volume exceeds multiplier x trailing average.
// Direction follows the bar body; a doji with elevated volume votes for
// neither side.
func (f *relVolFactor) Calculate(s *market.Series, i int) (Signal, error) {
	if i < f.cfg.Lookback {
		return Signal{}, errInsufficient
	}
	avg := s.VolSMA[i]
	if avg <= 0 {
		return Signal{}, nil
	}
	bar := s.Bars[i]
	rel := bar.Volume / avg
	sig := Signal{Value: rel, Valid: true}
	if rel >= f.cfg.Multiplier {
		switch {
		case bar.Close > bar.Open:
			sig.Long = true
		case bar.Close < bar.Open:
			sig.Short = true
		}
	}
	return sig, nil
}
