package factors

import "orb-backtest/services/market"

// ADXConfig tunes the trend-strength factor. Threshold is the minimum ADX
// for a trend vote; the same threshold drives the scorer's weak-trend
// regime gate.
type ADXConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Period    int     `yaml:"period"`
	Threshold float64 `yaml:"threshold"`
}

type adxFactor struct {
	cfg ADXConfig
}

func (f *adxFactor) Kind() Kind { return TrendStrength }

// Calculate votes in the dominant DI direction once ADX clears the
// threshold. ADX still in warmup reads as zero and yields insufficient
// history.
func (f *adxFactor) Calculate(s *market.Series, i int) (Signal, error) {
	adx := s.ADX[i]
	if adx == 0 {
		return Signal{}, errInsufficient
	}
	sig := Signal{Value: adx, Valid: true}
	if adx >= f.cfg.Threshold {
		if s.PlusDI[i] > s.MinusDI[i] {
			sig.Long = true
		} else if s.MinusDI[i] > s.PlusDI[i] {
			sig.Short = true
		}
	}
	return sig, nil
}
