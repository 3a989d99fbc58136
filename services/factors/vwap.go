package factors

import "orb-backtest/services/market"

type VWAPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type vwapFactor struct{}

func (f *vwapFactor) Kind() Kind { return VWAPAlign }

// Calculate votes with the close's side of the session-anchored VWAP.
// Value is the signed distance as a fraction of VWAP.
func (f *vwapFactor) Calculate(s *market.Series, i int) (Signal, error) {
	vwap := s.VWAP[i]
	if vwap <= 0 {
		return Signal{}, errInsufficient
	}
	close := s.Bars[i].Close
	sig := Signal{Value: (close - vwap) / vwap, Valid: true}
	if close > vwap {
		sig.Long = true
	} else if close < vwap {
		sig.Short = true
	}
	return sig, nil
}
