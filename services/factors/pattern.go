package factors

import "orb-backtest/services/market"

// PatternConfig tunes the price-action factor. MinBodyFrac is the body
// share of the full range a bar needs to count as dominant.
type PatternConfig struct {
	Enabled     bool    `yaml:"enabled"`
	MinBodyFrac float64 `yaml:"min_body_frac"`
}

type patternFactor struct {
	cfg PatternConfig
}

func (f *patternFactor) Kind() Kind { return PriceAction }

// Calculate recognizes two bullish/bearish forms on the closing bar:
// an engulfing bar (body swallows the previous body, opposite color) and
// a dominant-body bar that also closes beyond the previous extreme.
func (f *patternFactor) Calculate(s *market.Series, i int) (Signal, error) {
	if i < 1 {
		return Signal{}, errInsufficient
	}
	cur, prev := s.Bars[i], s.Bars[i-1]

	rng := cur.High - cur.Low
	body := cur.Close - cur.Open
	bodyFrac := 0.0
	if rng > 0 {
		if body >= 0 {
			bodyFrac = body / rng
		} else {
			bodyFrac = -body / rng
		}
	}
	sig := Signal{Value: bodyFrac, Valid: true}

	bullEngulf := body > 0 && prev.Close < prev.Open &&
		cur.Open <= prev.Close && cur.Close >= prev.Open
	bearEngulf := body < 0 && prev.Close > prev.Open &&
		cur.Open >= prev.Close && cur.Close <= prev.Open

	dominant := bodyFrac >= f.cfg.MinBodyFrac
	bullDrive := dominant && body > 0 && cur.Close > prev.High
	bearDrive := dominant && body < 0 && cur.Close < prev.Low

	sig.Long = bullEngulf || bullDrive
	sig.Short = bearEngulf || bearDrive
	return sig, nil
}
