package factors

import (
	"math"

	"orb-backtest/services/market"
)

// ValueAreaConfig tunes the value-area proxy: a rolling typical-price band
// of mean +/- BandStdDev standard deviations over Window bars.
type ValueAreaConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Window     int     `yaml:"window"`
	BandStdDev float64 `yaml:"band_std_dev"`
}

type valueAreaFactor struct {
	cfg ValueAreaConfig
}

func (f *valueAreaFactor) Kind() Kind { return ValueArea }

// Calculate votes long when the close escapes above the rolling value
// band and short below it. Value is the close's z-score against the band
// center.
func (f *valueAreaFactor) Calculate(s *market.Series, i int) (Signal, error) {
	w := f.cfg.Window
	if i+1 < w {
		return Signal{}, errInsufficient
	}
	var mean, variance float64
	n := float64(w)
	for j := i + 1 - w; j <= i; j++ {
		b := s.Bars[j]
		mean += (b.High + b.Low + b.Close) / 3.0
	}
	mean /= n
	for j := i + 1 - w; j <= i; j++ {
		b := s.Bars[j]
		d := (b.High+b.Low+b.Close)/3.0 - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	if std == 0 {
		// flat window, no band to escape
		return Signal{}, nil
	}

	close := s.Bars[i].Close
	dev := f.cfg.BandStdDev
	sig := Signal{Value: (close - mean) / std, Valid: true}
	if close > mean+dev*std {
		sig.Long = true
	} else if close < mean-dev*std {
		sig.Short = true
	}
	return sig, nil
}
