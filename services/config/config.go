// Package config loads and validates the run configuration. Validation is
// the fatal pre-run boundary: the engine assumes every numeric threshold
// it reads has already been checked here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"orb-backtest/services/breakout"
	"orb-backtest/services/factors"
	"orb-backtest/services/governance"
	"orb-backtest/services/openrange"
	"orb-backtest/services/scoring"
	"orb-backtest/services/trade"
)

type DataConfig struct {
	Source        string `yaml:"source"` // csv, clickhouse, binance
	CSVDir        string `yaml:"csv_dir"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	Database      string `yaml:"database"`
	Table         string `yaml:"table"`
}

type Config struct {
	Symbols         []string `yaml:"symbols"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	MaxWorkers      int      `yaml:"max_workers"`

	Data       DataConfig        `yaml:"data"`
	OpenRange  openrange.Config  `yaml:"openrange"`
	Factors    factors.Config    `yaml:"factors"`
	Scoring    scoring.Config    `yaml:"scoring"`
	Breakout   breakout.Config   `yaml:"breakout"`
	Trade      trade.Config      `yaml:"trade"`
	Governance governance.Config `yaml:"governance"`
}

// Load reads a YAML config file and applies defaults. It does not
// validate; callers run Validate before handing the config to the engine.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Default returns a runnable configuration for 1-minute bars.
func Default() *Config {
	return &Config{
		IntervalMinutes: 1,
		OpenRange: openrange.Config{
			BaseMinutes:    30,
			ShortMinutes:   15,
			LongMinutes:    60,
			Adaptive:       true,
			LowNormVol:     0.05,
			HighNormVol:    0.20,
			MinATRMult:     0.5,
			MaxATRMult:     3.0,
			ATRPeriod:      14,
			MinBarCoverage: 0.8,
		},
		Factors: factors.Config{
			RelativeVolume: factors.RelVolConfig{Enabled: true, Lookback: 20, Multiplier: 1.5},
			PriceAction:    factors.PatternConfig{Enabled: true, MinBodyFrac: 0.6},
			ValueArea:      factors.ValueAreaConfig{Enabled: true, Window: 30, BandStdDev: 1.0},
			VWAP:           factors.VWAPConfig{Enabled: true},
			ADX:            factors.ADXConfig{Enabled: true, Period: 14, Threshold: 20},
		},
		Scoring: scoring.Config{
			Enabled: true,
			Weights: scoring.Weights{
				RelativeVolume: 1.0,
				PriceAction:    1.0,
				ValueArea:      1.0,
				VWAP:           1.0,
				ADX:            1.0,
			},
			BaseRequired:      2.0,
			WeakTrendRequired: 3.0,
			ADXThreshold:      20,
		},
		Breakout: breakout.Config{
			BufferOffset:   0.05,
			UseATRBuffer:   true,
			ATRMult:        0.1,
			ATRPeriod:      14,
			RequireValidOR: true,
		},
		Trade: trade.Config{
			Quantity:         1,
			StopMode:         trade.StopOROpposite,
			StopBuffer:       0.05,
			SwingLookback:    30,
			SwingPivot:       2,
			ATRCapMult:       2.0,
			ATRPeriod:        14,
			PartialsEnabled:  true,
			T1R:              1.0,
			T1Pct:            0.5,
			T2R:              1.5,
			T2Pct:            0.25,
			RunnerR:          2.5,
			PrimaryR:         2.0,
			MoveBreakevenAtR: 1.0,
			BreakevenBuffer:  0.05,
		},
		Governance: governance.Config{
			MaxSignalsPerDay:   3,
			LockoutAfterLosses: 2,
			TimeCutoffMinutes:  0,
			MaxDailyLossR:      0,
		},
	}
}

// Validate enforces every fatal pre-run rule. Any failure here must stop
// the run before a single bar is processed.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: no symbols")
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("config: interval_minutes must be positive")
	}

	or := c.OpenRange
	if or.BaseMinutes <= 0 {
		return fmt.Errorf("config: openrange.base_minutes must be positive")
	}
	if or.Adaptive {
		if or.ShortMinutes <= 0 || or.LongMinutes <= 0 {
			return fmt.Errorf("config: adaptive openrange needs short_minutes and long_minutes")
		}
		if or.LowNormVol >= or.HighNormVol {
			return fmt.Errorf("config: openrange.low_norm_vol must be below high_norm_vol")
		}
	}
	if or.MinATRMult >= or.MaxATRMult {
		return fmt.Errorf("config: openrange.min_atr_mult must be below max_atr_mult")
	}
	if or.ATRPeriod <= 0 {
		return fmt.Errorf("config: openrange.atr_period must be positive")
	}
	if or.MinBarCoverage < 0 || or.MinBarCoverage > 1 {
		return fmt.Errorf("config: openrange.min_bar_coverage must be in [0,1]")
	}

	t := c.Trade
	if t.Quantity <= 0 {
		return fmt.Errorf("config: trade.quantity must be positive")
	}
	switch t.StopMode {
	case trade.StopOROpposite, trade.StopSwing, trade.StopATRCapped:
	default:
		return fmt.Errorf("config: unknown trade.stop_mode %q", t.StopMode)
	}
	if t.PartialsEnabled {
		if !(t.T1R < t.T2R && t.T2R < t.RunnerR) {
			return fmt.Errorf("config: target R-multiples must be strictly increasing (t1 < t2 < runner)")
		}
		if t.T1Pct < 0 || t.T2Pct < 0 {
			return fmt.Errorf("config: partial percentages must be non-negative")
		}
		if t.T1Pct+t.T2Pct > 1 {
			return fmt.Errorf("config: partial percentages sum above 100%%")
		}
	} else if t.PrimaryR <= 0 {
		return fmt.Errorf("config: trade.primary_r must be positive without partials")
	}
	if t.StopMode == trade.StopATRCapped && t.ATRCapMult <= 0 {
		return fmt.Errorf("config: trade.atr_cap_mult must be positive for atr_capped stops")
	}

	if c.Breakout.UseATRBuffer && c.Breakout.ATRPeriod <= 0 {
		return fmt.Errorf("config: breakout.atr_period must be positive with use_atr_buffer")
	}

	if c.Scoring.Enabled {
		if c.Scoring.BaseRequired < 0 || c.Scoring.WeakTrendRequired < 0 {
			return fmt.Errorf("config: scoring thresholds must be non-negative")
		}
	}

	g := c.Governance
	if g.MaxSignalsPerDay < 0 || g.LockoutAfterLosses < 0 || g.TimeCutoffMinutes < 0 {
		return fmt.Errorf("config: governance counters must be non-negative")
	}
	if g.MaxDailyLossR < 0 {
		return fmt.Errorf("config: governance.max_daily_loss_r must be non-negative")
	}
	return nil
}
