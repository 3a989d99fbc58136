package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orb-backtest/services/trade"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Symbols = []string{"BTCUSDT"}
	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }, "no symbols"},
		{"zero interval", func(c *Config) { c.IntervalMinutes = 0 }, "interval_minutes"},
		{"zero base minutes", func(c *Config) { c.OpenRange.BaseMinutes = 0 }, "base_minutes"},
		{"norm vol ordering", func(c *Config) { c.OpenRange.LowNormVol = 0.5; c.OpenRange.HighNormVol = 0.2 }, "low_norm_vol"},
		{"atr mult ordering", func(c *Config) { c.OpenRange.MinATRMult = 3; c.OpenRange.MaxATRMult = 1 }, "min_atr_mult"},
		{"coverage range", func(c *Config) { c.OpenRange.MinBarCoverage = 1.5 }, "min_bar_coverage"},
		{"zero quantity", func(c *Config) { c.Trade.Quantity = 0 }, "quantity"},
		{"unknown stop mode", func(c *Config) { c.Trade.StopMode = "bogus" }, "stop_mode"},
		{"target ordering", func(c *Config) { c.Trade.T1R = 2; c.Trade.T2R = 1.5 }, "strictly increasing"},
		{"partials above full size", func(c *Config) { c.Trade.T1Pct = 0.8; c.Trade.T2Pct = 0.3 }, "percentages"},
		{"negative partial", func(c *Config) { c.Trade.T1Pct = -0.1 }, "non-negative"},
		{"primary r required", func(c *Config) { c.Trade.PartialsEnabled = false; c.Trade.PrimaryR = 0 }, "primary_r"},
		{"atr cap mult", func(c *Config) { c.Trade.StopMode = trade.StopATRCapped; c.Trade.ATRCapMult = 0 }, "atr_cap_mult"},
		{"breakout atr period", func(c *Config) { c.Breakout.ATRPeriod = 0 }, "breakout.atr_period"},
		{"negative governance", func(c *Config) { c.Governance.MaxSignalsPerDay = -1 }, "governance"},
		{"negative daily cap", func(c *Config) { c.Governance.MaxDailyLossR = -1 }, "max_daily_loss_r"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadAppliesOverridesOverDefaults(t *testing.T) {
	raw := `
symbols: [BTCUSDT, ETHUSDT]
interval_minutes: 5
openrange:
  base_minutes: 15
trade:
  stop_mode: swing
governance:
  max_signals_per_day: 1
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "ETHUSDT" {
		t.Fatalf("symbols = %v", cfg.Symbols)
	}
	if cfg.IntervalMinutes != 5 {
		t.Fatalf("interval = %d, want 5", cfg.IntervalMinutes)
	}
	if cfg.OpenRange.BaseMinutes != 15 {
		t.Fatalf("base minutes = %d, want 15", cfg.OpenRange.BaseMinutes)
	}
	if cfg.Trade.StopMode != trade.StopSwing {
		t.Fatalf("stop mode = %q, want swing", cfg.Trade.StopMode)
	}
	if cfg.Governance.MaxSignalsPerDay != 1 {
		t.Fatalf("max signals = %d, want 1", cfg.Governance.MaxSignalsPerDay)
	}
	// untouched defaults survive
	if cfg.OpenRange.ATRPeriod != 14 {
		t.Fatalf("atr period = %d, want default 14", cfg.OpenRange.ATRPeriod)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
