package openrange

import (
	"testing"
	"time"

	"orb-backtest/services/market"
)

func flatBars(start time.Time, n int, price float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func climbBars(start time.Time, n int, base float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		c := base + float64(i)
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c - 0.5,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func newSeries(t *testing.T, bars []market.Bar) *market.Series {
	t.Helper()
	s, err := market.NewSeries("TEST", bars, market.IndicatorConfig{ATRPeriods: []int{14}})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func baseConfig() Config {
	return Config{
		BaseMinutes:  30,
		ShortMinutes: 15,
		LongMinutes:  60,
		LowNormVol:   0.05,
		HighNormVol:  0.20,
		MinATRMult:   0.5,
		MaxATRMult:   3.0,
		ATRPeriod:    14,
	}
}

func TestBuildValidRange(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	s := newSeries(t, flatBars(start, 60, 100))

	ranges := NewBuilder(baseConfig(), 1, nil).BuildAll(s)
	r := ranges[s.Days[0].Date]
	if r == nil {
		t.Fatal("no range for day")
	}
	if r.Validity != Valid {
		t.Fatalf("validity = %s, want VALID", r.Validity)
	}
	if r.High != 100.5 || r.Low != 99.5 {
		t.Fatalf("bounds high=%v low=%v", r.High, r.Low)
	}
	if r.Width != 1.0 {
		t.Fatalf("width = %v, want 1.0", r.Width)
	}
	if r.Duration != 30*time.Minute {
		t.Fatalf("first day duration = %v, want base 30m", r.Duration)
	}
	if !r.End.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("end = %v", r.End)
	}
	if r.BarCount != 30 {
		t.Fatalf("bar count = %d, want 30", r.BarCount)
	}
}

func TestRangeTooNarrowAgainstATR(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	s := newSeries(t, flatBars(start, 60, 100))

	cfg := baseConfig()
	cfg.MinATRMult = 2.0 // width 1.0 against ATR 1.0
	r := NewBuilder(cfg, 1, nil).BuildAll(s)[s.Days[0].Date]
	if r.Validity != TooNarrow {
		t.Fatalf("validity = %s, want TOO_NARROW", r.Validity)
	}
	if r.MinWidth != 2.0 {
		t.Fatalf("min width = %v, want 2.0", r.MinWidth)
	}
}

func TestRangeTooWideAgainstATR(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	s := newSeries(t, flatBars(start, 60, 100))

	cfg := baseConfig()
	cfg.MinATRMult = 0.1
	cfg.MaxATRMult = 0.8
	r := NewBuilder(cfg, 1, nil).BuildAll(s)[s.Days[0].Date]
	if r.Validity != TooWide {
		t.Fatalf("validity = %s, want TOO_WIDE", r.Validity)
	}
}

func TestInsufficientBarCoverage(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	// 20 bars against an expected 30: below the 80% floor
	s := newSeries(t, flatBars(start, 20, 100))

	r := NewBuilder(baseConfig(), 1, nil).BuildAll(s)[s.Days[0].Date]
	if r.Validity != InsufficientData {
		t.Fatalf("validity = %s, want INSUFFICIENT_DATA", r.Validity)
	}
}

func TestValidationSkippedInsideATRWarmup(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	s := newSeries(t, flatBars(start, 10, 100))

	cfg := baseConfig()
	cfg.BaseMinutes = 10
	r := NewBuilder(cfg, 1, nil).BuildAll(s)[s.Days[0].Date]
	if r.Validity != Valid {
		t.Fatalf("validity = %s, want VALID during warmup", r.Validity)
	}
	if r.ATR != 0 {
		t.Fatalf("warmup atr = %v, want 0", r.ATR)
	}
}

func TestAdaptiveDurationLengthensOnHighNormalizedVol(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)
	// flat previous day: ATR 1.0 over a 1.0 day range, normalized vol 1.0
	bars := append(flatBars(d1, 60, 100), flatBars(d2, 60, 100)...)
	s := newSeries(t, bars)

	cfg := baseConfig()
	cfg.Adaptive = true
	ranges := NewBuilder(cfg, 1, nil).BuildAll(s)

	if got := ranges[s.Days[0].Date].Duration; got != 30*time.Minute {
		t.Fatalf("day 0 duration = %v, want base", got)
	}
	r := ranges[s.Days[1].Date]
	if r.Duration != 60*time.Minute {
		t.Fatalf("day 1 duration = %v, want long 60m", r.Duration)
	}
	if r.NormalizedVol != 1.0 {
		t.Fatalf("normalized vol = %v, want 1.0", r.NormalizedVol)
	}
}

func TestAdaptiveDurationShortensOnLowNormalizedVol(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)
	// steady climb: ATR 1.5 against a 60-point day range
	bars := append(climbBars(d1, 60, 100), flatBars(d2, 60, 160)...)
	s := newSeries(t, bars)

	cfg := baseConfig()
	cfg.Adaptive = true
	r := NewBuilder(cfg, 1, nil).BuildAll(s)[s.Days[1].Date]
	if r.Duration != 15*time.Minute {
		t.Fatalf("day 1 duration = %v, want short 15m", r.Duration)
	}
}

func TestAdaptiveDisabledStaysOnBase(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)
	bars := append(flatBars(d1, 60, 100), flatBars(d2, 60, 100)...)
	s := newSeries(t, bars)

	r := NewBuilder(baseConfig(), 1, nil).BuildAll(s)[s.Days[1].Date]
	if r.Duration != 30*time.Minute {
		t.Fatalf("duration = %v, want base with adaptive off", r.Duration)
	}
}

func TestValidityStrings(t *testing.T) {
	cases := map[Validity]string{
		Valid:            "VALID",
		TooNarrow:        "TOO_NARROW",
		TooWide:          "TOO_WIDE",
		InsufficientData: "INSUFFICIENT_DATA",
	}
	for v, want := range cases {
		if v.String() != want {
			t.Fatalf("%d.String() = %s, want %s", v, v.String(), want)
		}
	}
}
