package indicators

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTrueRangeFirstBarFallsBackToHighLow(t *testing.T) {
	tr := TrueRange([]float64{10, 12}, []float64{8, 9}, []float64{9, 11})
	if !approx(tr[0], 2) {
		t.Fatalf("tr[0] = %v, want 2", tr[0])
	}
	// max(12-9, |12-9|, |9-9|) = 3
	if !approx(tr[1], 3) {
		t.Fatalf("tr[1] = %v, want 3", tr[1])
	}
}

func TestATRWilderSeedAndSmoothing(t *testing.T) {
	highs := []float64{10, 12, 11, 13, 14, 13}
	lows := []float64{9, 10, 10, 11, 12, 12}
	closes := []float64{9.5, 11, 10.5, 12, 13, 12.5}

	atr := ATR(highs, lows, closes, 3)

	if atr[2] != 0 {
		t.Fatalf("warmup atr[2] = %v, want 0", atr[2])
	}
	// TR[1..3] = 2.5, 1, 2.5 -> seed 2.0
	if !approx(atr[3], 2.0) {
		t.Fatalf("seed atr[3] = %v, want 2.0", atr[3])
	}
	// TR[4] = 2 -> (2*2 + 2) / 3
	if !approx(atr[4], 2.0) {
		t.Fatalf("atr[4] = %v, want 2.0", atr[4])
	}
	// TR[5] = 1 -> (2*2 + 1) / 3
	if !approx(atr[5], 5.0/3.0) {
		t.Fatalf("atr[5] = %v, want 5/3", atr[5])
	}
}

func TestATRInsufficientHistoryStaysZero(t *testing.T) {
	atr := ATR([]float64{10, 11}, []float64{9, 10}, []float64{9.5, 10.5}, 14)
	for i, v := range atr {
		if v != 0 {
			t.Fatalf("atr[%d] = %v, want 0", i, v)
		}
	}
}

func TestATRConstantRangeConverges(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := range highs {
		highs[i] = 100.5
		lows[i] = 99.5
		closes[i] = 100
	}
	atr := ATR(highs, lows, closes, 14)
	if !approx(atr[n-1], 1.0) {
		t.Fatalf("constant-range atr = %v, want 1.0", atr[n-1])
	}
}

func TestADXUptrendReadsDirectional(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := range highs {
		c := 100 + float64(i)
		highs[i] = c + 0.5
		lows[i] = c - 0.5
		closes[i] = c
	}
	adx, plusDI, minusDI := ADX(highs, lows, closes, 14)

	last := n - 1
	if adx[last] <= 25 {
		t.Fatalf("steady uptrend adx = %v, want > 25", adx[last])
	}
	if plusDI[last] <= minusDI[last] {
		t.Fatalf("uptrend +DI %v not above -DI %v", plusDI[last], minusDI[last])
	}
	if adx[2*14-2] != 0 {
		t.Fatalf("adx before seed = %v, want 0", adx[2*14-2])
	}
}

func TestEMASeedsWithSMA(t *testing.T) {
	out := EMA([]float64{1, 2, 3, 4}, 2)
	if !approx(out[1], 1.5) {
		t.Fatalf("seed = %v, want 1.5", out[1])
	}
	// alpha = 2/3
	if !approx(out[2], 3*2.0/3.0+1.5/3.0) {
		t.Fatalf("out[2] = %v", out[2])
	}
	if !approx(out[3], 4*2.0/3.0+out[2]/3.0) {
		t.Fatalf("out[3] = %v", out[3])
	}
}

func TestTrailingSMAExcludesCurrentBar(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	if got := TrailingSMA(values, 3, 2); !approx(got, 25) {
		t.Fatalf("got %v, want 25", got)
	}
	if got := TrailingSMA(values, 1, 2); got != 0 {
		t.Fatalf("short history got %v, want 0", got)
	}
}

func TestAnchoredVWAPResetsAtAnchors(t *testing.T) {
	closes := []float64{10, 20, 30, 40}
	volumes := []float64{1, 1, 1, 1}
	out := AnchoredVWAP(closes, closes, closes, volumes, []int{0, 2})

	if !approx(out[1], 15) {
		t.Fatalf("out[1] = %v, want 15", out[1])
	}
	// second session starts fresh at index 2
	if !approx(out[2], 30) {
		t.Fatalf("out[2] = %v, want 30", out[2])
	}
	if !approx(out[3], 35) {
		t.Fatalf("out[3] = %v, want 35", out[3])
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{1, 2, 3, 4}, 0, 4)
	if !approx(mean, 2.5) {
		t.Fatalf("mean = %v, want 2.5", mean)
	}
	if !approx(std, math.Sqrt(1.25)) {
		t.Fatalf("std = %v, want sqrt(1.25)", std)
	}
}
