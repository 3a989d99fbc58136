// Package indicators holds the numeric kernels shared by the factor,
// opening-range and breakout stages. Everything operates on contiguous
// float64 slices with explicit loops; outputs are aligned with inputs and
// zero-filled during warmup.
package indicators

import "math"

// TrueRange returns the per-bar true range. Index 0 falls back to high-low
// since there is no previous close.
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR computes Wilder-smoothed average true range. The seed at index
// `period` is the simple average of the first period true ranges (skipping
// index 0, which has no previous close); after that
// RMA = (RMA*(N-1) + TR) / N. Entries before the seed are zero.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if period <= 0 || n < period+1 {
		return out
	}
	tr := TrueRange(highs, lows, closes)

	var seed float64
	for i := 1; i <= period; i++ {
		seed += tr[i]
	}
	seed /= float64(period)
	out[period] = seed

	pm1 := float64(period - 1)
	pf := float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*pm1 + tr[i]) / pf
	}
	return out
}

// ADX computes the average directional index with its directional lines.
// Smoothing is Wilder's throughout; ADX itself is seeded with the simple
// average of the first `period` DX values and becomes meaningful from index
// 2*period onward.
func ADX(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(closes)
	adx = make([]float64, n)
	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	if period <= 0 || n < 2*period+1 {
		return adx, plusDI, minusDI
	}

	tr := TrueRange(highs, lows, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running sums, seeded over the first `period` bars.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}
		if smTR > 0 {
			plusDI[i] = 100 * smPlus / smTR
			minusDI[i] = 100 * smMinus / smTR
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum > 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
		}
	}

	var seed float64
	for i := period; i < 2*period; i++ {
		seed += dx[i]
	}
	seed /= float64(period)
	adx[2*period-1] = seed
	pm1 := float64(period - 1)
	pf := float64(period)
	for i := 2 * period; i < n; i++ {
		adx[i] = (adx[i-1]*pm1 + dx[i]) / pf
	}
	return adx, plusDI, minusDI
}

// EMA seeds with the SMA of the first `period` values, then applies
// alpha = 2/(N+1) smoothing. Entries before the seed are zero.
func EMA(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if period <= 0 || n < period {
		return out
	}
	var sma float64
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	out[period-1] = sma / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// TrailingSMA returns the simple average of the `period` values strictly
// before index i, or 0 if there is not enough history.
func TrailingSMA(values []float64, i, period int) float64 {
	if period <= 0 || i < period {
		return 0
	}
	var sum float64
	for j := i - period; j < i; j++ {
		sum += values[j]
	}
	return sum / float64(period)
}

// AnchoredVWAP computes a volume-weighted average price that resets at
// each anchor index (session starts). Typical price (H+L+C)/3 weights the
// bar. Bars with zero cumulative volume yield zero.
func AnchoredVWAP(highs, lows, closes, volumes []float64, anchors []int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	next := 0
	var sumPV, sumV float64
	for i := 0; i < n; i++ {
		if next < len(anchors) && i == anchors[next] {
			sumPV, sumV = 0, 0
			next++
		}
		tp := (highs[i] + lows[i] + closes[i]) / 3.0
		sumPV += tp * volumes[i]
		sumV += volumes[i]
		if sumV > 0 {
			out[i] = sumPV / sumV
		}
	}
	return out
}

// MeanStd returns the mean and population standard deviation of
// values[from:to].
func MeanStd(values []float64, from, to int) (mean, std float64) {
	if to <= from {
		return 0, 0
	}
	n := float64(to - from)
	for i := from; i < to; i++ {
		mean += values[i]
	}
	mean /= n
	for i := from; i < to; i++ {
		d := values[i] - mean
		std += d * d
	}
	return mean, math.Sqrt(std / n)
}
