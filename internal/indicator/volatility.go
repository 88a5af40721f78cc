package indicator

import "math"

// TrueRange is max(H-L, |H-prevC|, |L-prevC|). The first bar has no previous
// close and is NaN, as is any bar with a NaN input.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		h, l, pc := highs[i], lows[i], closes[i-1]
		if math.IsNaN(h) || math.IsNaN(l) || math.IsNaN(pc) {
			continue
		}
		out[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}
	return out
}

// ATR is the simple rolling mean of the true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	return SMA(TrueRange(highs, lows, closes), period)
}

// WilderATR smooths the true range with RMA.
func WilderATR(highs, lows, closes []float64, period int) []float64 {
	return RMA(TrueRange(highs, lows, closes), period)
}

// Mean averages the finite values, NaN when there are none.
func Mean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if Valid(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// SampleStd is the n-1 standard deviation of the finite values.
func SampleStd(values []float64) float64 {
	m := Mean(values)
	ss, n := 0.0, 0
	for _, v := range values {
		if Valid(v) {
			d := v - m
			ss += d * d
			n++
		}
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(ss / float64(n-1))
}
