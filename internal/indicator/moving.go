package indicator

import "math"

// SMA is the simple moving average over period values. A window containing NaN yields NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	nans := 0
	for i, v := range values {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= period {
			old := values[i-period]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= period-1 && nans == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the exponential moving average seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out[period-1] = prev

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RMA is Wilder's smoothing (alpha = 1/period), seeded with an SMA.
// Leading NaN values are skipped before seeding.
func RMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out
	}
	seed := 0.0
	for _, v := range values[start : start+period] {
		seed += v
	}
	prev := seed / float64(period)
	out[start+period-1] = prev
	for i := start + period; i < len(values); i++ {
		prev = (prev*float64(period-1) + values[i]) / float64(period)
		out[i] = prev
	}
	return out
}

// RollingStd is the population standard deviation over period values.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	mean := SMA(values, period)
	for i := period - 1; i < len(values); i++ {
		if i < 0 || math.IsNaN(mean[i]) {
			continue
		}
		ss := 0.0
		for _, v := range values[i-period+1 : i+1] {
			d := v - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

// Last returns the final element, NaN for an empty slice.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Valid reports whether v is a usable number.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
