package indicator

import "math"

// RSI is the relative strength index with Wilder smoothing.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) <= period {
		return out
	}
	gains := nanSlice(len(closes))
	losses := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
	}
	avgGain := RMA(gains, period)
	avgLoss := RMA(losses, period)
	for i := range closes {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
			out[i] = 50
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// Bands holds Bollinger band columns.
type Bands struct {
	Lower  []float64
	Middle []float64
	Upper  []float64
}

// Bollinger computes SMA bands k standard deviations wide.
func Bollinger(closes []float64, period int, k float64) Bands {
	mid := SMA(closes, period)
	std := RollingStd(closes, period)
	b := Bands{
		Lower:  nanSlice(len(closes)),
		Middle: mid,
		Upper:  nanSlice(len(closes)),
	}
	for i := range closes {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) {
			continue
		}
		b.Lower[i] = mid[i] - k*std[i]
		b.Upper[i] = mid[i] + k*std[i]
	}
	return b
}

// PctChange is values[i]/values[i-1] - 1.
func PctChange(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i] = values[i]/values[i-1] - 1
		}
	}
	return out
}
