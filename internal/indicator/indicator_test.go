package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 4.0, got[4], 1e-9)
}

func TestSMA_NaNWindow(t *testing.T) {
	got := SMA([]float64{1, math.NaN(), 3, 4, 5}, 2)
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.InDelta(t, 3.5, got[3], 1e-9)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	got := EMA([]float64{2, 4, 6, 8}, 3)
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 4.0, got[2], 1e-9)
	// alpha = 0.5
	assert.InDelta(t, 6.0, got[3], 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(i + 1)
	}
	assert.InDelta(t, 100.0, Last(RSI(up, 14)), 1e-9)

	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(100 - i)
	}
	assert.InDelta(t, 0.0, Last(RSI(down, 14)), 1e-9)

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 10
	}
	assert.InDelta(t, 50.0, Last(RSI(flat, 14)), 1e-9)
}

func TestBollinger_ConstantSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 10
	}
	b := Bollinger(closes, 20, 2)
	assert.InDelta(t, 10.0, Last(b.Lower), 1e-9)
	assert.InDelta(t, 10.0, Last(b.Upper), 1e-9)
	assert.True(t, math.IsNaN(b.Lower[18]))
}

func TestTrueRangeAndATR(t *testing.T) {
	highs := []float64{10, 12, 11}
	lows := []float64{9, 10, 8}
	closes := []float64{9.5, 11, 9}

	tr := TrueRange(highs, lows, closes)
	assert.True(t, math.IsNaN(tr[0]))
	assert.InDelta(t, 2.5, tr[1], 1e-9)
	assert.InDelta(t, 3.0, tr[2], 1e-9)

	atr := ATR(highs, lows, closes, 2)
	assert.InDelta(t, 2.75, Last(atr), 1e-9)
}

func TestATR_AllNaN(t *testing.T) {
	n := 14
	nan := make([]float64, n)
	for i := range nan {
		nan[i] = math.NaN()
	}
	assert.True(t, math.IsNaN(Last(ATR(nan, nan, nan, 14))))
}

func TestMeanAndSampleStd(t *testing.T) {
	vals := []float64{1, 2, 3, 4, math.NaN()}
	assert.InDelta(t, 2.5, Mean(vals), 1e-9)
	assert.InDelta(t, math.Sqrt(5.0/3.0), SampleStd(vals), 1e-9)
	assert.True(t, math.IsNaN(SampleStd([]float64{1})))
}
