package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/strategy"
)

func TestEvaluateRejectsShortSeries(t *testing.T) {
	st := stubStrategy{name: "always_long", label: models.Bullish}
	series := models.NewSeries("AAA", models.TF1h, risingBars(MinEvaluationBars-1, 100, 1, time.Now(), time.Hour))

	_, err := Evaluate(st, series)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestEvaluateLongOnRisingSeries(t *testing.T) {
	st := stubStrategy{name: "always_long", label: models.Bullish}
	series := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, time.Now(), time.Hour))

	perf, err := Evaluate(st, series)
	require.NoError(t, err)
	assert.Equal(t, "always_long", perf.Strategy)
	assert.Equal(t, 59, perf.TotalTrades)
	assert.Equal(t, 1.0, perf.WinRate)
	assert.Equal(t, 2.0, perf.ProfitFactor)
	assert.Zero(t, perf.MaxDrawdown)
	assert.InDelta(t, 159.0/100.0-1, perf.CumulativeReturn, 1e-9)
	assert.Equal(t, 0.98, perf.Confidence)
	assert.Greater(t, perf.Score, perf.Confidence)
}

func TestEvaluateShortOnRisingSeriesLoses(t *testing.T) {
	st := stubStrategy{name: "always_short", label: models.Bearish}
	series := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, time.Now(), time.Hour))

	perf, err := Evaluate(st, series)
	require.NoError(t, err)
	assert.Zero(t, perf.WinRate)
	assert.Zero(t, perf.ProfitFactor)
	assert.Less(t, perf.MaxDrawdown, 0.0)
	assert.Less(t, perf.SharpeRatio, 0.0)
	assert.Equal(t, 0.1, perf.Confidence)
}

func TestEvaluateNeutralPlacesNoBets(t *testing.T) {
	st := stubStrategy{name: "flat", label: models.Neutral}
	series := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, time.Now(), time.Hour))

	perf, err := Evaluate(st, series)
	require.NoError(t, err)
	assert.Zero(t, perf.TotalTrades)
	assert.Equal(t, 1.0, perf.ProfitFactor)
	assert.InDelta(t, 0.15, perf.Confidence, 1e-9)
	assert.InDelta(t, 0.15, perf.Score, 1e-9)
}

func TestEvaluateRealStrategiesStayFinite(t *testing.T) {
	bars := risingBars(120, 50, 0.5, time.Now(), time.Hour)
	for i := range bars {
		if i%7 == 0 {
			bars[i].Close -= 3
			bars[i].Volume *= 4
		}
	}
	series := models.NewSeries("AAA", models.TF1h, bars)

	for _, st := range strategy.DefaultCatalog().All() {
		perf, err := Evaluate(st, series)
		require.NoError(t, err, st.Name())
		assert.False(t, math.IsNaN(perf.Score) || math.IsInf(perf.Score, 0), st.Name())
		assert.GreaterOrEqual(t, perf.Confidence, 0.1, st.Name())
		assert.LessOrEqual(t, perf.Confidence, 0.98, st.Name())
	}
}

func TestConfidenceClamps(t *testing.T) {
	cases := []struct {
		name           string
		wr, pf, sharpe float64
		want           float64
	}{
		{"all zero", 0, 0, 0, 0.1},
		{"ceiling", 1, 10, 10, 0.98},
		{"nan inputs", math.NaN(), math.NaN(), math.NaN(), 0.1},
		{"infinite inputs", math.Inf(1), math.Inf(1), math.Inf(-1), 0.1},
		{"negative sharpe ignored", 0.5, 1, -4, 0.35},
		{"mid", 0.5, 1, 1.5, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Confidence(tc.wr, tc.pf, tc.sharpe), 1e-9)
		})
	}
}

func TestProfitFactor(t *testing.T) {
	assert.Equal(t, 1.0, profitFactor(nil))
	assert.Equal(t, 1.0, profitFactor([]float64{0, 0}))
	assert.Equal(t, 2.0, profitFactor([]float64{0.1, 0.2}))
	assert.InDelta(t, 3.0, profitFactor([]float64{0.3, -0.1}), 1e-9)
	assert.Zero(t, profitFactor([]float64{-0.1}))
}

func TestEquityCurveDrawdown(t *testing.T) {
	cum, dd := equityCurve([]float64{0.1, -0.5, 0.2})
	assert.InDelta(t, 1.1*0.5*1.2-1, cum, 1e-9)
	assert.InDelta(t, -0.5, dd, 1e-9)

	cum, dd = equityCurve([]float64{-0.2})
	assert.InDelta(t, -0.2, cum, 1e-9)
	assert.Zero(t, dd)
}
