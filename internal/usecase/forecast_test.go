package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
)

func TestLatestATRFallsBackToPriceFraction(t *testing.T) {
	short := models.NewSeries("AAA", models.TF1h, risingBars(5, 100, 1, time.Now(), time.Hour))
	assert.InDelta(t, 2.0, LatestATR(short, 200), 1e-9)

	bars := risingBars(30, 100, 1, time.Now(), time.Hour)
	for i := range bars {
		bars[i].High = math.NaN()
	}
	nan := models.NewSeries("AAA", models.TF1h, bars)
	assert.InDelta(t, 1.5, LatestATR(nan, 150), 1e-9)
}

func TestLatestATRUsesTrueRange(t *testing.T) {
	// constant two-point ranges and one-point steps keep every true range at 2
	series := models.NewSeries("AAA", models.TF1h, risingBars(40, 100, 1, time.Now(), time.Hour))
	assert.InDelta(t, 2.0, LatestATR(series, 139), 1e-9)
}

func TestBuildForecast(t *testing.T) {
	now := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)

	bull := BuildForecast(100, 2, models.Signal{Label: models.Bullish, Confidence: 0.6}, now)
	assert.InDelta(t, 97.4, bull.ExpectedRange.Min, 1e-9)
	assert.InDelta(t, 102.6, bull.ExpectedRange.Max, 1e-9)
	assert.InDelta(t, 97.0, bull.Invalidation, 1e-9)
	assert.Equal(t, models.Bullish, bull.Bias)
	assert.Equal(t, now, bull.Timestamp)

	bear := BuildForecast(100, 2, models.Signal{Label: models.Bearish, Confidence: 0}, now)
	assert.InDelta(t, 98.0, bear.ExpectedRange.Min, 1e-9)
	assert.InDelta(t, 103.0, bear.Invalidation, 1e-9)

	flat := BuildForecast(100, 2, models.Signal{Label: models.Neutral, Confidence: 1}, now)
	assert.InDelta(t, 97.0, flat.ExpectedRange.Min, 1e-9)
	assert.Zero(t, flat.Invalidation)
}

func TestForecastComputeErrors(t *testing.T) {
	env := newTestEnv(t)
	series := models.NewSeries("AAA", models.TF1h, risingBars(40, 100, 1, time.Now(), time.Hour))
	fc := NewForecastEngine(staticSource{"AAA": series}, env.state, models.TF1h)

	_, err := fc.Compute(env.ctx, "AAA")
	assert.True(t, errors.Is(err, models.ErrUnknownInstrument))

	env.state.Ensure(env.ctx, "AAA")
	_, err = fc.Compute(env.ctx, "AAA")
	assert.True(t, errors.Is(err, models.ErrNoStrategy))

	require.NoError(t, env.state.UpdateStrategy(env.ctx, "AAA", "general"))
	_, err = fc.Compute(env.ctx, "AAA")
	assert.True(t, errors.Is(err, models.ErrNoSignal))

	env.state.Ensure(env.ctx, "BBB")
	require.NoError(t, env.state.UpdateStrategy(env.ctx, "BBB", "general"))
	_, err = fc.Compute(env.ctx, "BBB")
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
}

func TestForecastComputeStoresForecast(t *testing.T) {
	env := newTestEnv(t)
	series := models.NewSeries("AAA", models.TF1h, risingBars(40, 100, 1, time.Now(), time.Hour))
	fc := NewForecastEngine(staticSource{"AAA": series}, env.state, models.TF1h)

	require.NoError(t, env.state.UpdateStrategy(env.ctx, "AAA", "general"))
	require.NoError(t, env.state.UpdateSignal(env.ctx, "AAA", models.Signal{Label: models.Bullish, Confidence: 0.5}))

	got, err := fc.Compute(env.ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 139.0, got.Price)
	assert.InDelta(t, 2.0, got.VolatilityATR, 1e-9)

	require.NoError(t, env.state.UpdatePrice(env.ctx, "AAA", 150))
	got, err = fc.Compute(env.ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Price)
	assert.InDelta(t, 147.0, got.Invalidation, 1e-9)

	st, ok := env.state.GetState("AAA")
	require.True(t, ok)
	require.NotNil(t, st.ExpectedMove)
	assert.Equal(t, 150.0, st.ExpectedMove.Price)
}
