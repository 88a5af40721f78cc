package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/strategy"
)

var (
	generalStub = stubStrategy{name: "general", tier: strategy.TierGeneral, label: models.Bullish}
	pennyStub   = stubStrategy{name: "penny", tier: strategy.TierPenny, label: models.Bullish}
)

func flatSeries(symbol string, price float64) *models.Series {
	return models.NewSeries(symbol, models.TF1h, flatBars(60, price, time.Now()))
}

func TestSelectOnePriceBoundaries(t *testing.T) {
	cases := []struct {
		price   float64
		catalog *strategy.Catalog
		want    string
		wantErr error
	}{
		{price: 0.99, catalog: strategy.NewCatalog(generalStub), wantErr: models.ErrEligibilityMismatch},
		{price: 1.00, catalog: strategy.NewCatalog(generalStub), want: "general"},
		{price: 4.99, catalog: strategy.NewCatalog(pennyStub), want: "penny"},
		{price: 5.00, catalog: strategy.NewCatalog(pennyStub), wantErr: models.ErrEligibilityMismatch},
		{price: 0.99, catalog: strategy.NewCatalog(generalStub, pennyStub), want: "penny"},
		{price: 5.00, catalog: strategy.NewCatalog(pennyStub, generalStub), want: "general"},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		sel := NewSelector(staticSource{"AAA": flatSeries("AAA", tc.price)}, tc.catalog, env.state, nil, nil, models.TF1h, 0)

		perf, err := sel.SelectOne(env.ctx, "AAA")
		if tc.wantErr != nil {
			assert.True(t, errors.Is(err, tc.wantErr), "price %.2f: %v", tc.price, err)
			_, ok := env.state.GetState("AAA")
			assert.False(t, ok)
			continue
		}
		require.NoError(t, err, "price %.2f", tc.price)
		assert.Equal(t, tc.want, perf.Strategy)

		st, ok := env.state.GetState("AAA")
		require.True(t, ok)
		require.NotNil(t, st.BestStrategy)
		assert.Equal(t, tc.want, *st.BestStrategy)
	}
}

func TestSelectOneTieKeepsFirst(t *testing.T) {
	env := newTestEnv(t)
	first := stubStrategy{name: "first", label: models.Bullish}
	second := stubStrategy{name: "second", label: models.Bullish}
	sel := NewSelector(staticSource{"AAA": flatSeries("AAA", 20)}, strategy.NewCatalog(first, second), env.state, nil, nil, models.TF1h, 0)

	perf, err := sel.SelectOne(env.ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, "first", perf.Strategy)
}

func TestSelectOnePrefersHigherScore(t *testing.T) {
	env := newTestEnv(t)
	series := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, time.Now(), time.Hour))
	short := stubStrategy{name: "short", label: models.Bearish}
	long := stubStrategy{name: "long", label: models.Bullish}
	sel := NewSelector(staticSource{"AAA": series}, strategy.NewCatalog(short, long), env.state, nil, nil, models.TF1h, 0)

	perf, err := sel.SelectOne(env.ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, "long", perf.Strategy)
}

func TestSelectOneShortSeries(t *testing.T) {
	env := newTestEnv(t)
	series := models.NewSeries("AAA", models.TF1h, flatBars(10, 20, time.Now()))
	sel := NewSelector(staticSource{"AAA": series}, strategy.NewCatalog(generalStub), env.state, nil, nil, models.TF1h, 0)

	_, err := sel.SelectOne(env.ctx, "AAA")
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestSelectBestReport(t *testing.T) {
	env := newTestEnv(t)
	src := staticSource{
		"AAA":   flatSeries("AAA", 20),
		"PENNY": flatSeries("PENNY", 0.5),
	}
	sel := NewSelector(src, strategy.NewCatalog(generalStub), env.state, nil, nil, models.TF1h, 2)

	report := sel.SelectBest(env.ctx, []string{"AAA", "PENNY", "MISSING"})

	assert.Equal(t, []string{"AAA"}, report.Symbols(OutcomeOK))
	assert.Equal(t, []string{"PENNY"}, report.Symbols(OutcomeSkipped))
	assert.Equal(t, []string{"MISSING"}, report.Symbols(OutcomeFailed))

	m := env.state.GetMetrics()
	assert.Equal(t, 3, m.ProcessedCount)
	assert.Zero(t, m.ErrorCount)
}
