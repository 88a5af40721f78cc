package usecase

import (
	"context"
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
	"TickerPulse/internal/state"
)

const (
	atrPeriod           = 14
	fallbackATRFraction = 0.01
	invalidationATRs    = 1.5
)

// ForecastEngine derives the expected move from the last signal and the ATR.
type ForecastEngine struct {
	data      SeriesSource
	state     *state.Cache
	timeframe models.Timeframe
	now       func() time.Time
}

func NewForecastEngine(data SeriesSource, st *state.Cache, tf models.Timeframe) *ForecastEngine {
	if tf == "" {
		tf = models.TF1h
	}
	return &ForecastEngine{data: data, state: st, timeframe: tf, now: time.Now}
}

// Compute builds and stores the forecast. It needs a selected strategy, a
// non-empty series and a last signal; otherwise ErrNoStrategy, ErrDataUnavailable or ErrNoSignal.
func (f *ForecastEngine) Compute(ctx context.Context, symbol string) (*models.Forecast, error) {
	st, ok := f.state.GetState(symbol)
	if !ok {
		return nil, fmt.Errorf("forecast %s: %w", symbol, models.ErrUnknownInstrument)
	}
	if st.BestStrategy == nil || *st.BestStrategy == "" {
		return nil, fmt.Errorf("forecast %s: %w", symbol, models.ErrNoStrategy)
	}

	series, err := f.data.Get(ctx, symbol, f.timeframe)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", symbol, err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("forecast %s: %w", symbol, models.ErrDataUnavailable)
	}

	var price float64
	if st.LastPrice != nil {
		price = *st.LastPrice
	} else {
		price = series.Bars[series.Len()-1].Close
	}

	if st.LastSignal == nil {
		return nil, fmt.Errorf("forecast %s: %w", symbol, models.ErrNoSignal)
	}

	fc := BuildForecast(price, LatestATR(series, price), *st.LastSignal, f.now())
	if err := f.state.UpdateForecast(ctx, symbol, fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// LatestATR is the latest 14-bar ATR, or 1% of price when it is not yet defined.
func LatestATR(series *models.Series, price float64) float64 {
	atr := indicator.Last(indicator.ATR(series.Highs(), series.Lows(), series.Closes(), atrPeriod))
	if !indicator.Valid(atr) {
		return fallbackATRFraction * price
	}
	return atr
}

// BuildForecast widens the ATR band by the signal confidence and places the
// invalidation point 1.5 ATR against the bias.
func BuildForecast(price, atr float64, sig models.Signal, now time.Time) models.Forecast {
	mult := 1 + 0.5*sig.Confidence
	fc := models.Forecast{
		Price:      price,
		Bias:       sig.Label,
		Confidence: sig.Confidence,
		ExpectedRange: models.PriceRange{
			Min: price - atr*mult,
			Max: price + atr*mult,
		},
		VolatilityATR: atr,
		Timestamp:     now,
	}
	switch sig.Label {
	case models.Bullish:
		fc.Invalidation = price - invalidationATRs*atr
	case models.Bearish:
		fc.Invalidation = price + invalidationATRs*atr
	}
	return fc
}
