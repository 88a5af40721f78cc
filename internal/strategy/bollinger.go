package strategy

import (
	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
)

// BollingerReversion fades closes outside the bands.
type BollingerReversion struct {
	period int
	k      float64
}

func NewBollingerReversion(period int, k float64) *BollingerReversion {
	return &BollingerReversion{period: period, k: k}
}

func (s *BollingerReversion) Kind() Kind       { return KindBollingerReversion }
func (s *BollingerReversion) Name() string     { return "Bollinger_Bands_Reversion" }
func (s *BollingerReversion) Tier() Tier       { return TierGeneral }
func (s *BollingerReversion) MinLookback() int { return s.period }

func (s *BollingerReversion) GenerateSignals(series *models.Series) []models.SignalPoint {
	closes := series.Closes()
	bands := indicator.Bollinger(closes, s.period, s.k)

	out := neutralPoints(len(closes))
	for i, c := range closes {
		lo, hi := bands.Lower[i], bands.Upper[i]
		if !indicator.Valid(lo) || !indicator.Valid(hi) {
			continue
		}
		width := hi - lo
		pctB := 0.5
		if width > 0 {
			pctB = (c - lo) / width
		}
		out[i].Indicators = models.Indicators{
			LowerBand: models.Float(lo),
			UpperBand: models.Float(hi),
			PercentB:  models.Float(pctB),
		}
		if width <= 0 {
			continue
		}
		switch {
		case c < lo:
			out[i].Label = models.Bullish
			out[i].Confidence = clamp((lo-c)/width, 0, 1)
		case c > hi:
			out[i].Label = models.Bearish
			out[i].Confidence = clamp((c-hi)/width, 0, 1)
		}
	}
	return out
}

func (s *BollingerReversion) CurrentSignal(series *models.Series) models.Signal {
	return currentFromPoints(s, series, func() []models.SignalPoint { return s.GenerateSignals(series) })
}
