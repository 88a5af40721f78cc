package strategy

import (
	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
)

const (
	pennyPeriod    = 20
	pennyATRPeriod = 14
	pennyRSIPeriod = 14
	pennySurge     = 2.5
)

// PennyBreakout trades volume surges through the 20-bar mean on low-priced instruments.
type PennyBreakout struct{}

func NewPennyBreakout() *PennyBreakout { return &PennyBreakout{} }

func (s *PennyBreakout) Kind() Kind       { return KindPennyBreakout }
func (s *PennyBreakout) Name() string     { return "Penny Breakout" }
func (s *PennyBreakout) Tier() Tier       { return TierPenny }
func (s *PennyBreakout) MinLookback() int { return pennyPeriod }

func (s *PennyBreakout) GenerateSignals(series *models.Series) []models.SignalPoint {
	n := series.Len()
	if n < pennyPeriod {
		return neutralPoints(n)
	}
	closes := series.Closes()
	volumes := series.Volumes()
	volAvg := indicator.SMA(volumes, pennyPeriod)
	closeAvg := indicator.SMA(closes, pennyPeriod)
	atr := indicator.WilderATR(series.Highs(), series.Lows(), closes, pennyATRPeriod)
	rsi := indicator.RSI(closes, pennyRSIPeriod)

	out := neutralPoints(n)
	for i := range closes {
		if !indicator.Valid(volAvg[i]) || volAvg[i] <= 0 {
			continue
		}
		surge := volumes[i] / volAvg[i]
		ind := models.Indicators{
			VolumeSurge: models.Float(surge),
			RSI:         models.Float(rsi[i]),
		}
		if indicator.Valid(atr[i]) && closes[i] > 0 {
			ind.VolatilityRatio = models.Float(atr[i] / closes[i])
		}
		out[i].Indicators = ind
		if surge <= pennySurge || !indicator.Valid(rsi[i]) || !indicator.Valid(closeAvg[i]) {
			continue
		}
		switch {
		case closes[i] > closeAvg[i] && rsi[i] < 80:
			out[i].Label = models.Bullish
		case closes[i] < closeAvg[i] && rsi[i] > 20:
			out[i].Label = models.Bearish
		default:
			continue
		}
		out[i].Confidence = clamp(surge/10, 0.1, 0.95)
	}
	return out
}

func (s *PennyBreakout) CurrentSignal(series *models.Series) models.Signal {
	return currentFromPoints(s, series, func() []models.SignalPoint { return s.GenerateSignals(series) })
}
