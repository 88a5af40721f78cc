package strategy

import (
	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
)

// EMACrossoverRSI follows a fast/slow EMA crossover confirmed by RSI momentum.
type EMACrossoverRSI struct {
	fast, slow, rsiPeriod int
}

func NewEMACrossoverRSI(fast, slow, rsiPeriod int) *EMACrossoverRSI {
	return &EMACrossoverRSI{fast: fast, slow: slow, rsiPeriod: rsiPeriod}
}

func (s *EMACrossoverRSI) Kind() Kind       { return KindEMACrossoverRSI }
func (s *EMACrossoverRSI) Name() string     { return "EMA_Crossover_RSI" }
func (s *EMACrossoverRSI) Tier() Tier       { return TierGeneral }
func (s *EMACrossoverRSI) MinLookback() int { return s.slow }

func (s *EMACrossoverRSI) GenerateSignals(series *models.Series) []models.SignalPoint {
	closes := series.Closes()
	fast := indicator.EMA(closes, s.fast)
	slow := indicator.EMA(closes, s.slow)
	rsi := indicator.RSI(closes, s.rsiPeriod)

	out := neutralPoints(len(closes))
	for i := range closes {
		out[i].Indicators = models.Indicators{
			FastEMA: models.Float(fast[i]),
			SlowEMA: models.Float(slow[i]),
			RSI:     models.Float(rsi[i]),
		}
		if !indicator.Valid(fast[i]) || !indicator.Valid(slow[i]) || !indicator.Valid(rsi[i]) {
			continue
		}
		switch {
		case fast[i] > slow[i] && rsi[i] > 50:
			out[i].Label = models.Bullish
			out[i].Confidence = clamp((rsi[i]-50)/40, 0, 1)
		case fast[i] < slow[i] && rsi[i] < 40:
			out[i].Label = models.Bearish
			out[i].Confidence = clamp((50-rsi[i])/40, 0, 1)
		}
	}
	return out
}

func (s *EMACrossoverRSI) CurrentSignal(series *models.Series) models.Signal {
	return currentFromPoints(s, series, func() []models.SignalPoint { return s.GenerateSignals(series) })
}
