package usecase

import (
	"fmt"
	"math"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
	"TickerPulse/internal/strategy"
)

const (
	// MinEvaluationBars is the shortest series a backtest accepts.
	MinEvaluationBars = 50

	minSharpeBets  = 6
	annualization  = 252
	noLossFactor   = 2.0
	confidenceLow  = 0.1
	confidenceHigh = 0.98
)

// Evaluate backtests st on series. Each bullish or bearish bar is a bet on the
// next bar's close-to-close return; bearish bets gain when the price falls.
func Evaluate(st strategy.Strategy, series *models.Series) (models.Performance, error) {
	if series.Len() < MinEvaluationBars {
		return models.Performance{}, fmt.Errorf("evaluate %s: %d bars: %w", st.Name(), series.Len(), models.ErrInsufficientData)
	}

	points := st.GenerateSignals(series)
	closes := series.Closes()
	returns := betReturns(points, closes)

	perf := models.Performance{
		Strategy:     st.Name(),
		TotalTrades:  len(returns),
		ProfitFactor: 1.0,
	}

	avg := 0.0
	if n := len(returns); n > 0 {
		wins := 0
		for _, r := range returns {
			if r > 0 {
				wins++
			}
		}
		perf.WinRate = float64(wins) / float64(n)
		avg = indicator.Mean(returns)
		perf.CumulativeReturn, perf.MaxDrawdown = equityCurve(returns)
		perf.ProfitFactor = profitFactor(returns)
		if n >= minSharpeBets {
			if std := indicator.SampleStd(returns); std > 0 {
				perf.SharpeRatio = avg / std * math.Sqrt(annualization)
			}
		}
	}

	perf.Confidence = Confidence(perf.WinRate, perf.ProfitFactor, perf.SharpeRatio)
	perf.Score = perf.Confidence * (1 + avg)
	return perf, nil
}

// Confidence blends win rate, profit factor and Sharpe ratio into [0.1, 0.98].
func Confidence(winRate, profitFactor, sharpe float64) float64 {
	c := 0.4*finiteOr(winRate, 0) +
		0.3*math.Min(finiteOr(profitFactor, 0), 2)/2 +
		0.3*math.Min(math.Max(finiteOr(sharpe, 0), 0), 3)/3
	return math.Max(confidenceLow, math.Min(confidenceHigh, c))
}

func betReturns(points []models.SignalPoint, closes []float64) []float64 {
	var out []float64
	for i := 0; i+1 < len(closes) && i < len(points); i++ {
		label := points[i].Label
		if label != models.Bullish && label != models.Bearish {
			continue
		}
		c0, c1 := closes[i], closes[i+1]
		if !(c0 > 0) || !indicator.Valid(c1) {
			continue
		}
		r := (c1 - c0) / c0
		if label == models.Bearish {
			r = -r
		}
		out = append(out, r)
	}
	return out
}

// equityCurve compounds returns and reports the final return and the deepest
// peak-to-trough drawdown (zero or negative). The curve starts after the first bet.
func equityCurve(returns []float64) (cumulative, maxDrawdown float64) {
	equity, peak := 1.0, math.Inf(-1)
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (equity - peak) / peak; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}
	return equity - 1, maxDrawdown
}

func profitFactor(returns []float64) float64 {
	pos, neg := 0.0, 0.0
	for _, r := range returns {
		switch {
		case r > 0:
			pos += r
		case r < 0:
			neg -= r
		}
	}
	switch {
	case neg > 0:
		return pos / neg
	case pos > 0:
		return noLossFactor
	default:
		return 1.0
	}
}

func finiteOr(v, def float64) float64 {
	if !indicator.Valid(v) {
		return def
	}
	return v
}
