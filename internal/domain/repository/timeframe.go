package repository

import (
	"time"

	"TickerPulse/internal/domain/models"
)

// Lookback is a provider range expression such as "60d" or "1y".
type Lookback string

const (
	Lookback1d  Lookback = "1d"
	Lookback2d  Lookback = "2d"
	Lookback5d  Lookback = "5d"
	Lookback7d  Lookback = "7d"
	Lookback60d Lookback = "60d"
	Lookback1y  Lookback = "1y"
)

var lookbacks = map[models.Timeframe]Lookback{
	models.TF1m:  Lookback7d,
	models.TF5m:  Lookback60d,
	models.TF15m: Lookback60d,
	models.TF1h:  Lookback60d,
	models.TF1d:  Lookback1y,
}

// LookbackFor maps a timeframe to the refresh window. Finer bars get shorter windows.
func LookbackFor(tf models.Timeframe) Lookback {
	if lb, ok := lookbacks[tf]; ok {
		return lb
	}
	return Lookback60d
}

// FreshnessFor is the maximum age of a cached series before a refresh is attempted.
func FreshnessFor(tf models.Timeframe) time.Duration {
	if tf.Intraday() {
		return time.Hour
	}
	return 24 * time.Hour
}
