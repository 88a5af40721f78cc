package models

import (
	"math"
	"time"
)

// SignalLabel is the directional bias of a signal.
type SignalLabel string

const (
	Bullish SignalLabel = "bullish"
	Bearish SignalLabel = "bearish"
	Neutral SignalLabel = "neutral"
)

// ParseSignalLabel returns false for anything outside the three labels.
func ParseSignalLabel(s string) (SignalLabel, bool) {
	switch l := SignalLabel(s); l {
	case Bullish, Bearish, Neutral:
		return l, true
	default:
		return "", false
	}
}

// Indicators is the flat set of indicator readings a strategy may attach to a signal.
// Unset readings stay nil.
type Indicators struct {
	FastEMA         *float64 `json:"fast_ema,omitempty"`
	SlowEMA         *float64 `json:"slow_ema,omitempty"`
	RSI             *float64 `json:"rsi,omitempty"`
	LowerBand       *float64 `json:"lower_band,omitempty"`
	UpperBand       *float64 `json:"upper_band,omitempty"`
	PercentB        *float64 `json:"percent_b,omitempty"`
	Volume          *float64 `json:"volume,omitempty"`
	AvgVolume       *float64 `json:"avg_volume,omitempty"`
	VolumeRatio     *float64 `json:"volume_ratio,omitempty"`
	VolumeSurge     *float64 `json:"volume_surge,omitempty"`
	VolatilityRatio *float64 `json:"volatility_ratio,omitempty"`
}

// Sanitized returns a copy with every non-finite reading cleared.
func (in Indicators) Sanitized() Indicators {
	clean := func(p *float64) *float64 {
		if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
			return nil
		}
		v := *p
		return &v
	}
	return Indicators{
		FastEMA:         clean(in.FastEMA),
		SlowEMA:         clean(in.SlowEMA),
		RSI:             clean(in.RSI),
		LowerBand:       clean(in.LowerBand),
		UpperBand:       clean(in.UpperBand),
		PercentB:        clean(in.PercentB),
		Volume:          clean(in.Volume),
		AvgVolume:       clean(in.AvgVolume),
		VolumeRatio:     clean(in.VolumeRatio),
		VolumeSurge:     clean(in.VolumeSurge),
		VolatilityRatio: clean(in.VolatilityRatio),
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// SignalPoint is a strategy's output for a single bar.
type SignalPoint struct {
	Label      SignalLabel
	Confidence float64
	Indicators Indicators
}

// Signal is the current signal of a strategy on an instrument.
type Signal struct {
	Ticker     string      `json:"ticker"`
	Strategy   string      `json:"strategy"`
	Label      SignalLabel `json:"signal"`
	Confidence float64     `json:"confidence"`
	Price      float64     `json:"price"`
	Timestamp  time.Time   `json:"timestamp"`
	Indicators Indicators  `json:"metadata"`
	// Note explains a neutral fallback, e.g. insufficient data.
	Note string `json:"note,omitempty"`
}

// Equivalent compares signals ignoring their timestamps.
func (s Signal) Equivalent(o Signal) bool {
	a, b := s, o
	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	return a.Ticker == b.Ticker && a.Strategy == b.Strategy && a.Label == b.Label &&
		a.Confidence == b.Confidence && a.Price == b.Price && a.Note == b.Note &&
		indicatorsEqual(a.Indicators, b.Indicators)
}

func indicatorsEqual(a, b Indicators) bool {
	pairs := [][2]*float64{
		{a.FastEMA, b.FastEMA}, {a.SlowEMA, b.SlowEMA}, {a.RSI, b.RSI},
		{a.LowerBand, b.LowerBand}, {a.UpperBand, b.UpperBand}, {a.PercentB, b.PercentB},
		{a.Volume, b.Volume}, {a.AvgVolume, b.AvgVolume}, {a.VolumeRatio, b.VolumeRatio},
		{a.VolumeSurge, b.VolumeSurge}, {a.VolatilityRatio, b.VolatilityRatio},
	}
	for _, p := range pairs {
		if (p[0] == nil) != (p[1] == nil) {
			return false
		}
		if p[0] != nil && *p[0] != *p[1] {
			return false
		}
	}
	return true
}
