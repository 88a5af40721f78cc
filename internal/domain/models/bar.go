package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Timeframe is the bar granularity of a series.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF1d  Timeframe = "1d"
)

// ParseTimeframe validates a raw timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case TF1m, TF5m, TF15m, TF1h, TF1d:
		return tf, nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
}

// Intraday reports whether bars are shorter than a day.
func (tf Timeframe) Intraday() bool {
	return tf != TF1d
}

// Bar is one OHLCV record.
type Bar struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered run of bars for one (instrument, timeframe) pair.
// Bar times are strictly increasing.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

// NewSeries sorts bars by time and drops duplicate timestamps, keeping the last one seen.
func NewSeries(symbol string, tf Timeframe, bars []Bar) *Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &Series{Symbol: symbol, Timeframe: tf, Bars: out}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// LastTime returns the newest bar time, zero for an empty series.
func (s *Series) LastTime() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// LastClose returns the newest finite, positive close.
func (s *Series) LastClose() (float64, bool) {
	if s == nil {
		return 0, false
	}
	for i := len(s.Bars) - 1; i >= 0; i-- {
		c := s.Bars[i].Close
		if c > 0 && !math.IsNaN(c) && !math.IsInf(c, 0) {
			return c, true
		}
	}
	return 0, false
}

// Tail returns the last n bars (all of them when n <= 0 or exceeds the length).
func (s *Series) Tail(n int) []Bar {
	if n <= 0 || n >= s.Len() {
		return s.Bars
	}
	return s.Bars[len(s.Bars)-n:]
}

func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

func (s *Series) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

func (s *Series) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *Series) column(pick func(Bar) float64) []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = pick(b)
	}
	return out
}
