// Package strategy holds the closed set of signal strategies.
package strategy

import (
	"math"

	"TickerPulse/internal/domain/models"
)

// Kind enumerates the strategy variants.
type Kind int

const (
	KindEMACrossoverRSI Kind = iota
	KindBollingerReversion
	KindVolumeSpike
	KindPennyBreakout
)

// Tier is the price band a strategy may trade.
type Tier int

const (
	// TierGeneral is for instruments priced at or above PennyFloor.
	TierGeneral Tier = iota
	// TierPenny is for instruments priced below PennyCeiling.
	TierPenny
)

const (
	PennyFloor   = 1.0
	PennyCeiling = 5.0
)

// Strategy turns a series into per-bar signals. Implementations are pure.
type Strategy interface {
	Kind() Kind
	Name() string
	Tier() Tier
	MinLookback() int
	// GenerateSignals returns one point per bar.
	GenerateSignals(series *models.Series) []models.SignalPoint
	// CurrentSignal is the signal at the latest bar.
	CurrentSignal(series *models.Series) models.Signal
}

// Eligible reports whether a strategy of tier may run on an instrument at price.
func Eligible(tier Tier, price float64) bool {
	if math.IsNaN(price) {
		return false
	}
	switch tier {
	case TierPenny:
		return price < PennyCeiling
	default:
		return price >= PennyFloor
	}
}

// Catalog is the ordered set of available strategies.
type Catalog struct {
	strategies []Strategy
	byName     map[string]Strategy
}

// NewCatalog builds a catalog; the first strategy is the default.
func NewCatalog(strategies ...Strategy) *Catalog {
	c := &Catalog{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		c.strategies = append(c.strategies, s)
		c.byName[s.Name()] = s
	}
	return c
}

// DefaultCatalog returns every variant with its standard parameters.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		NewEMACrossoverRSI(12, 26, 14),
		NewBollingerReversion(20, 2),
		NewVolumeSpike(20, 2),
		NewPennyBreakout(),
	)
}

func (c *Catalog) All() []Strategy {
	out := make([]Strategy, len(c.strategies))
	copy(out, c.strategies)
	return out
}

func (c *Catalog) Lookup(name string) (Strategy, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Default is the fallback for instruments without a selected strategy.
func (c *Catalog) Default() Strategy {
	return c.strategies[0]
}

// Resolve returns the named strategy, or the default when the name is unknown or empty.
func (c *Catalog) Resolve(name string) Strategy {
	if s, ok := c.byName[name]; ok {
		return s
	}
	return c.Default()
}

// currentFromPoints builds the latest-bar Signal shared by all variants.
func currentFromPoints(s Strategy, series *models.Series, points func() []models.SignalPoint) models.Signal {
	sig := models.Signal{
		Ticker:   series.Symbol,
		Strategy: s.Name(),
		Label:    models.Neutral,
	}
	if series.Len() == 0 {
		sig.Note = models.ErrInsufficientData.Error()
		return sig
	}
	last := series.Bars[series.Len()-1]
	sig.Price = last.Close
	sig.Timestamp = last.Time
	if series.Len() < s.MinLookback() {
		sig.Note = models.ErrInsufficientData.Error()
		return sig
	}

	pts := points()
	p := pts[len(pts)-1]
	sig.Label = p.Label
	sig.Confidence = p.Confidence
	sig.Indicators = p.Indicators.Sanitized()
	return sig
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func neutralPoints(n int) []models.SignalPoint {
	out := make([]models.SignalPoint, n)
	for i := range out {
		out[i].Label = models.Neutral
	}
	return out
}
