package strategy

import (
	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
)

// VolumeSpike follows the price direction of bars whose volume spikes above its average.
type VolumeSpike struct {
	period    int
	threshold float64
}

func NewVolumeSpike(period int, threshold float64) *VolumeSpike {
	return &VolumeSpike{period: period, threshold: threshold}
}

func (s *VolumeSpike) Kind() Kind       { return KindVolumeSpike }
func (s *VolumeSpike) Name() string     { return "Volume_Spike_Confirmation" }
func (s *VolumeSpike) Tier() Tier       { return TierGeneral }
func (s *VolumeSpike) MinLookback() int { return s.period }

func (s *VolumeSpike) GenerateSignals(series *models.Series) []models.SignalPoint {
	closes := series.Closes()
	volumes := series.Volumes()
	avg := indicator.SMA(volumes, s.period)
	change := indicator.PctChange(closes)

	out := neutralPoints(len(closes))
	for i := range closes {
		if !indicator.Valid(avg[i]) || avg[i] <= 0 {
			continue
		}
		ratio := volumes[i] / avg[i]
		out[i].Indicators = models.Indicators{
			Volume:      models.Float(volumes[i]),
			AvgVolume:   models.Float(avg[i]),
			VolumeRatio: models.Float(ratio),
		}
		if volumes[i] <= avg[i]*s.threshold || !indicator.Valid(change[i]) {
			continue
		}
		switch {
		case change[i] > 0:
			out[i].Label = models.Bullish
		case change[i] < 0:
			out[i].Label = models.Bearish
		default:
			continue
		}
		out[i].Confidence = clamp(ratio/(2*s.threshold), 0, 1)
	}
	return out
}

func (s *VolumeSpike) CurrentSignal(series *models.Series) models.Signal {
	return currentFromPoints(s, series, func() []models.SignalPoint { return s.GenerateSignals(series) })
}
