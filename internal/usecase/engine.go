package usecase

import (
	"fmt"
	"strings"
	"time"

	"TickerPulse/internal/domain/models"
)

// Phase is the orchestrator lifecycle state.
type Phase int32

const (
	PhaseStopped Phase = iota
	PhaseDiscovering
	PhaseBulkFetching
	PhaseRanking
	PhaseInitialSignaling
	PhaseRunning
	PhaseStopping
)

var phaseNames = [...]string{
	PhaseStopped:          "stopped",
	PhaseDiscovering:      "discovering",
	PhaseBulkFetching:     "bulk_fetching",
	PhaseRanking:          "ranking",
	PhaseInitialSignaling: "initial_signaling",
	PhaseRunning:          "running",
	PhaseStopping:         "stopping",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Mode scales the loop intervals.
type Mode string

const (
	ModeConservative Mode = "conservative"
	ModeBalanced     Mode = "balanced"
	ModeAggressive   Mode = "aggressive"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeConservative, ModeBalanced, ModeAggressive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown engine mode %q", s)
	}
}

// Scale is the multiplier applied to every loop interval.
func (m Mode) Scale() float64 {
	switch m {
	case ModeConservative:
		return 2
	case ModeAggressive:
		return 0.5
	default:
		return 1
	}
}

// EngineConfig holds the orchestrator's scheduling parameters.
type EngineConfig struct {
	FocusRegion     models.Region
	Mode            Mode
	DiscoveryLimit  int
	MoversLimit     int
	ExpandThreshold int

	DiscoveryInterval time.Duration
	DiscoveryRetry    time.Duration
	IntelligenceEvery time.Duration
	IntelligenceRetry time.Duration
	LiveInterval      time.Duration
	ClosedSleep       time.Duration
	StopTimeout       time.Duration

	SignalTimeframe     models.Timeframe
	SkipStartupSequence bool
}

// DefaultEngineConfig mirrors the shipped configuration defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FocusRegion:       models.RegionUS,
		Mode:              ModeBalanced,
		DiscoveryLimit:    50,
		MoversLimit:       20,
		ExpandThreshold:   65,
		DiscoveryInterval: 10 * time.Minute,
		DiscoveryRetry:    5 * time.Minute,
		IntelligenceEvery: 30 * time.Second,
		IntelligenceRetry: 60 * time.Second,
		LiveInterval:      15 * time.Second,
		ClosedSleep:       5 * time.Minute,
		StopTimeout:       30 * time.Second,
		SignalTimeframe:   models.TF1h,
	}
}

// EngineStatus is a point-in-time view of the orchestrator.
type EngineStatus struct {
	Phase   string          `json:"phase"`
	Running bool            `json:"running"`
	Focus   models.Region   `json:"focus_region"`
	Mode    Mode            `json:"mode"`
	Tracked int             `json:"tracked"`
	Regions []models.Region `json:"regions"`
}
