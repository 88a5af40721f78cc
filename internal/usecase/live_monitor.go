package usecase

import (
	"context"
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/markethours"
	"TickerPulse/internal/state"
	applogger "TickerPulse/pkg/logger"
)

type LiveOption func(*LiveMonitor)

func WithLiveLogger(l *applogger.Logger) LiveOption {
	return func(m *LiveMonitor) { m.log = l }
}

func WithLiveMetrics(mt drepo.Metrics) LiveOption {
	return func(m *LiveMonitor) { m.metrics = mt }
}

func WithLiveChunks(size int, pause time.Duration) LiveOption {
	return func(m *LiveMonitor) {
		m.chunkSize = size
		m.chunkPause = pause
	}
}

// WithSessionCheck replaces the market-hours test used by Step.
func WithSessionCheck(open func(time.Time, []models.Region) bool) LiveOption {
	return func(m *LiveMonitor) { m.isOpen = open }
}

func WithLiveClock(now func() time.Time) LiveOption {
	return func(m *LiveMonitor) { m.now = now }
}

// LiveMonitor refreshes last prices for the whole universe from one-minute bars.
type LiveMonitor struct {
	provider drepo.MarketDataProvider
	universe *state.Universe
	state    *state.Cache
	log      *applogger.Logger
	metrics  drepo.Metrics

	chunkSize  int
	chunkPause time.Duration
	isOpen     func(time.Time, []models.Region) bool
	now        func() time.Time
}

func NewLiveMonitor(provider drepo.MarketDataProvider, universe *state.Universe, st *state.Cache, opts ...LiveOption) *LiveMonitor {
	m := &LiveMonitor{
		provider:   provider,
		universe:   universe,
		state:      st,
		log:        applogger.NewNop(),
		chunkSize:  100,
		chunkPause: 500 * time.Millisecond,
		isOpen:     markethours.AnyOpen,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Step polls once when a tracked session is open and reports whether it did.
func (m *LiveMonitor) Step(ctx context.Context) bool {
	if !m.isOpen(m.now(), m.universe.Regions()) {
		return false
	}
	report := m.PollOnce(ctx)
	m.log.Debug("live poll complete",
		applogger.Int("updated", report.Count(OutcomeOK)),
		applogger.Int("skipped", report.Count(OutcomeSkipped)),
		applogger.Int("failed", report.Count(OutcomeFailed)),
	)
	return true
}

// PollOnce fetches the latest minute bars in chunks and writes last prices.
func (m *LiveMonitor) PollOnce(ctx context.Context) BatchReport {
	var report BatchReport
	chunks := chunk(m.universe.Snapshot(), m.chunkSize)
	for i, c := range chunks {
		if ctx.Err() != nil {
			return report
		}
		batch, err := m.provider.FetchBatch(ctx, c, models.TF1m, drepo.Lookback1d)
		if err != nil {
			m.state.AddError(ctx, fmt.Sprintf("live poll failed: %v", err))
			if m.metrics != nil {
				m.metrics.RecordError("live_monitor")
			}
			for _, sym := range c {
				report.Fail(sym, err)
			}
		} else {
			for _, sym := range c {
				price, ok := batch[sym].LastClose()
				if !ok {
					report.Skip(sym, models.ErrDataUnavailable)
					continue
				}
				if err := m.state.UpdatePrice(ctx, sym, price); err != nil {
					m.log.Debug("price update rejected", applogger.String("ticker", sym), applogger.Error(err))
					report.Fail(sym, err)
					continue
				}
				report.OK(sym)
			}
		}
		if i < len(chunks)-1 && !pause(ctx, m.chunkPause) {
			return report
		}
	}
	return report
}
