package repository

import (
	"context"

	"TickerPulse/internal/domain/models"
)

// MarketDataProvider is the upstream OHLCV source.
type MarketDataProvider interface {
	// FetchSeries fetches bars for one instrument over the lookback window.
	FetchSeries(ctx context.Context, symbol string, tf models.Timeframe, lookback Lookback) (*models.Series, error)
	// FetchBatch fetches many instruments. Failed or empty instruments are absent
	// from the result map; the error is non-nil only when the whole batch failed.
	FetchBatch(ctx context.Context, symbols []string, tf models.Timeframe, lookback Lookback) (map[string]*models.Series, error)
}

// SeriesStore persists one series artifact per (instrument, timeframe).
type SeriesStore interface {
	Load(ctx context.Context, symbol string, tf models.Timeframe) (*models.Series, error)
	Save(ctx context.Context, series *models.Series) error
	// Footprint is the total on-disk size in bytes.
	Footprint() (int64, error)
}

// StateRepository is the durable store behind the state cache.
// Both writes are upserts.
type StateRepository interface {
	Init(ctx context.Context) error
	UpsertTickerState(ctx context.Context, state models.TickerState) error
	LoadTickerStates(ctx context.Context) ([]models.TickerState, error)
	UpsertMetrics(ctx context.Context, m models.SystemMetrics) error
	LoadMetrics(ctx context.Context) (*models.SystemMetrics, error)
	Close() error
}

// UniverseRepository persists the tracked instrument list.
type UniverseRepository interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, symbols []string) error
}

// ListingSource yields symbols from one public index listing.
type ListingSource interface {
	Name() string
	FetchSymbols(ctx context.Context) ([]string, error)
}

// StateListener observes state mutations. Implementations must not block.
type StateListener interface {
	OnStateChange(change models.StateChange)
}

// Metrics records engine activity.
type Metrics interface {
	RecordFetch(source, result string)
	RecordError(component string)
	RecordLatency(op string, seconds float64)
	RecordLoop(loop, result string)
	SetTracked(n int)
}
