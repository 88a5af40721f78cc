package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/state"
	"TickerPulse/pkg/cache"
	applogger "TickerPulse/pkg/logger"
)

// SeriesSource returns the freshest available series for an instrument.
type SeriesSource interface {
	Get(ctx context.Context, symbol string, tf models.Timeframe) (*models.Series, error)
}

type HistoricalOption func(*HistoricalDataCache)

func WithHistoricalLogger(l *applogger.Logger) HistoricalOption {
	return func(h *HistoricalDataCache) { h.log = l }
}

func WithHistoricalMetrics(m drepo.Metrics) HistoricalOption {
	return func(h *HistoricalDataCache) { h.metrics = m }
}

// WithRefreshLock guards refreshes across replicas with a short-lived lock in locks.
func WithRefreshLock(locks cache.Service, ttl time.Duration) HistoricalOption {
	return func(h *HistoricalDataCache) {
		h.locks = locks
		h.lockTTL = ttl
	}
}

// WithBatching sets the timeframes, chunk size and inter-chunk pause used by FetchAll.
func WithBatching(timeframes []models.Timeframe, size int, pause time.Duration) HistoricalOption {
	return func(h *HistoricalDataCache) {
		h.timeframes = timeframes
		h.chunkSize = size
		h.chunkPause = pause
	}
}

// WithRefreshTimeout bounds one provider refresh, independent of the callers waiting on it.
func WithRefreshTimeout(d time.Duration) HistoricalOption {
	return func(h *HistoricalDataCache) {
		if d > 0 {
			h.refreshTimeout = d
		}
	}
}

func WithHistoricalClock(now func() time.Time) HistoricalOption {
	return func(h *HistoricalDataCache) { h.now = now }
}

// HistoricalDataCache serves series from the on-disk cache, refreshing from the
// provider once the newest bar falls outside the freshness window.
type HistoricalDataCache struct {
	provider drepo.MarketDataProvider
	store    drepo.SeriesStore
	state    *state.Cache
	log      *applogger.Logger
	metrics  drepo.Metrics
	locks    cache.Service
	lockTTL  time.Duration

	refreshTimeout time.Duration

	timeframes []models.Timeframe
	chunkSize  int
	chunkPause time.Duration
	now        func() time.Time

	group singleflight.Group
}

var _ SeriesSource = (*HistoricalDataCache)(nil)

func NewHistoricalDataCache(provider drepo.MarketDataProvider, store drepo.SeriesStore, st *state.Cache, opts ...HistoricalOption) *HistoricalDataCache {
	h := &HistoricalDataCache{
		provider:       provider,
		store:          store,
		state:          st,
		log:            applogger.NewNop(),
		lockTTL:        2 * time.Minute,
		refreshTimeout: time.Minute,
		timeframes:     []models.Timeframe{models.TF1h, models.TF1d},
		chunkSize:      50,
		chunkPause:     time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get returns the cached series while fresh, otherwise refreshes it. A failed
// refresh falls back to the stale copy; with no copy the result is ErrDataUnavailable.
func (h *HistoricalDataCache) Get(ctx context.Context, symbol string, tf models.Timeframe) (*models.Series, error) {
	cached := h.Cached(ctx, symbol, tf)
	if cached.Len() > 0 && h.now().Sub(cached.LastTime()) < drepo.FreshnessFor(tf) {
		return cached, nil
	}

	// The shared refresh outlives any single caller; each caller only stops waiting.
	key := symbol + ":" + string(tf)
	ch := h.group.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.refreshTimeout)
		defer cancel()
		return h.refresh(rctx, symbol, tf, cached)
	})
	select {
	case <-ctx.Done():
		if cached.Len() > 0 {
			return cached, nil
		}
		return nil, fmt.Errorf("get %s %s: %w", symbol, tf, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Series), nil
	}
}

// Cached loads the on-disk series without touching the provider. Nil when absent or unreadable.
func (h *HistoricalDataCache) Cached(ctx context.Context, symbol string, tf models.Timeframe) *models.Series {
	s, err := h.store.Load(ctx, symbol, tf)
	if err != nil {
		if !errors.Is(err, models.ErrDataUnavailable) {
			h.log.Warn("read series cache failed",
				applogger.String("ticker", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
		}
		return nil
	}
	return s
}

func (h *HistoricalDataCache) refresh(ctx context.Context, symbol string, tf models.Timeframe, stale *models.Series) (*models.Series, error) {
	if h.locks != nil {
		lockKey := cache.Key("refresh", symbol, string(tf))
		ok, err := h.locks.TryLock(ctx, lockKey, h.lockTTL)
		switch {
		case err != nil:
			h.log.Debug("refresh lock unavailable", applogger.String("ticker", symbol), applogger.Error(err))
		case !ok:
			if stale.Len() > 0 {
				return stale, nil
			}
			return nil, fmt.Errorf("get %s %s: refresh in progress elsewhere: %w", symbol, tf, models.ErrDataUnavailable)
		default:
			defer func() {
				if err := h.locks.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
					h.log.Debug("release refresh lock failed", applogger.String("ticker", symbol), applogger.Error(err))
				}
			}()
		}
	}

	start := h.now()
	fresh, err := h.provider.FetchSeries(ctx, symbol, tf, drepo.LookbackFor(tf))
	if h.metrics != nil {
		h.metrics.RecordLatency("historical_refresh", h.now().Sub(start).Seconds())
	}
	if err == nil && fresh.Len() == 0 {
		err = models.ErrDataUnavailable
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			h.state.AddError(ctx, fmt.Sprintf("%s %s: %v", symbol, tf, err))
			if h.metrics != nil {
				h.metrics.RecordError("historical_fetch")
			}
		}
		if stale.Len() > 0 {
			h.log.Warn("refresh failed, serving stale cache",
				applogger.String("ticker", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
			return stale, nil
		}
		if errors.Is(err, models.ErrDataUnavailable) {
			return nil, fmt.Errorf("get %s %s: %w", symbol, tf, err)
		}
		return nil, fmt.Errorf("get %s %s: %w: %w", symbol, tf, models.ErrDataUnavailable, err)
	}

	h.save(ctx, fresh)
	return fresh, nil
}

func (h *HistoricalDataCache) save(ctx context.Context, s *models.Series) bool {
	if err := h.store.Save(ctx, s); err != nil {
		h.log.Warn("write series cache failed",
			applogger.String("ticker", s.Symbol),
			applogger.String("timeframe", string(s.Timeframe)),
			applogger.Error(fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)),
		)
		if h.metrics != nil {
			h.metrics.RecordError("series_store")
		}
		return false
	}
	return true
}

// FetchAll pre-fetches every configured timeframe for symbols in fixed-size chunks,
// persisting each series and seeding the state price from its last valid close.
func (h *HistoricalDataCache) FetchAll(ctx context.Context, symbols []string) BatchReport {
	var report BatchReport
	if len(symbols) == 0 {
		return report
	}
	h.log.Info("syncing historical data",
		applogger.Int("tickers", len(symbols)),
		applogger.Int("timeframes", len(h.timeframes)),
	)

	chunks := chunk(symbols, h.chunkSize)
	for _, tf := range h.timeframes {
		lookback := drepo.LookbackFor(tf)
		for i, c := range chunks {
			if ctx.Err() != nil {
				return report
			}
			h.log.Debug("fetching chunk",
				applogger.String("timeframe", string(tf)),
				applogger.Int("offset", i*h.chunkSize),
				applogger.Int("total", len(symbols)),
			)

			batch, err := h.provider.FetchBatch(ctx, c, tf, lookback)
			if err != nil {
				h.state.AddError(ctx, fmt.Sprintf("batch fetch failed %s: %v", tf, err))
				for _, sym := range c {
					report.Fail(sym, err)
				}
			} else {
				for _, sym := range c {
					h.storeBatchItem(ctx, &report, sym, batch[sym])
				}
			}

			if i < len(chunks)-1 && !pause(ctx, h.chunkPause) {
				return report
			}
		}
	}
	return report
}

func (h *HistoricalDataCache) storeBatchItem(ctx context.Context, report *BatchReport, sym string, s *models.Series) {
	if s.Len() == 0 {
		report.Skip(sym, models.ErrDataUnavailable)
		return
	}
	if !h.save(ctx, s) {
		h.state.AddError(ctx, fmt.Sprintf("cache save error %s", sym))
		report.Fail(sym, models.ErrPersistenceFailure)
		return
	}
	if price, ok := s.LastClose(); ok {
		if err := h.state.UpdatePrice(ctx, sym, price); err != nil {
			h.log.Debug("seed price rejected", applogger.String("ticker", sym), applogger.Error(err))
		}
	}
	report.OK(sym)
}
