// Package state owns the process-wide instrument state and the tracked universe.
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	applogger "TickerPulse/pkg/logger"
)

// FootprintFunc reports the on-disk size of the series cache in bytes.
type FootprintFunc func() (int64, error)

type CacheOption func(*Cache)

func WithLogger(l *applogger.Logger) CacheOption {
	return func(c *Cache) { c.log = l }
}

func WithListeners(ls ...repository.StateListener) CacheOption {
	return func(c *Cache) { c.listeners = append(c.listeners, ls...) }
}

func WithFootprint(fn FootprintFunc) CacheOption {
	return func(c *Cache) { c.footprint = fn }
}

func WithMetrics(m repository.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

type entry struct {
	mu    sync.Mutex
	state models.TickerState
	// persistMu orders writes of this instrument to the repository.
	persistMu sync.Mutex
}

// Cache is the StateStore: the only owner of TickerState values and SystemMetrics.
// Each instrument is locked independently.
type Cache struct {
	repo      repository.StateRepository
	log       *applogger.Logger
	metrics   repository.Metrics
	listeners []repository.StateListener
	footprint FootprintFunc
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	sysMu     sync.Mutex
	sys       models.SystemMetrics
	persistMu sync.Mutex
}

// NewCache restores persisted state from repo and starts a fresh session.
// A failed restore is logged and leaves the cache empty.
func NewCache(ctx context.Context, repo repository.StateRepository, opts ...CacheOption) *Cache {
	c := &Cache{
		repo:    repo,
		log:     applogger.NewNop(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.restore(ctx)
	return c
}

func (c *Cache) restore(ctx context.Context) {
	states, err := c.repo.LoadTickerStates(ctx)
	if err != nil {
		c.log.Warn("restore ticker states failed", applogger.Error(err))
	}
	for _, s := range states {
		if s.Ticker == "" {
			continue
		}
		c.entries[s.Ticker] = &entry{state: s.Clone()}
	}

	persisted, err := c.repo.LoadMetrics(ctx)
	if err != nil {
		c.log.Warn("restore system metrics failed", applogger.Error(err))
	}
	if persisted != nil {
		c.sys = *persisted
	}

	// session-scoped counters start over
	c.sys.ErrorCount = 0
	c.sys.ProcessedCount = 0
	c.sys.LastError = ""
	c.sys.IsSyncing = false
	c.sys.StartTime = c.now()
	c.sys.TotalTracked = len(c.entries)

	c.log.Info("state restored", applogger.Int("tickers", len(c.entries)))
}

// UpdatePrice records the latest traded price.
func (c *Cache) UpdatePrice(ctx context.Context, ticker string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("update price %s: invalid price %v", ticker, price)
	}
	now := c.now()
	c.mutate(ctx, ticker, models.FieldPrice, func(s *models.TickerState) {
		s.LastPrice = &price
		s.LastUpdate = &now
	})
	return nil
}

// UpdateStrategy records the selected strategy.
func (c *Cache) UpdateStrategy(ctx context.Context, ticker, strategy string) error {
	if strategy == "" {
		return fmt.Errorf("update strategy %s: empty name", ticker)
	}
	c.mutate(ctx, ticker, models.FieldStrategy, func(s *models.TickerState) {
		s.BestStrategy = &strategy
	})
	return nil
}

// UpdateSignal records the current signal. Non-finite indicator readings are dropped.
func (c *Cache) UpdateSignal(ctx context.Context, ticker string, sig models.Signal) error {
	if _, ok := models.ParseSignalLabel(string(sig.Label)); !ok {
		return fmt.Errorf("update signal %s: invalid label %q", ticker, sig.Label)
	}
	if math.IsNaN(sig.Confidence) || sig.Confidence < 0 || sig.Confidence > 1 {
		return fmt.Errorf("update signal %s: confidence %v out of range", ticker, sig.Confidence)
	}
	if !finite(sig.Price) {
		sig.Price = 0
	}
	sig.Ticker = ticker
	sig.Indicators = sig.Indicators.Sanitized()
	c.mutate(ctx, ticker, models.FieldSignal, func(s *models.TickerState) {
		s.LastSignal = &sig
	})
	return nil
}

// UpdateForecast records the expected move.
func (c *Cache) UpdateForecast(ctx context.Context, ticker string, f models.Forecast) error {
	for _, v := range []float64{f.Price, f.Confidence, f.ExpectedRange.Min, f.ExpectedRange.Max, f.Invalidation, f.VolatilityATR} {
		if !finite(v) {
			return fmt.Errorf("update forecast %s: non-finite value", ticker)
		}
	}
	c.mutate(ctx, ticker, models.FieldForecast, func(s *models.TickerState) {
		s.ExpectedMove = &f
	})
	return nil
}

// Ensure creates and persists an empty state for each unseen ticker.
func (c *Cache) Ensure(ctx context.Context, tickers ...string) {
	created := false
	for _, t := range tickers {
		e, isNew := c.entry(t)
		if !isNew {
			continue
		}
		created = true
		c.persistEntry(ctx, t, e)
	}
	if created {
		c.persistMetrics(ctx)
	}
}

// AddError records a per-item failure as the session's last error.
func (c *Cache) AddError(ctx context.Context, msg string) {
	c.sysMu.Lock()
	c.sys.ErrorCount++
	c.sys.LastError = fmt.Sprintf("[%s] %s", c.now().Format("15:04:05"), msg)
	c.sysMu.Unlock()

	c.persistMetrics(ctx)
}

func (c *Cache) SetSyncing(ctx context.Context, syncing bool) {
	c.sysMu.Lock()
	c.sys.IsSyncing = syncing
	c.sysMu.Unlock()

	c.persistMetrics(ctx)
}

func (c *Cache) IncrementProcessed() {
	c.sysMu.Lock()
	c.sys.ProcessedCount++
	c.sysMu.Unlock()
}

// GetState returns a copy of the instrument's state.
func (c *Cache) GetState(ticker string) (models.TickerState, bool) {
	c.mu.RLock()
	e, ok := c.entries[ticker]
	c.mu.RUnlock()
	if !ok {
		return models.TickerState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), true
}

// GetAllStates returns copies of every state ordered by ticker.
func (c *Cache) GetAllStates() []models.TickerState {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]models.TickerState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// GetMetrics returns aggregate metrics; bytes processed is read from the cache footprint.
func (c *Cache) GetMetrics() models.SystemMetrics {
	c.sysMu.Lock()
	m := c.sys
	c.sysMu.Unlock()

	c.mu.RLock()
	m.TotalTracked = len(c.entries)
	c.mu.RUnlock()

	now := c.now()
	m.UptimeSeconds = int64(now.Sub(m.StartTime).Seconds())
	m.UpdatedAt = now
	if c.footprint != nil {
		if size, err := c.footprint(); err == nil {
			m.BytesProcessed = size
			m.DataMB = math.Round(float64(size)/(1024*1024)*100) / 100
		} else {
			c.log.Debug("cache footprint unavailable", applogger.Error(err))
		}
	}
	return m
}

// Len is the number of instruments with a state.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush persists the aggregate metrics row.
func (c *Cache) Flush(ctx context.Context) {
	c.persistMetrics(ctx)
}

func (c *Cache) entry(ticker string) (*entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[ticker]
	c.mu.RUnlock()
	if ok {
		return e, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[ticker]; ok {
		return e, false
	}
	e = &entry{state: models.TickerState{Ticker: ticker}}
	c.entries[ticker] = e
	return e, true
}

func (c *Cache) mutate(ctx context.Context, ticker string, field models.StateField, fn func(*models.TickerState)) {
	e, created := c.entry(ticker)

	e.mu.Lock()
	fn(&e.state)
	e.mu.Unlock()

	snap := c.persistEntry(ctx, ticker, e)
	if created {
		c.persistMetrics(ctx)
	}

	change := models.StateChange{Field: field, State: snap, At: c.now()}
	for _, l := range c.listeners {
		l.OnStateChange(change)
	}
}

// persistEntry writes the entry's current state and returns the snapshot written.
func (c *Cache) persistEntry(ctx context.Context, ticker string, e *entry) models.TickerState {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	snap := e.state.Clone()
	e.mu.Unlock()
	if err := c.repo.UpsertTickerState(ctx, snap); err != nil {
		c.persistFailed("persist ticker state", ticker, err)
	}
	return snap
}

func (c *Cache) persistMetrics(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if err := c.repo.UpsertMetrics(ctx, c.GetMetrics()); err != nil {
		c.persistFailed("persist system metrics", "", err)
	}
}

func (c *Cache) persistFailed(msg, ticker string, err error) {
	if !errors.Is(err, models.ErrPersistenceFailure) {
		err = fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}
	c.log.Warn(msg, applogger.String("ticker", ticker), applogger.Error(err))
	if c.metrics != nil {
		c.metrics.RecordError("state_persistence")
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
