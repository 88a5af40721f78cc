package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	repo "TickerPulse/internal/repository"
	"TickerPulse/internal/state"
	"TickerPulse/internal/strategy"
)

type fetchCall struct {
	symbols  []string
	tf       models.Timeframe
	lookback drepo.Lookback
}

// fakeProvider serves the same bars for every timeframe and records each call.
type fakeProvider struct {
	mu     sync.Mutex
	series map[string][]models.Bar
	err    error
	single []fetchCall
	batch  []fetchCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{series: make(map[string][]models.Bar)}
}

func (p *fakeProvider) set(symbol string, bars []models.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[symbol] = bars
}

func (p *fakeProvider) failWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) FetchSeries(_ context.Context, symbol string, tf models.Timeframe, lb drepo.Lookback) (*models.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.single = append(p.single, fetchCall{symbols: []string{symbol}, tf: tf, lookback: lb})
	if p.err != nil {
		return nil, p.err
	}
	bars, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrDataUnavailable)
	}
	return models.NewSeries(symbol, tf, bars), nil
}

func (p *fakeProvider) FetchBatch(_ context.Context, symbols []string, tf models.Timeframe, lb drepo.Lookback) (map[string]*models.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batch = append(p.batch, fetchCall{symbols: append([]string(nil), symbols...), tf: tf, lookback: lb})
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]*models.Series)
	for _, sym := range symbols {
		if bars, ok := p.series[sym]; ok && len(bars) > 0 {
			out[sym] = models.NewSeries(sym, tf, bars)
		}
	}
	return out, nil
}

func (p *fakeProvider) singleCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.single)
}

func (p *fakeProvider) batchCalls() []fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fetchCall(nil), p.batch...)
}

// staticSource serves fixed series without a provider.
type staticSource map[string]*models.Series

func (s staticSource) Get(_ context.Context, symbol string, _ models.Timeframe) (*models.Series, error) {
	if series, ok := s[symbol]; ok {
		return series, nil
	}
	return nil, fmt.Errorf("%s: %w", symbol, models.ErrDataUnavailable)
}

type staticListing struct {
	name    string
	symbols []string
	err     error
}

func (s staticListing) Name() string { return s.name }

func (s staticListing) FetchSymbols(context.Context) ([]string, error) {
	return s.symbols, s.err
}

// stubStrategy emits the same label on every bar.
type stubStrategy struct {
	name  string
	tier  strategy.Tier
	label models.SignalLabel
}

func (s stubStrategy) Kind() strategy.Kind { return strategy.KindEMACrossoverRSI }
func (s stubStrategy) Name() string        { return s.name }
func (s stubStrategy) Tier() strategy.Tier { return s.tier }
func (s stubStrategy) MinLookback() int    { return 1 }

func (s stubStrategy) GenerateSignals(series *models.Series) []models.SignalPoint {
	out := make([]models.SignalPoint, series.Len())
	for i := range out {
		out[i] = models.SignalPoint{Label: s.label, Confidence: 0.6}
	}
	return out
}

func (s stubStrategy) CurrentSignal(series *models.Series) models.Signal {
	price, _ := series.LastClose()
	return models.Signal{
		Strategy:   s.name,
		Label:      s.label,
		Confidence: 0.6,
		Price:      price,
		Timestamp:  series.LastTime(),
	}
}

// risingBars returns n bars ending one minute before end, closing at start, start+step, ...
func risingBars(n int, start, step float64, end time.Time, interval time.Duration) []models.Bar {
	bars := make([]models.Bar, n)
	first := end.Add(-time.Minute - time.Duration(n-1)*interval)
	for i := range bars {
		c := start + float64(i)*step
		bars[i] = models.Bar{
			Time:   first.Add(time.Duration(i) * interval),
			Open:   c - step/2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i),
		}
	}
	return bars
}

func flatBars(n int, price float64, end time.Time) []models.Bar {
	return risingBars(n, price, 0, end, time.Hour)
}

type testEnv struct {
	ctx       context.Context
	stateRepo *repo.MemoryStateRepository
	state     *state.Cache
	store     *repo.SeriesFileStore
	provider  *fakeProvider
	universe  *state.Universe
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := repo.NewSeriesFileStore(filepath.Join(dir, "series"))
	require.NoError(t, err)
	stateRepo := repo.NewMemoryStateRepository()

	return &testEnv{
		ctx:       ctx,
		stateRepo: stateRepo,
		state:     state.NewCache(ctx, stateRepo),
		store:     store,
		provider:  newFakeProvider(),
		universe:  state.NewUniverse(repo.NewUniverseFile(filepath.Join(dir, "universe.yaml")), nil),
	}
}

func (e *testEnv) historical(opts ...HistoricalOption) *HistoricalDataCache {
	opts = append([]HistoricalOption{WithBatching([]models.Timeframe{models.TF1h, models.TF1d}, 50, 0)}, opts...)
	return NewHistoricalDataCache(e.provider, e.store, e.state, opts...)
}
