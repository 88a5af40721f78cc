package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/pkg/cache"
)

func TestHistoricalGetUnknownSymbolRecordsError(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()

	_, err := h.Get(env.ctx, "NOPE", models.TF1h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))

	m := env.state.GetMetrics()
	assert.Equal(t, 1, m.ErrorCount)
	assert.Contains(t, m.LastError, "NOPE 1h")
}

func TestHistoricalGetFreshCacheSkipsProvider(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()
	now := time.Now()
	cached := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, now.Add(-10*time.Minute), time.Hour))
	require.NoError(t, env.store.Save(env.ctx, cached))

	got, err := h.Get(env.ctx, "AAA", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Len())
	assert.Zero(t, env.provider.singleCalls())
}

func TestHistoricalGetServesStaleOnFailure(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()
	stale := models.NewSeries("AAA", models.TF1h, risingBars(60, 100, 1, time.Now().Add(-3*time.Hour), time.Hour))
	require.NoError(t, env.store.Save(env.ctx, stale))
	env.provider.failWith(errors.New("upstream 503"))

	got, err := h.Get(env.ctx, "AAA", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Len())
	assert.Equal(t, 1, env.provider.singleCalls())
	assert.Contains(t, env.state.GetMetrics().LastError, "upstream 503")
}

func TestHistoricalGetRefreshesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()
	env.provider.set("AAA", risingBars(80, 100, 1, time.Now(), time.Hour))

	got, err := h.Get(env.ctx, "AAA", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Len())

	stored, err := env.store.Load(env.ctx, "AAA", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, 80, stored.Len())

	_, err = h.Get(env.ctx, "AAA", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, 1, env.provider.singleCalls())
}

func TestHistoricalGetRespectsForeignRefreshLock(t *testing.T) {
	env := newTestEnv(t)
	locks := cache.NewMemoryCache()
	defer locks.Close()
	h := env.historical(WithRefreshLock(locks, time.Minute))
	env.provider.set("AAA", risingBars(80, 100, 1, time.Now(), time.Hour))

	ok, err := locks.TryLock(env.ctx, cache.Key("refresh", "AAA", "1h"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.Get(env.ctx, "AAA", models.TF1h)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.Zero(t, env.provider.singleCalls())
}

func TestFetchAllReportsPerItem(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()
	env.provider.set("AAA", risingBars(30, 100, 1, time.Now(), time.Hour))

	report := h.FetchAll(env.ctx, []string{"AAA", "BBB"})

	assert.Equal(t, 2, report.Count(OutcomeOK))
	assert.Equal(t, 2, report.Count(OutcomeSkipped))
	assert.Equal(t, []string{"AAA"}, report.Symbols(OutcomeOK))
	assert.Equal(t, []string{"BBB"}, report.Symbols(OutcomeSkipped))

	st, ok := env.state.GetState("AAA")
	require.True(t, ok)
	require.NotNil(t, st.LastPrice)
	assert.Equal(t, 129.0, *st.LastPrice)

	for _, tf := range []models.Timeframe{models.TF1h, models.TF1d} {
		_, err := env.store.Load(env.ctx, "AAA", tf)
		assert.NoError(t, err, tf)
	}
}

func TestFetchAllBatchFailureFailsChunk(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical()
	env.provider.failWith(errors.New("rate limited"))

	report := h.FetchAll(env.ctx, []string{"AAA", "BBB"})

	assert.Equal(t, 4, report.Count(OutcomeFailed))
	m := env.state.GetMetrics()
	assert.Equal(t, 2, m.ErrorCount)
	assert.Contains(t, m.LastError, "batch fetch failed 1d")
}

func TestFetchAllChunksAndLookbacks(t *testing.T) {
	env := newTestEnv(t)
	h := env.historical(WithBatching([]models.Timeframe{models.TF1h, models.TF1d}, 2, 0))

	h.FetchAll(env.ctx, []string{"A", "B", "C"})

	calls := env.provider.batchCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"A", "B"}, calls[0].symbols)
	assert.Equal(t, []string{"C"}, calls[1].symbols)
	assert.Equal(t, "60d", string(calls[0].lookback))
	assert.Equal(t, "1y", string(calls[2].lookback))
}

// gatedProvider blocks FetchSeries until release is closed or the fetch context ends.
type gatedProvider struct {
	*fakeProvider
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *gatedProvider) FetchSeries(ctx context.Context, symbol string, tf models.Timeframe, lb drepo.Lookback) (*models.Series, error) {
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.fakeProvider.FetchSeries(ctx, symbol, tf, lb)
}

func TestHistoricalGetSharedRefreshSurvivesCancelledCaller(t *testing.T) {
	env := newTestEnv(t)
	env.provider.set("AAA", risingBars(80, 100, 1, time.Now(), time.Hour))
	gp := &gatedProvider{fakeProvider: env.provider, started: make(chan struct{}), release: make(chan struct{})}
	h := NewHistoricalDataCache(gp, env.store, env.state, WithBatching([]models.Timeframe{models.TF1h}, 50, 0))

	shortCtx, cancel := context.WithCancel(env.ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Get(shortCtx, "AAA", models.TF1h)
		firstErr <- err
	}()
	<-gp.started

	type result struct {
		series *models.Series
		err    error
	}
	second := make(chan result, 1)
	go func() {
		s, err := h.Get(env.ctx, "AAA", models.TF1h)
		second <- result{s, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(gp.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 80, res.series.Len())
	assert.Equal(t, 1, env.provider.singleCalls())

	m := env.state.GetMetrics()
	assert.Zero(t, m.ErrorCount)
	assert.Empty(t, m.LastError)
}

func TestHistoricalGetTimeoutIsNotRecordedAsError(t *testing.T) {
	env := newTestEnv(t)
	gp := &gatedProvider{fakeProvider: env.provider, started: make(chan struct{}), release: make(chan struct{})}
	h := NewHistoricalDataCache(gp, env.store, env.state, WithRefreshTimeout(10*time.Millisecond))

	_, err := h.Get(env.ctx, "AAA", models.TF1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, env.state.GetMetrics().ErrorCount)
}
