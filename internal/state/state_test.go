package state

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	repo "TickerPulse/internal/repository"
)

var fixedNow = time.Date(2024, 3, 4, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingListener struct {
	mu      sync.Mutex
	changes []models.StateChange
}

func (l *recordingListener) OnStateChange(c models.StateChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *recordingListener) fields() []models.StateField {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.StateField, len(l.changes))
	for i, c := range l.changes {
		out[i] = c.Field
	}
	return out
}

type failingRepo struct {
	*repo.MemoryStateRepository
}

func (failingRepo) UpsertTickerState(context.Context, models.TickerState) error {
	return errors.New("disk full")
}

func bullish(conf float64) models.Signal {
	return models.Signal{
		Strategy:   "EMA_Crossover_RSI",
		Label:      models.Bullish,
		Confidence: conf,
		Price:      101,
		Timestamp:  fixedNow,
		Indicators: models.Indicators{RSI: models.Float(58)},
	}
}

func TestCache_UpdateSignalIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemoryStateRepository()
	c := NewCache(ctx, mem, WithClock(fixedClock))

	require.NoError(t, c.UpdateSignal(ctx, "AAPL", bullish(0.7)))
	require.NoError(t, c.UpdateSignal(ctx, "AAPL", bullish(0.7)))

	assert.Equal(t, 1, mem.Rows())
	st, ok := c.GetState("AAPL")
	require.True(t, ok)
	require.NotNil(t, st.LastSignal)
	assert.Equal(t, "AAPL", st.LastSignal.Ticker)
	assert.Equal(t, models.Bullish, st.LastSignal.Label)
}

func TestCache_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemoryStateRepository()
	c := NewCache(ctx, mem, WithClock(fixedClock))

	assert.Error(t, c.UpdatePrice(ctx, "AAPL", 0))
	assert.Error(t, c.UpdatePrice(ctx, "AAPL", math.NaN()))
	assert.Error(t, c.UpdateStrategy(ctx, "AAPL", ""))

	bad := bullish(1.2)
	assert.Error(t, c.UpdateSignal(ctx, "AAPL", bad))
	bad = bullish(0.5)
	bad.Label = "sideways"
	assert.Error(t, c.UpdateSignal(ctx, "AAPL", bad))

	assert.Error(t, c.UpdateForecast(ctx, "AAPL", models.Forecast{Price: math.Inf(1)}))

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, mem.Writes())
}

func TestCache_UpdateSignalDropsNonFiniteIndicators(t *testing.T) {
	ctx := context.Background()
	c := NewCache(ctx, repo.NewMemoryStateRepository(), WithClock(fixedClock))

	sig := bullish(0.6)
	sig.Indicators.FastEMA = models.Float(math.NaN())
	require.NoError(t, c.UpdateSignal(ctx, "MSFT", sig))

	st, _ := c.GetState("MSFT")
	assert.Nil(t, st.LastSignal.Indicators.FastEMA)
	require.NotNil(t, st.LastSignal.Indicators.RSI)
	assert.InDelta(t, 58, *st.LastSignal.Indicators.RSI, 1e-9)
}

func TestCache_RestoreKeepsStatesAndResetsSession(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemoryStateRepository()

	first := NewCache(ctx, mem, WithClock(fixedClock))
	require.NoError(t, first.UpdatePrice(ctx, "AAPL", 189.5))
	require.NoError(t, first.UpdateStrategy(ctx, "AAPL", "EMA_Crossover_RSI"))
	require.NoError(t, first.UpdateSignal(ctx, "AAPL", bullish(0.7)))
	first.Ensure(ctx, "TSLA")
	first.AddError(ctx, "GOOG: data unavailable")
	first.IncrementProcessed()
	first.SetSyncing(ctx, true)

	later := fixedNow.Add(time.Hour)
	second := NewCache(ctx, mem, WithClock(func() time.Time { return later }))

	assert.Equal(t, 2, second.Len())
	a, ok := second.GetState("AAPL")
	require.True(t, ok)
	before, _ := first.GetState("AAPL")
	assert.Equal(t, before, a)

	m := second.GetMetrics()
	assert.Equal(t, 2, m.TotalTracked)
	assert.Equal(t, 0, m.ErrorCount)
	assert.Equal(t, 0, m.ProcessedCount)
	assert.Empty(t, m.LastError)
	assert.False(t, m.IsSyncing)
	assert.Equal(t, later, m.StartTime)
}

func TestCache_EnsurePersistsEmptyStates(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemoryStateRepository()

	first := NewCache(ctx, mem, WithClock(fixedClock))
	first.Ensure(ctx, "NVDA", "AMD", "NVDA")

	rows, err := mem.LoadTickerStates(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AMD", rows[0].Ticker)
	assert.Nil(t, rows[0].LastPrice)

	second := NewCache(ctx, mem, WithClock(fixedClock))
	assert.Equal(t, 2, second.GetMetrics().TotalTracked)
	_, ok := second.GetState("NVDA")
	assert.True(t, ok)
}

func TestCache_AddErrorFormat(t *testing.T) {
	ctx := context.Background()
	c := NewCache(ctx, repo.NewMemoryStateRepository(), WithClock(fixedClock))

	c.AddError(ctx, "first")
	c.AddError(ctx, "NOPE: data unavailable")

	m := c.GetMetrics()
	assert.Equal(t, 2, m.ErrorCount)
	assert.Equal(t, "[15:04:05] NOPE: data unavailable", m.LastError)
}

func TestCache_NotifiesListeners(t *testing.T) {
	ctx := context.Background()
	l := &recordingListener{}
	c := NewCache(ctx, repo.NewMemoryStateRepository(), WithClock(fixedClock), WithListeners(l))

	require.NoError(t, c.UpdatePrice(ctx, "AAPL", 10))
	require.NoError(t, c.UpdateStrategy(ctx, "AAPL", "Penny Breakout"))
	require.NoError(t, c.UpdateForecast(ctx, "AAPL", models.Forecast{Price: 10, Bias: models.Neutral}))

	assert.Equal(t, []models.StateField{models.FieldPrice, models.FieldStrategy, models.FieldForecast}, l.fields())
}

func TestCache_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	c := NewCache(ctx, failingRepo{repo.NewMemoryStateRepository()}, WithClock(fixedClock))

	require.NoError(t, c.UpdatePrice(ctx, "AAPL", 42))

	st, ok := c.GetState("AAPL")
	require.True(t, ok)
	require.NotNil(t, st.LastPrice)
	assert.Equal(t, 42.0, *st.LastPrice)
}

func TestCache_MetricsFootprint(t *testing.T) {
	ctx := context.Background()
	c := NewCache(ctx, repo.NewMemoryStateRepository(),
		WithClock(fixedClock),
		WithFootprint(func() (int64, error) { return 3 * 1024 * 1024, nil }),
	)

	m := c.GetMetrics()
	assert.Equal(t, int64(3*1024*1024), m.BytesProcessed)
	assert.InDelta(t, 3.0, m.DataMB, 1e-9)
}

func TestCache_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemoryStateRepository()
	c := NewCache(ctx, mem)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.UpdatePrice(ctx, "AAPL", float64(100+i))
			_ = c.UpdatePrice(ctx, "MSFT", float64(200+i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, mem.Rows())
}

func TestUniverse_AddReturnsOnlyNew(t *testing.T) {
	ctx := context.Background()
	file := repo.NewUniverseFile(filepath.Join(t.TempDir(), "tickers.yaml"))
	u := NewUniverse(file, nil)
	require.NoError(t, u.Load(ctx, []string{"AAA"}))

	assert.Equal(t, []string{"BBB"}, u.Missing([]string{"AAA", "BBB"}))

	added, err := u.Add(ctx, "aaa", "BBB", "BBB")
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, added)
	assert.Equal(t, []string{"AAA", "BBB"}, u.Snapshot())

	persisted, err := file.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, persisted)
}

func TestUniverse_LoadPrefersPersisted(t *testing.T) {
	ctx := context.Background()
	file := repo.NewUniverseFile(filepath.Join(t.TempDir(), "tickers.yaml"))
	require.NoError(t, file.Save(ctx, []string{"RELIANCE.NS", "BTC-USD"}))

	u := NewUniverse(file, nil)
	require.NoError(t, u.Load(ctx, []string{"AAPL"}))

	assert.Equal(t, []string{"RELIANCE.NS", "BTC-USD"}, u.Snapshot())
	assert.False(t, u.Contains("AAPL"))
	assert.ElementsMatch(t, []models.Region{models.RegionIN, models.RegionCrypto}, u.Regions())
}
