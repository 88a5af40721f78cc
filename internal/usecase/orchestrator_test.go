package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/strategy"
)

func newTestOrchestrator(t *testing.T, env *testEnv, sources []drepo.ListingSource, mutate func(*EngineConfig)) *Orchestrator {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.ExpandThreshold = -1
	cfg.ClosedSleep = time.Hour
	cfg.IntelligenceEvery = time.Hour
	cfg.DiscoveryInterval = time.Hour
	cfg.StopTimeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	catalog := strategy.DefaultCatalog()
	data := env.historical()
	disc := NewDiscovery(sources, env.provider, WithRankChunks(50, 0))
	sel := NewSelector(data, catalog, env.state, nil, nil, models.TF1h, 0)
	fc := NewForecastEngine(data, env.state, models.TF1h)
	live := NewLiveMonitor(env.provider, env.universe, env.state, WithSessionCheck(neverOpen))

	return NewOrchestrator(cfg, env.universe, env.state, data, disc, sel, fc, live, catalog,
		WithMarketSessions(neverOpen),
	)
}

func TestOrchestratorPrioritizesFocusRegion(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAPL", "RELIANCE.NS", "BTC-USD", "TCS.NS", "MSFT")
	require.NoError(t, err)
	o := newTestOrchestrator(t, env, nil, nil)

	assert.Equal(t, []string{"AAPL", "MSFT", "RELIANCE.NS", "BTC-USD", "TCS.NS"}, o.prioritized())

	o.SetFocus(models.RegionIN)
	assert.Equal(t, []string{"RELIANCE.NS", "TCS.NS", "AAPL", "BTC-USD", "MSFT"}, o.prioritized())
}

func TestOrchestratorModeScalesIntervals(t *testing.T) {
	env := newTestEnv(t)
	o := newTestOrchestrator(t, env, nil, nil)

	assert.Equal(t, 10*time.Second, o.scaled(10*time.Second))
	o.SetMode(ModeAggressive)
	assert.Equal(t, 5*time.Second, o.scaled(10*time.Second))
	o.SetMode(ModeConservative)
	assert.Equal(t, 20*time.Second, o.scaled(10*time.Second))
	assert.Equal(t, ModeConservative, o.Status().Mode)
}

func TestRunDiscoveryOnboardsOnlyNewcomers(t *testing.T) {
	env := newTestEnv(t)
	end := time.Now()
	env.provider.set("AAA", risingBars(80, 100, 1, end, time.Hour))
	env.provider.set("BBB", risingBars(80, 40, 2, end, time.Hour))
	_, err := env.universe.Add(env.ctx, "AAA")
	require.NoError(t, err)

	sources := []drepo.ListingSource{staticListing{name: "idx", symbols: []string{"AAA", "BBB"}}}
	o := newTestOrchestrator(t, env, sources, nil)

	added, err := o.RunDiscovery(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, added)
	assert.Equal(t, []string{"AAA", "BBB"}, env.universe.Snapshot())

	for _, call := range env.provider.batchCalls() {
		if call.lookback == drepo.Lookback5d {
			continue
		}
		assert.Equal(t, []string{"BBB"}, call.symbols)
	}

	st, ok := env.state.GetState("BBB")
	require.True(t, ok)
	assert.NotNil(t, st.BestStrategy)
	assert.NotNil(t, st.LastPrice)
}

func TestRunDiscoveryEmptyRankingKeepsUniverse(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAA")
	require.NoError(t, err)
	sources := []drepo.ListingSource{staticListing{name: "idx", symbols: []string{"ZZZ"}}}
	o := newTestOrchestrator(t, env, sources, nil)

	added, err := o.RunDiscovery(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, []string{"AAA"}, env.universe.Snapshot())
}

func TestUpdateAllIntelligence(t *testing.T) {
	env := newTestEnv(t)
	env.provider.set("AAA", risingBars(80, 100, 1, time.Now(), time.Hour))
	env.provider.set("BBB", risingBars(80, 50, 0.5, time.Now(), time.Hour))
	_, err := env.universe.Add(env.ctx, "AAA", "BBB", "GONE")
	require.NoError(t, err)
	require.NoError(t, env.state.UpdateStrategy(env.ctx, "BBB", "Bollinger_Bands_Reversion"))
	o := newTestOrchestrator(t, env, nil, nil)

	report := o.UpdateAllIntelligence(env.ctx)
	assert.Equal(t, []string{"BBB"}, report.Symbols(OutcomeOK))
	assert.Equal(t, []string{"AAA"}, report.Symbols(OutcomeSkipped))
	assert.Equal(t, []string{"GONE"}, report.Symbols(OutcomeFailed))

	// no selection yet: the default strategy signals but no forecast is made
	aaa, ok := env.state.GetState("AAA")
	require.True(t, ok)
	require.NotNil(t, aaa.LastSignal)
	assert.Equal(t, strategy.DefaultCatalog().Default().Name(), aaa.LastSignal.Strategy)
	assert.Nil(t, aaa.ExpectedMove)

	bbb, ok := env.state.GetState("BBB")
	require.True(t, ok)
	require.NotNil(t, bbb.LastSignal)
	assert.Equal(t, "Bollinger_Bands_Reversion", bbb.LastSignal.Strategy)
	require.NotNil(t, bbb.ExpectedMove)

	assert.Equal(t, 1, env.state.GetMetrics().ErrorCount)
}

func TestAddInstruments(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAA")
	require.NoError(t, err)
	o := newTestOrchestrator(t, env, nil, nil)

	_, err = o.AddInstruments(env.ctx, []string{" ", ""})
	assert.True(t, errors.Is(err, models.ErrInvalidInstruments))

	added, err := o.AddInstruments(env.ctx, []string{"aaa", "bbb", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, added)
	o.wg.Wait()

	_, ok := env.state.GetState("BBB")
	assert.True(t, ok)
	assert.Equal(t, 2, o.Status().Tracked)
}

func TestEnhanceUniverseAddsMovers(t *testing.T) {
	env := newTestEnv(t)
	env.provider.set("HOOD", risingBars(3, 20, 1, time.Now(), 24*time.Hour))
	env.provider.set("AAA", risingBars(3, 20, 1, time.Now(), 24*time.Hour))
	_, err := env.universe.Add(env.ctx, "AAA")
	require.NoError(t, err)
	o := newTestOrchestrator(t, env, nil, nil)
	o.discovery = NewDiscovery(nil, env.provider, WithWatchPool([]string{"AAA", "HOOD"}))

	added, err := o.EnhanceUniverse(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HOOD"}, added)
	o.wg.Wait()
}

func TestOrchestratorStartupAndStop(t *testing.T) {
	env := newTestEnv(t)
	end := time.Now()
	env.provider.set("AAA", risingBars(80, 100, 1, end, time.Hour))
	env.provider.set("BBB", risingBars(80, 60, 0.5, end, time.Hour))
	sources := []drepo.ListingSource{staticListing{name: "idx", symbols: []string{"AAA", "BBB"}}}
	o := newTestOrchestrator(t, env, sources, nil)

	require.NoError(t, o.Start(env.ctx))
	assert.Error(t, o.Start(env.ctx))

	require.Eventually(t, func() bool { return o.Phase() == PhaseRunning }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, env.universe.Len())
	assert.False(t, env.state.GetMetrics().IsSyncing)
	for _, sym := range []string{"AAA", "BBB"} {
		st, ok := env.state.GetState(sym)
		require.True(t, ok, sym)
		assert.NotNil(t, st.BestStrategy, sym)
		assert.NotNil(t, st.LastSignal, sym)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Stop(ctx))
	assert.Equal(t, PhaseStopped, o.Phase())
	assert.False(t, o.Status().Running)
}

func TestOrchestratorStopInterruptsSleepingLoops(t *testing.T) {
	env := newTestEnv(t)
	o := newTestOrchestrator(t, env, nil, func(c *EngineConfig) { c.SkipStartupSequence = true })

	require.NoError(t, o.Start(env.ctx))
	require.Eventually(t, func() bool { return o.Phase() == PhaseRunning }, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, o.Stop(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
