package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
)

func alwaysOpen(time.Time, []models.Region) bool { return true }
func neverOpen(time.Time, []models.Region) bool  { return false }

func TestLiveMonitorUpdatesPrices(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAA", "BBB", "CCC")
	require.NoError(t, err)
	env.provider.set("AAA", risingBars(10, 50, 1, time.Now(), time.Minute))
	env.provider.set("CCC", risingBars(10, 20, 0, time.Now(), time.Minute))

	m := NewLiveMonitor(env.provider, env.universe, env.state, WithSessionCheck(alwaysOpen), WithLiveChunks(2, 0))
	require.True(t, m.Step(env.ctx))

	for sym, want := range map[string]float64{"AAA": 59, "CCC": 20} {
		st, ok := env.state.GetState(sym)
		require.True(t, ok, sym)
		require.NotNil(t, st.LastPrice, sym)
		assert.Equal(t, want, *st.LastPrice, sym)
	}
	_, ok := env.state.GetState("BBB")
	assert.False(t, ok)

	calls := env.provider.batchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.TF1m, calls[0].tf)
	assert.Equal(t, drepo.Lookback1d, calls[0].lookback)
}

func TestLiveMonitorSkipsWhenClosed(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAA")
	require.NoError(t, err)

	m := NewLiveMonitor(env.provider, env.universe, env.state, WithSessionCheck(neverOpen))
	assert.False(t, m.Step(env.ctx))
	assert.Empty(t, env.provider.batchCalls())
}

func TestLiveMonitorRecordsBatchFailure(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.universe.Add(env.ctx, "AAA", "BBB")
	require.NoError(t, err)
	env.provider.failWith(errors.New("connection reset"))

	m := NewLiveMonitor(env.provider, env.universe, env.state, WithSessionCheck(alwaysOpen))
	report := m.PollOnce(env.ctx)

	assert.Equal(t, 2, report.Count(OutcomeFailed))
	assert.Contains(t, env.state.GetMetrics().LastError, "live poll failed: connection reset")
}
