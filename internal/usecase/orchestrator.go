package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/markethours"
	"TickerPulse/internal/state"
	"TickerPulse/internal/strategy"
	applogger "TickerPulse/pkg/logger"
)

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

func WithOrchestratorMetrics(m drepo.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMarketSessions replaces the open-session test used to gate the loops.
func WithMarketSessions(open func(time.Time, []models.Region) bool) OrchestratorOption {
	return func(o *Orchestrator) { o.isOpen = open }
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs the startup sequence and the live, discovery and
// intelligence loops against the shared universe and state cache.
type Orchestrator struct {
	cfg       EngineConfig
	universe  *state.Universe
	state     *state.Cache
	data      *HistoricalDataCache
	discovery *Discovery
	selector  *Selector
	forecast  *ForecastEngine
	live      *LiveMonitor
	catalog   *strategy.Catalog
	log       *applogger.Logger
	metrics   drepo.Metrics
	isOpen    func(time.Time, []models.Region) bool
	now       func() time.Time

	running atomic.Bool
	phase   atomic.Int32

	mu    sync.RWMutex
	focus models.Region
	mode  Mode

	// discoverMu serializes discovery passes so two runs never race on the same newcomers.
	discoverMu sync.Mutex

	stopCh chan struct{}
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(
	cfg EngineConfig,
	universe *state.Universe,
	st *state.Cache,
	data *HistoricalDataCache,
	discovery *Discovery,
	selector *Selector,
	forecast *ForecastEngine,
	live *LiveMonitor,
	catalog *strategy.Catalog,
	opts ...OrchestratorOption,
) *Orchestrator {
	if cfg.FocusRegion == "" {
		cfg.FocusRegion = models.RegionUS
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBalanced
	}
	if cfg.SignalTimeframe == "" {
		cfg.SignalTimeframe = models.TF1h
	}
	o := &Orchestrator{
		cfg:       cfg,
		universe:  universe,
		state:     st,
		data:      data,
		discovery: discovery,
		selector:  selector,
		forecast:  forecast,
		live:      live,
		catalog:   catalog,
		log:       applogger.NewNop(),
		isOpen:    markethours.AnyOpen,
		now:       time.Now,
		focus:     cfg.FocusRegion,
		mode:      cfg.Mode,
		stopCh:    make(chan struct{}),
	}
	o.bg, o.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the startup sequence in the background and then launches the loops.
// ctx only scopes the call; the engine runs until Stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	if o.bg.Err() != nil {
		o.bg, o.cancel = context.WithCancel(context.Background())
	}
	o.stopCh = make(chan struct{})
	o.log.Info("starting orchestrator",
		applogger.Int("tickers", o.universe.Len()),
		applogger.String("focus", string(o.Focus())),
		applogger.String("mode", string(o.Mode())),
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(o.bg)
	}()
	return ctx.Err()
}

// Stop clears the running flag, wakes sleeping loops and waits for them. Bulk
// work in flight may finish; after StopTimeout or ctx expiry it is cancelled.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if !o.running.CompareAndSwap(true, false) {
		return nil
	}
	o.setPhase(PhaseStopping)
	close(o.stopCh)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	timeout := o.cfg.StopTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		o.cancel()
		<-done
	case <-timer.C:
		o.log.Warn("stop timeout reached, cancelling in-flight work")
		o.cancel()
		<-done
	}

	o.state.Flush(context.WithoutCancel(ctx))
	o.setPhase(PhaseStopped)
	o.log.Info("orchestrator stopped")
	return err
}

func (o *Orchestrator) run(ctx context.Context) {
	if !o.cfg.SkipStartupSequence {
		o.guard(ctx, "startup", func() { o.startup(ctx) })
	}
	if o.stopping() {
		return
	}
	o.setPhase(PhaseRunning)

	o.spawnLoop(ctx, "live", 0, o.cfg.LiveInterval, o.liveStep)
	o.spawnLoop(ctx, "intelligence", o.scaled(o.cfg.IntelligenceEvery), o.cfg.IntelligenceRetry, o.intelligenceStep)
	o.spawnLoop(ctx, "discovery", o.scaled(o.cfg.DiscoveryInterval), o.cfg.DiscoveryRetry, o.discoveryStep)

	if o.universe.Len() <= o.cfg.ExpandThreshold {
		o.log.Info("initial processing complete, expanding universe", applogger.Int("tickers", o.universe.Len()))
		o.Go("expand", func(ctx context.Context) {
			if _, err := o.RunDiscovery(ctx); err != nil {
				o.log.Warn("expansion discovery failed", applogger.Error(err))
			}
		})
	}
}

func (o *Orchestrator) startup(ctx context.Context) {
	o.state.SetSyncing(ctx, true)
	defer o.state.SetSyncing(context.WithoutCancel(ctx), false)

	o.setPhase(PhaseDiscovering)
	if _, err := o.discover(ctx, false); err != nil {
		o.log.Warn("initial discovery incomplete", applogger.Error(err))
	}
	if o.stopping() {
		return
	}

	symbols := o.universe.Snapshot()
	o.state.Ensure(ctx, symbols...)
	o.trackUniverse()

	o.setPhase(PhaseBulkFetching)
	o.log.Info("performing initial setup", applogger.Int("tickers", len(symbols)))
	o.logReport("bulk fetch", o.data.FetchAll(ctx, symbols))
	if o.stopping() {
		return
	}

	o.setPhase(PhaseRanking)
	o.log.Info("executing strategy ranking", applogger.Int("tickers", len(symbols)))
	o.logReport("ranking", o.selector.SelectBest(ctx, symbols))
	if o.stopping() {
		return
	}

	o.setPhase(PhaseInitialSignaling)
	o.log.Info("generating initial signals")
	o.logReport("initial signals", o.UpdateAllIntelligence(ctx))
}

// RunDiscovery ranks the candidate pool and onboards only the instruments not yet tracked.
func (o *Orchestrator) RunDiscovery(ctx context.Context) ([]string, error) {
	return o.discover(ctx, true)
}

func (o *Orchestrator) discover(ctx context.Context, onboard bool) ([]string, error) {
	o.discoverMu.Lock()
	defer o.discoverMu.Unlock()

	pool := o.discovery.ListCandidatePool(ctx)
	ranked := o.discovery.RankByPotential(ctx, pool, o.cfg.DiscoveryLimit)
	if len(ranked) == 0 {
		if o.universe.Len() > 0 {
			o.log.Info("discovery found no ranked candidates")
			return nil, nil
		}
		o.log.Warn("discovery ranking empty and no tickers tracked, using candidate pool", applogger.Int("pool", len(pool)))
		ranked = pool
	}

	added, err := o.universe.Add(ctx, ranked...)
	if err != nil {
		o.state.AddError(ctx, err.Error())
	}
	if len(added) == 0 {
		return nil, err
	}
	o.state.Ensure(ctx, added...)
	o.trackUniverse()
	o.log.Info("added new tickers", applogger.Int("added", len(added)), applogger.Int("universe", o.universe.Len()))

	if onboard {
		o.onboard(ctx, added)
	}
	return added, err
}

// onboard bulk-fetches and ranks newcomers without touching the rest of the universe.
func (o *Orchestrator) onboard(ctx context.Context, symbols []string) {
	o.logReport("onboard fetch", o.data.FetchAll(ctx, symbols))
	o.logReport("onboard ranking", o.selector.SelectBest(ctx, symbols))
}

// UpdateAllIntelligence re-applies each instrument's chosen strategy to its
// freshest series and refreshes signal and forecast, focus region first.
func (o *Orchestrator) UpdateAllIntelligence(ctx context.Context) BatchReport {
	var report BatchReport
	for _, sym := range o.prioritized() {
		if ctx.Err() != nil {
			break
		}
		err := o.refreshIntelligence(ctx, sym)
		switch {
		case err == nil:
			report.OK(sym)
		case errors.Is(err, models.ErrNoStrategy), errors.Is(err, models.ErrNoSignal):
			report.Skip(sym, err)
		case errors.Is(err, models.ErrDataUnavailable):
			report.Fail(sym, err)
		default:
			o.state.AddError(ctx, fmt.Sprintf("intelligence %s: %v", sym, err))
			report.Fail(sym, err)
		}
	}
	return report
}

func (o *Orchestrator) refreshIntelligence(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	name := ""
	if st, ok := o.state.GetState(symbol); ok && st.BestStrategy != nil {
		name = *st.BestStrategy
	}
	strat := o.catalog.Resolve(name)

	series, err := o.data.Get(ctx, symbol, o.cfg.SignalTimeframe)
	if err != nil {
		return err
	}
	sig := strat.CurrentSignal(series)
	if err := o.state.UpdateSignal(ctx, symbol, sig); err != nil {
		return err
	}
	_, err = o.forecast.Compute(ctx, symbol)
	return err
}

func (o *Orchestrator) prioritized() []string {
	symbols := o.universe.Snapshot()
	focus := o.Focus()
	sort.SliceStable(symbols, func(i, j int) bool {
		return models.RegionOf(symbols[i]) == focus && models.RegionOf(symbols[j]) != focus
	})
	return symbols
}

// AddInstruments appends unseen symbols, persists the universe and onboards
// the newcomers in the background.
func (o *Orchestrator) AddInstruments(ctx context.Context, symbols []string) ([]string, error) {
	normalized := models.NormalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil, models.ErrInvalidInstruments
	}

	added, err := o.universe.Add(ctx, normalized...)
	if len(added) > 0 {
		o.state.Ensure(ctx, added...)
		o.trackUniverse()
		o.log.Info("tickers added", applogger.Strings("tickers", added))
		o.Go("onboard", func(ctx context.Context) { o.onboard(ctx, added) })
	}
	return added, err
}

// EnhanceUniverse scans the watch pool for volatile movers and adds the new ones.
func (o *Orchestrator) EnhanceUniverse(ctx context.Context) ([]string, error) {
	movers := o.discovery.DiscoverVolatileMovers(ctx, o.cfg.MoversLimit)
	missing := o.universe.Missing(movers)
	o.log.Info("enhancement scan complete", applogger.Int("movers", len(movers)), applogger.Int("new", len(missing)))
	if len(missing) == 0 {
		return nil, nil
	}
	return o.AddInstruments(ctx, missing)
}

// Go runs fn in the background under the engine's lifetime, recovering panics.
func (o *Orchestrator) Go(name string, fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.guard(o.bg, name, func() { fn(o.bg) })
	}()
}

func (o *Orchestrator) SetFocus(region models.Region) {
	o.mu.Lock()
	o.focus = region
	o.mu.Unlock()
	o.log.Info("engine focus changed", applogger.String("region", string(region)))
}

func (o *Orchestrator) Focus() models.Region {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.focus
}

// SetMode takes effect at each loop's next sleep.
func (o *Orchestrator) SetMode(mode Mode) {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
	o.log.Info("engine mode changed", applogger.String("mode", string(mode)))
}

func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

func (o *Orchestrator) Status() EngineStatus {
	return EngineStatus{
		Phase:   o.Phase().String(),
		Running: o.running.Load(),
		Focus:   o.Focus(),
		Mode:    o.Mode(),
		Tracked: o.universe.Len(),
		Regions: o.universe.Regions(),
	}
}

func (o *Orchestrator) liveStep(ctx context.Context) time.Duration {
	if !o.live.Step(ctx) {
		o.recordLoop("live", "closed")
		return o.cfg.ClosedSleep
	}
	o.recordLoop("live", "ok")
	return o.scaled(o.cfg.LiveInterval)
}

func (o *Orchestrator) intelligenceStep(ctx context.Context) time.Duration {
	if !o.marketsOpen() {
		o.recordLoop("intelligence", "closed")
		return o.scaled(o.cfg.IntelligenceEvery)
	}
	report := o.UpdateAllIntelligence(ctx)
	o.state.Flush(ctx)
	o.log.Debug("intelligence loop iteration completed",
		applogger.Int("ok", report.Count(OutcomeOK)),
		applogger.Int("failed", report.Count(OutcomeFailed)),
	)
	o.recordLoop("intelligence", "ok")
	return o.scaled(o.cfg.IntelligenceEvery)
}

func (o *Orchestrator) discoveryStep(ctx context.Context) time.Duration {
	if !o.marketsOpen() {
		o.recordLoop("discovery", "closed")
		return o.scaled(o.cfg.DiscoveryInterval)
	}
	o.log.Info("running periodic ticker discovery")
	if _, err := o.RunDiscovery(ctx); err != nil {
		o.log.Error("discovery loop failed", applogger.Error(err))
		o.recordLoop("discovery", "error")
		return o.scaled(o.cfg.DiscoveryRetry)
	}
	o.recordLoop("discovery", "ok")
	return o.scaled(o.cfg.DiscoveryInterval)
}

// spawnLoop sleeps first, then repeats step until the engine stops. A panicking
// step is recorded and the loop waits retry before the next attempt.
func (o *Orchestrator) spawnLoop(ctx context.Context, name string, first, retry time.Duration, step func(context.Context) time.Duration) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		wait := first
		for {
			if !o.sleep(wait) {
				return
			}
			wait = o.scaled(retry)
			o.guard(ctx, name, func() { wait = step(ctx) })
		}
	}()
}

func (o *Orchestrator) guard(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("recovered from panic", applogger.String("task", name), applogger.Any("panic", r))
			o.state.AddError(context.WithoutCancel(ctx), fmt.Sprintf("%s crashed: %v", name, r))
			o.recordLoop(name, "panic")
		}
	}()
	fn()
}

// sleep waits d and reports whether the engine is still running.
func (o *Orchestrator) sleep(d time.Duration) bool {
	if d <= 0 {
		return !o.stopping()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-o.stopCh:
		return false
	case <-t.C:
		return !o.stopping()
	}
}

func (o *Orchestrator) stopping() bool {
	select {
	case <-o.stopCh:
		return true
	default:
		return !o.running.Load()
	}
}

func (o *Orchestrator) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * o.Mode().Scale())
}

func (o *Orchestrator) marketsOpen() bool {
	return o.isOpen(o.now(), o.universe.Regions())
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	o.log.Debug("phase", applogger.String("phase", p.String()))
}

func (o *Orchestrator) trackUniverse() {
	if o.metrics != nil {
		o.metrics.SetTracked(o.universe.Len())
	}
}

func (o *Orchestrator) recordLoop(loop, result string) {
	if o.metrics != nil {
		o.metrics.RecordLoop(loop, result)
	}
}

func (o *Orchestrator) logReport(stage string, r BatchReport) {
	o.log.Info(stage+" complete",
		applogger.Int("ok", r.Count(OutcomeOK)),
		applogger.Int("skipped", r.Count(OutcomeSkipped)),
		applogger.Int("failed", r.Count(OutcomeFailed)),
	)
}
