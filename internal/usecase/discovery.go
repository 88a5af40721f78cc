package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/indicator"
	applogger "TickerPulse/pkg/logger"
)

const (
	minDiscoveryPrice = 0.05
	pennyPrice        = 5.0
)

// DefaultFallback spans US equities, crypto and Indian listings so something
// is always tradable when every listing source is down.
var DefaultFallback = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META", "BRK-B", "UNH", "V",
	"JNJ", "WMT", "JPM", "PG", "MA", "LLY", "CVX", "HD", "ABBV", "KO",
	"AVGO", "PEP", "ORCL", "MRK", "BAC", "COST", "AMD", "NFLX", "INTC", "CSCO",
	"PLTR", "SOFI", "COIN", "MARA", "RIOT", "MSTR", "GME", "AMC", "NIO", "RIVN",
	"BTC-USD", "ETH-USD", "SOL-USD", "XRP-USD", "DOGE-USD",
	"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS", "ICICIBANK.NS",
}

// DefaultWatchPool is the curated set scanned for volatile movers.
var DefaultWatchPool = []string{
	"TSLA", "NVDA", "AMD", "PLTR", "SOFI", "COIN", "MARA", "RIOT", "MSTR", "HOOD",
	"GME", "AMC", "RIVN", "LCID", "NIO", "UPST", "AFRM", "SOXL", "TQQQ", "SMCI",
	"BTC-USD", "ETH-USD", "SOL-USD", "DOGE-USD",
	"ADANIENT.NS", "TATAMOTORS.NS",
}

type DiscoveryOption func(*Discovery)

func WithDiscoveryLogger(l *applogger.Logger) DiscoveryOption {
	return func(d *Discovery) { d.log = l }
}

func WithDiscoveryMetrics(m drepo.Metrics) DiscoveryOption {
	return func(d *Discovery) { d.metrics = m }
}

// WithFallback replaces the list used when every source fails. Empty keeps the default.
func WithFallback(symbols []string) DiscoveryOption {
	return func(d *Discovery) {
		if len(symbols) > 0 {
			d.fallback = symbols
		}
	}
}

// WithWatchPool replaces the movers pool. Empty keeps the default.
func WithWatchPool(symbols []string) DiscoveryOption {
	return func(d *Discovery) {
		if len(symbols) > 0 {
			d.watchPool = symbols
		}
	}
}

func WithRankChunks(size int, pause time.Duration) DiscoveryOption {
	return func(d *Discovery) {
		d.chunkSize = size
		d.chunkPause = pause
	}
}

// WithSourceTimeout bounds each listing fetch.
func WithSourceTimeout(d time.Duration) DiscoveryOption {
	return func(disc *Discovery) { disc.sourceTimeout = d }
}

// Discovery finds instruments worth tracking.
type Discovery struct {
	sources  []drepo.ListingSource
	provider drepo.MarketDataProvider
	log      *applogger.Logger
	metrics  drepo.Metrics

	fallback      []string
	watchPool     []string
	chunkSize     int
	chunkPause    time.Duration
	sourceTimeout time.Duration
}

func NewDiscovery(sources []drepo.ListingSource, provider drepo.MarketDataProvider, opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		sources:       sources,
		provider:      provider,
		log:           applogger.NewNop(),
		fallback:      DefaultFallback,
		watchPool:     DefaultWatchPool,
		chunkSize:     50,
		chunkPause:    time.Second,
		sourceTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListCandidatePool merges every listing source. When all of them fail or come
// back empty the fallback list is returned.
func (d *Discovery) ListCandidatePool(ctx context.Context) []string {
	results := make([][]string, len(d.sources))
	var g errgroup.Group
	for i, src := range d.sources {
		i, src := i, src
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, d.sourceTimeout)
			defer cancel()
			syms, err := src.FetchSymbols(sctx)
			if err != nil {
				d.log.Warn("listing source failed", applogger.String("source", src.Name()), applogger.Error(err))
				d.recordFetch(src.Name(), "error")
				return nil
			}
			d.recordFetch(src.Name(), "ok")
			results[i] = syms
			return nil
		})
	}
	_ = g.Wait()

	var all []string
	for _, r := range results {
		all = append(all, r...)
	}
	pool := models.NormalizeSymbols(all)
	if len(pool) == 0 {
		d.log.Warn("all listing sources failed, using fallback list", applogger.Int("fallback", len(d.fallback)))
		if d.metrics != nil {
			d.metrics.RecordError("discovery_source")
		}
		return models.NormalizeSymbols(d.fallback)
	}
	d.log.Debug("candidate pool", applogger.Int("size", len(pool)))
	return pool
}

// RankByPotential scores pool on five days of daily bars and returns the top limit.
func (d *Discovery) RankByPotential(ctx context.Context, pool []string, limit int) []string {
	d.log.Info("scanning universe for high-potential assets",
		applogger.Int("pool", len(pool)),
		applogger.Int("limit", limit),
	)
	top := d.rank(ctx, pool, drepo.Lookback5d, limit)
	d.log.Info("discovery complete", applogger.Int("selected", len(top)))
	return top
}

// DiscoverVolatileMovers ranks the watch pool over two days of daily bars.
func (d *Discovery) DiscoverVolatileMovers(ctx context.Context, limit int) []string {
	return d.rank(ctx, d.watchPool, drepo.Lookback2d, limit)
}

type scored struct {
	symbol string
	score  float64
}

func (d *Discovery) rank(ctx context.Context, pool []string, lookback drepo.Lookback, limit int) []string {
	var items []scored
	chunks := chunk(pool, d.chunkSize)
	for i, c := range chunks {
		if ctx.Err() != nil {
			break
		}
		batch, err := d.provider.FetchBatch(ctx, c, models.TF1d, lookback)
		if err != nil {
			d.log.Debug("discovery chunk failed", applogger.Int("offset", i*d.chunkSize), applogger.Error(err))
		} else {
			for _, sym := range c {
				if score, ok := PotentialScore(batch[sym]); ok {
					items = append(items, scored{symbol: sym, score: score})
				}
			}
		}
		if i < len(chunks)-1 && !pause(ctx, d.chunkPause) {
			break
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.symbol
	}
	return out
}

// PotentialScore blends the last bar's range, its volume against the window
// average and the opening gap. Penny-priced instruments weight range and volume
// higher. ok is false when the series is too short or priced below the floor.
func PotentialScore(s *models.Series) (float64, bool) {
	if s.Len() < 2 {
		return 0, false
	}
	last := s.Bars[s.Len()-1]
	prev := s.Bars[s.Len()-2]
	price := last.Close
	if !indicator.Valid(price) || price < minDiscoveryPrice {
		return 0, false
	}

	volatility := (last.High - last.Low) / price
	volumeRatio := 1.0
	if avg := indicator.Mean(s.Volumes()); avg > 0 {
		volumeRatio = last.Volume / avg
	}
	gap := 0.0
	if prev.Close > 0 {
		gap = math.Abs(last.Open-prev.Close) / prev.Close
	}

	var score float64
	if price < pennyPrice {
		score = 150*volatility + 5*volumeRatio + 100*gap
	} else {
		score = 100*volatility + 3*volumeRatio + 60*gap
	}
	if !indicator.Valid(score) {
		score = 0
	}
	return score, true
}

func (d *Discovery) recordFetch(source, result string) {
	if d.metrics != nil {
		d.metrics.RecordFetch(source, result)
	}
}
