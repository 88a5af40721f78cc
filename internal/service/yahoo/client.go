// Package yahoo fetches OHLCV bars from the Yahoo Finance chart endpoint.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/service/ratelimit"
	pkghttp "TickerPulse/pkg/http"
	applogger "TickerPulse/pkg/logger"
)

const source = "yahoo"

type Config struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	RatePerSec  float64
	Burst       int
	Logger      *applogger.Logger
	Metrics     drepo.Metrics
	Transport   http.RoundTripper
}

type Option func(*Config)

func WithBaseURL(u string) Option { return func(c *Config) { c.BaseURL = u } }
func WithUserAgent(ua string) Option { return func(c *Config) { c.UserAgent = ua } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithConcurrency(n int) Option { return func(c *Config) { c.Concurrency = n } }
func WithLogger(l *applogger.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithMetrics(m drepo.Metrics) Option { return func(c *Config) { c.Metrics = m } }
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) { c.Transport = rt }
}

// WithRateLimit bounds outbound requests to rate per second with the given burst.
func WithRateLimit(rate float64, burst int) Option {
	return func(c *Config) {
		c.RatePerSec = rate
		c.Burst = burst
	}
}

// Client implements repository.MarketDataProvider.
type Client struct {
	http    *pkghttp.Client
	baseURL string
	limiter *ratelimit.Limiter
	workers int
	log     *applogger.Logger
	metrics drepo.Metrics
}

var _ drepo.MarketDataProvider = (*Client)(nil)

func New(opts ...Option) *Client {
	cfg := &Config{
		BaseURL:     "https://query1.finance.yahoo.com",
		UserAgent:   "Mozilla/5.0 (compatible; tickerpulse/1.0)",
		Timeout:     15 * time.Second,
		Concurrency: 8,
		RatePerSec:  10,
		Burst:       20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	httpOpts := []pkghttp.ClientOption{
		pkghttp.WithTimeout(cfg.Timeout),
		pkghttp.WithHeader("User-Agent", cfg.UserAgent),
		pkghttp.WithHeader("Accept", "application/json"),
	}
	if cfg.Transport != nil {
		httpOpts = append(httpOpts, pkghttp.WithTransport(cfg.Transport))
	}

	return &Client{
		http:    pkghttp.NewClient(httpOpts...),
		baseURL: cfg.BaseURL,
		limiter: ratelimit.New(cfg.Burst, cfg.RatePerSec),
		workers: cfg.Concurrency,
		log:     cfg.Logger.Named("yahoo"),
		metrics: cfg.Metrics,
	}
}

// FetchSeries fetches one instrument. An unknown symbol or an empty chart is ErrDataUnavailable;
// transport and upstream failures are ErrFetchFailure.
func (c *Client) FetchSeries(ctx context.Context, symbol string, tf models.Timeframe, lookback drepo.Lookback) (*models.Series, error) {
	if err := c.limiter.Wait(ctx, source); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	start := time.Now()
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"range":          {string(lookback)},
			"interval":       {string(tf)},
			"includePrePost": {"false"},
			"events":         {"div,splits"},
		},
	}, &resp)
	c.observe(start)

	if err != nil {
		var se *pkghttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			c.record("not_found")
			return nil, fmt.Errorf("fetch %s: %w", symbol, models.ErrDataUnavailable)
		}
		c.record("error")
		return nil, fmt.Errorf("fetch %s: %w: %w", symbol, models.ErrFetchFailure, err)
	}

	series, err := resp.series(symbol, tf)
	if err != nil {
		c.record("empty")
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	c.record("ok")
	return series, nil
}

// FetchBatch fetches symbols with bounded concurrency. Instruments that fail are left out;
// the batch only errors when nothing could be fetched.
func (c *Client) FetchBatch(ctx context.Context, symbols []string, tf models.Timeframe, lookback drepo.Lookback) (map[string]*models.Series, error) {
	out := make(map[string]*models.Series, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var (
		mu      sync.Mutex
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			s, err := c.FetchSeries(gctx, sym, tf, lookback)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				c.log.Debug("batch item failed", applogger.String("ticker", sym), applogger.Error(err))
				return nil
			}
			out[sym] = s
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("fetch batch of %d: %w", len(symbols), lastErr)
	}
	return out, nil
}

func (c *Client) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordFetch(source, result)
	}
}

func (c *Client) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordLatency("provider_fetch", time.Since(start).Seconds())
	}
}
