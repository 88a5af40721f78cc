package di

import (
	"context"
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	"TickerPulse/internal/handler/api"
	"TickerPulse/internal/handler/ws"
	"TickerPulse/internal/markethours"
	internalrepo "TickerPulse/internal/repository"
	"TickerPulse/internal/service/listing"
	"TickerPulse/internal/service/yahoo"
	"TickerPulse/internal/state"
	"TickerPulse/internal/strategy"
	"TickerPulse/internal/usecase"
	"TickerPulse/pkg/cache"
	pkgch "TickerPulse/pkg/clickhouse"
	"TickerPulse/pkg/config"
	xhttp "TickerPulse/pkg/http"
	pkgkafka "TickerPulse/pkg/kafka"
	applogger "TickerPulse/pkg/logger"
	"TickerPulse/pkg/metrics"
	"TickerPulse/pkg/server"
)

const initTimeout = 15 * time.Second

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService layers an in-process LRU over Redis, or uses the LRU alone.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxEntries(4096))
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredL1(2048, 10*time.Second))
}

// ProvideStateRepository selects the durable store behind the state cache and creates its schema.
func ProvideStateRepository(cfg *config.Config, log *applogger.Logger, rc *cache.RedisCache) (repository.StateRepository, error) {
	var repo repository.StateRepository
	switch cfg.Storage.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		repo = internalrepo.NewClickHouseStateRepository(client, log.Named("clickhouse"))
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("state repository: redis backend without redis connection")
		}
		repo = internalrepo.NewRedisStateRepository(rc)
	default:
		repo = internalrepo.NewMemoryStateRepository()
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := repo.Init(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("state repository init: %w", err)
	}
	log.Info("state repository ready", applogger.String("backend", cfg.Storage.Backend))
	return repo, nil
}

// ProvideSeriesStore opens the compressed on-disk series cache.
func ProvideSeriesStore(cfg *config.Config) (*internalrepo.SeriesFileStore, error) {
	store, err := internalrepo.NewSeriesFileStore(cfg.Data.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("series store: %w", err)
	}
	return store, nil
}

// ProvideUniverse restores the tracked universe, seeding it on first run.
func ProvideUniverse(cfg *config.Config, log *applogger.Logger) (*state.Universe, error) {
	u := state.NewUniverse(internalrepo.NewUniverseFile(cfg.Data.UniverseFile), log)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := u.Load(ctx, cfg.Engine.SeedTickers); err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	return u, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithProducerLogger(log.Named("kafka")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher forwards signal and forecast changes when a producer exists.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, log *applogger.Logger) *internalrepo.KafkaEventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Signals, log.Named("events"))
}

func ProvideHub(cfg *config.Config, log *applogger.Logger) *ws.Hub {
	return ws.NewHub(log, cfg.HTTP.CORSOrigins)
}

// ProvideStateCache restores state and attaches the change listeners.
func ProvideStateCache(
	repo repository.StateRepository,
	store *internalrepo.SeriesFileStore,
	hub *ws.Hub,
	pub *internalrepo.KafkaEventPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *state.Cache {
	listeners := []repository.StateListener{hub}
	if pub != nil {
		listeners = append(listeners, pub)
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	return state.NewCache(ctx, repo,
		state.WithLogger(log.Named("state")),
		state.WithMetrics(m),
		state.WithListeners(listeners...),
		state.WithFootprint(store.Footprint),
	)
}

// ProvideMarketData creates the Yahoo chart client.
func ProvideMarketData(cfg *config.Config, log *applogger.Logger, m repository.Metrics) repository.MarketDataProvider {
	return yahoo.New(
		yahoo.WithBaseURL(cfg.Provider.BaseURL),
		yahoo.WithUserAgent(cfg.Provider.UserAgent),
		yahoo.WithTimeout(cfg.Provider.Timeout),
		yahoo.WithConcurrency(cfg.Provider.Concurrency),
		yahoo.WithRateLimit(cfg.Provider.RatePerSec, cfg.Provider.Burst),
		yahoo.WithLogger(log),
		yahoo.WithMetrics(m),
	)
}

// ProvideListingSources builds one scraper per configured index table.
func ProvideListingSources(cfg *config.Config) []repository.ListingSource {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Discovery.Timeout),
		xhttp.WithHeader("User-Agent", cfg.Provider.UserAgent),
	)
	specs := make([]listing.TableSpec, 0, len(cfg.Discovery.Sources))
	for _, s := range cfg.Discovery.Sources {
		specs = append(specs, listing.TableSpec{Name: s.Name, URL: s.URL, Table: s.Table, Column: s.Column})
	}
	return listing.NewWikipediaSources(specs, client)
}

func ProvideCatalog() *strategy.Catalog {
	return strategy.DefaultCatalog()
}

func ProvideHistorical(
	cfg *config.Config,
	provider repository.MarketDataProvider,
	store *internalrepo.SeriesFileStore,
	st *state.Cache,
	locks cache.Service,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.HistoricalDataCache {
	return usecase.NewHistoricalDataCache(provider, store, st,
		usecase.WithHistoricalLogger(log.Named("historical")),
		usecase.WithHistoricalMetrics(m),
		usecase.WithRefreshLock(locks, cfg.Data.RefreshLock),
		// limiter wait plus one provider request
		usecase.WithRefreshTimeout(2*cfg.Provider.Timeout),
		usecase.WithBatching(timeframes(cfg.Data.Timeframes), cfg.Data.ChunkSize, cfg.Data.ChunkPause),
	)
}

func ProvideDiscovery(
	cfg *config.Config,
	sources []repository.ListingSource,
	provider repository.MarketDataProvider,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Discovery {
	opts := []usecase.DiscoveryOption{
		usecase.WithDiscoveryLogger(log.Named("discovery")),
		usecase.WithDiscoveryMetrics(m),
		usecase.WithRankChunks(cfg.Discovery.RankChunkSize, cfg.Discovery.RankPause),
		usecase.WithSourceTimeout(cfg.Discovery.Timeout),
	}
	if len(cfg.Discovery.Fallback) > 0 {
		opts = append(opts, usecase.WithFallback(cfg.Discovery.Fallback))
	}
	if len(cfg.Discovery.WatchPool) > 0 {
		opts = append(opts, usecase.WithWatchPool(cfg.Discovery.WatchPool))
	}
	return usecase.NewDiscovery(sources, provider, opts...)
}

func ProvideSelector(
	cfg *config.Config,
	data *usecase.HistoricalDataCache,
	catalog *strategy.Catalog,
	st *state.Cache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Selector {
	return usecase.NewSelector(data, catalog, st, log.Named("selector"), m,
		models.Timeframe(cfg.Engine.SelectionTimeframe), cfg.Engine.SelectionLogEvery)
}

func ProvideForecast(cfg *config.Config, data *usecase.HistoricalDataCache, st *state.Cache) *usecase.ForecastEngine {
	return usecase.NewForecastEngine(data, st, models.Timeframe(cfg.Engine.SelectionTimeframe))
}

func ProvideLiveMonitor(
	cfg *config.Config,
	provider repository.MarketDataProvider,
	universe *state.Universe,
	st *state.Cache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.LiveMonitor {
	return usecase.NewLiveMonitor(provider, universe, st,
		usecase.WithLiveLogger(log.Named("live")),
		usecase.WithLiveMetrics(m),
		usecase.WithLiveChunks(cfg.Engine.LiveChunkSize, cfg.Engine.LiveChunkPause),
		usecase.WithSessionCheck(markethours.AnyOpen),
	)
}

// ProvideOrchestrator maps the engine section onto the scheduler.
func ProvideOrchestrator(
	cfg *config.Config,
	universe *state.Universe,
	st *state.Cache,
	data *usecase.HistoricalDataCache,
	discovery *usecase.Discovery,
	selector *usecase.Selector,
	forecast *usecase.ForecastEngine,
	live *usecase.LiveMonitor,
	catalog *strategy.Catalog,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.Orchestrator, error) {
	region, err := models.ParseRegion(cfg.Engine.FocusRegion)
	if err != nil {
		return nil, fmt.Errorf("engine focus: %w", err)
	}
	mode, err := usecase.ParseMode(cfg.Engine.Mode)
	if err != nil {
		return nil, fmt.Errorf("engine mode: %w", err)
	}
	ec := usecase.EngineConfig{
		FocusRegion:         region,
		Mode:                mode,
		DiscoveryLimit:      cfg.Engine.DiscoveryLimit,
		MoversLimit:         cfg.Engine.MoversLimit,
		ExpandThreshold:     cfg.Engine.ExpandThreshold,
		DiscoveryInterval:   cfg.Engine.DiscoveryInterval,
		DiscoveryRetry:      cfg.Engine.DiscoveryRetry,
		IntelligenceEvery:   cfg.Engine.IntelligenceEvery,
		IntelligenceRetry:   cfg.Engine.IntelligenceRetry,
		LiveInterval:        cfg.Engine.LiveInterval,
		ClosedSleep:         cfg.Engine.ClosedSleep,
		StopTimeout:         cfg.Engine.StopTimeout,
		SignalTimeframe:     models.Timeframe(cfg.Engine.SelectionTimeframe),
		SkipStartupSequence: cfg.Engine.SkipStartupSequence,
	}
	return usecase.NewOrchestrator(ec, universe, st, data, discovery, selector, forecast, live, catalog,
		usecase.WithOrchestratorLogger(log.Named("engine")),
		usecase.WithOrchestratorMetrics(m),
		usecase.WithMarketSessions(markethours.AnyOpen),
	), nil
}

func ProvideAPIHandler(
	cfg *config.Config,
	log *applogger.Logger,
	st *state.Cache,
	universe *state.Universe,
	data *usecase.HistoricalDataCache,
	engine *usecase.Orchestrator,
	responses cache.Service,
) *api.Handler {
	return api.NewHandler(log, st, universe, data, engine,
		api.WithResponseCache(responses, cfg.HTTP.HistoricalTTL))
}

// ProvideHTTPServer mounts the API and the websocket hub on one echo server.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, h *api.Handler, hub *ws.Hub) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.HTTP.Port),
		xhttp.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		xhttp.WithServerLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer([]xhttp.Handler{h, hub}, opts...)
}

// ProvideKafkaConsumer subscribes the control handler when Kafka is enabled; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, engine *usecase.Orchestrator, m repository.Metrics, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerLogger(log.Named("kafka")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewControlHandler(cfg.Kafka.Topics.Control, engine, log, m))
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Orchestrator,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	pub *internalrepo.KafkaEventPublisher,
	st *state.Cache,
	repo repository.StateRepository,
	store *internalrepo.SeriesFileStore,
	responses cache.Service,
) *server.App {
	app := server.New(cfg, log, engine, httpServer, hub)
	if consumer != nil {
		app.SetConsumer(consumer)
	}
	app.OnShutdown("state", func(ctx context.Context) error {
		st.Flush(ctx)
		return repo.Close()
	})
	if pub != nil {
		app.OnShutdown("events", func(context.Context) error { return pub.Close() })
	}
	if producer != nil {
		app.OnShutdown("kafka producer", func(context.Context) error { return producer.Close() })
	}
	app.OnShutdown("series store", func(context.Context) error { return store.Close() })
	// closes the Redis connection too when it backs the cache
	app.OnShutdown("cache", func(context.Context) error { return responses.Close() })
	return app
}

func timeframes(raw []string) []models.Timeframe {
	out := make([]models.Timeframe, 0, len(raw))
	for _, s := range raw {
		out = append(out, models.Timeframe(s))
	}
	return out
}
