package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name        string `yaml:"name" default:"tickerpulse"`
		Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	} `yaml:"app"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	HTTP struct {
		Port            int           `yaml:"port" default:"8000" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		HistoricalTTL   time.Duration `yaml:"historical_cache_ttl" default:"30s"`
	} `yaml:"http"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		FocusRegion         string        `yaml:"focus_region" default:"US" validate:"oneof=US IN CRYPTO"`
		Mode                string        `yaml:"mode" default:"balanced" validate:"oneof=conservative balanced aggressive"`
		SeedTickers         []string      `yaml:"seed_tickers"`
		DiscoveryLimit      int           `yaml:"discovery_limit" default:"50" validate:"min=1"`
		MoversLimit         int           `yaml:"movers_limit" default:"20" validate:"min=1"`
		ExpandThreshold     int           `yaml:"expand_threshold" default:"65"`
		DiscoveryInterval   time.Duration `yaml:"discovery_interval" default:"10m"`
		DiscoveryRetry      time.Duration `yaml:"discovery_retry" default:"5m"`
		IntelligenceEvery   time.Duration `yaml:"intelligence_interval" default:"30s"`
		IntelligenceRetry   time.Duration `yaml:"intelligence_retry" default:"60s"`
		LiveInterval        time.Duration `yaml:"live_interval" default:"15s"`
		ClosedSleep         time.Duration `yaml:"closed_sleep" default:"5m"`
		LiveChunkSize       int           `yaml:"live_chunk_size" default:"100" validate:"min=1"`
		LiveChunkPause      time.Duration `yaml:"live_chunk_pause" default:"500ms"`
		SelectionTimeframe  string        `yaml:"selection_timeframe" default:"1h"`
		SelectionLogEvery   int           `yaml:"selection_log_every" default:"50"`
		StopTimeout         time.Duration `yaml:"stop_timeout" default:"30s"`
		SkipStartupSequence bool          `yaml:"skip_startup_sequence"`
	} `yaml:"engine"`
	Data struct {
		CacheDir     string        `yaml:"cache_dir" default:"data/cache" validate:"required"`
		UniverseFile string        `yaml:"universe_file" default:"config/tickers.yaml" validate:"required"`
		Timeframes   []string      `yaml:"timeframes" default:"[\"1h\",\"1d\"]" validate:"min=1,dive,oneof=1m 5m 15m 1h 1d"`
		ChunkSize    int           `yaml:"chunk_size" default:"50" validate:"min=1"`
		ChunkPause   time.Duration `yaml:"chunk_pause" default:"1s"`
		RefreshLock  time.Duration `yaml:"refresh_lock_ttl" default:"2m"`
	} `yaml:"data"`
	Provider struct {
		BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		UserAgent   string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; tickerpulse/1.0)"`
		Timeout     time.Duration `yaml:"timeout" default:"15s"`
		Concurrency int           `yaml:"concurrency" default:"8" validate:"min=1"`
		RatePerSec  float64       `yaml:"rate_per_sec" default:"10" validate:"gt=0"`
		Burst       int           `yaml:"burst" default:"20" validate:"min=1"`
	} `yaml:"provider"`
	Discovery struct {
		Timeout       time.Duration `yaml:"timeout" default:"20s"`
		RankChunkSize int           `yaml:"rank_chunk_size" default:"50" validate:"min=1"`
		RankPause     time.Duration `yaml:"rank_pause" default:"1s"`
		Sources       []Source      `yaml:"sources"`
		Fallback      []string      `yaml:"fallback"`
		WatchPool     []string      `yaml:"watch_pool"`
	} `yaml:"discovery"`
	Storage struct {
		Backend string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse redis memory"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"tickerpulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"tickerpulse"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topics  struct {
			Signals string `yaml:"signals" default:"tickerpulse.signals"`
			Control string `yaml:"control" default:"tickerpulse.control"`
		} `yaml:"topics"`
		Producer struct {
			RequiredAcks int           `yaml:"required_acks" default:"1"`
			Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tickerpulse-control"`
			Workers    int           `yaml:"workers" default:"1" validate:"min=1"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// Source describes one public index listing page.
type Source struct {
	Name   string `yaml:"name" validate:"required"`
	URL    string `yaml:"url" validate:"required,url"`
	Table  int    `yaml:"table" validate:"min=0"`
	Column string `yaml:"column" validate:"required"`
}

// Load reads a YAML configuration file and applies defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set config defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applySourceDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TP_ENV"); v != "" {
		c.App.Environment = v
	}
	if v := os.Getenv("TP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TP_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse TP_HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("TP_CACHE_DIR"); v != "" {
		c.Data.CacheDir = v
	}
	if v := os.Getenv("TP_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("TP_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("TP_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("storage.backend 'redis' requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func (c *Config) applySourceDefaults() {
	if len(c.Discovery.Sources) == 0 {
		c.Discovery.Sources = DefaultSources()
	}
}

// DefaultSources are the Wikipedia index constituent tables.
func DefaultSources() []Source {
	return []Source{
		{Name: "sp500", URL: "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies", Table: 0, Column: "Symbol"},
		{Name: "nasdaq100", URL: "https://en.wikipedia.org/wiki/Nasdaq-100", Table: 4, Column: "Ticker"},
		{Name: "dow30", URL: "https://en.wikipedia.org/wiki/Dow_Jones_Industrial_Average", Table: 1, Column: "Symbol"},
		{Name: "russell1000", URL: "https://en.wikipedia.org/wiki/Russell_1000_Index", Table: 2, Column: "Ticker"},
		{Name: "sp600", URL: "https://en.wikipedia.org/wiki/List_of_S%26P_600_companies", Table: 0, Column: "Symbol"},
	}
}
