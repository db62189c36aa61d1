package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Market data providers.
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderBinance      = "binance"
	ProviderBybit        = "bybit"
	// ProviderNone serves synthetic series only.
	ProviderNone = "none"
)

// Audit sinks.
const (
	AuditWAL      = "wal"
	AuditPostgres = "postgres"
	AuditSQLite   = "sqlite"
	AuditNone     = "none"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultLogLevel        = "info"
	defaultRateLimit       = 5
	defaultRateBurst       = 1
	defaultProviderTimeout = 10 * time.Second
	defaultWindow          = 120
	defaultOpinionTimeout  = 30 * time.Second
	defaultAuditTimeout    = 5 * time.Second
	defaultWALDir          = "./wal/ai_decisions"
	defaultCacheTTL        = 5 * time.Second
)

// Config is the validated service configuration.
type Config struct {
	HTTPAddr string
	LogLevel zapcore.Level
	Version  string

	Provider ProviderConfig
	Analysis AnalysisConfig
	LLM      LLMConfig
	Audit    AuditConfig
	Cache    CacheConfig
	Watch    WatchConfig
}

// ProviderConfig selects and tunes the market data provider.
type ProviderConfig struct {
	Name            string
	AlphaVantageKey string
	AlphaVantageURL string
	BinanceURL      string
	BybitURL        string
	// RatePerMinute limits outbound Alpha Vantage requests.
	RatePerMinute int
	RateBurst     int
	Timeout       time.Duration
}

// AnalysisConfig tunes the analysis service.
type AnalysisConfig struct {
	Window         int
	OpinionTimeout time.Duration
	AuditTimeout   time.Duration
}

// LLMConfig configures the external analyst. It is disabled without an API key.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Enabled reports whether external opinions can be requested.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Driver string
	WALDir string
	DSN    string
}

// CacheConfig configures the redis response cache. It is disabled without an address.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Enabled reports whether the response cache is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// WatchConfig schedules periodic watchlist analysis. It is disabled without a cron spec.
type WatchConfig struct {
	Cron      string
	Symbols   []string
	Timeframe string
}

// Enabled reports whether the watcher should run.
func (c WatchConfig) Enabled() bool {
	return c.Cron != "" && len(c.Symbols) > 0
}

// ConfigTmp mirrors the yaml file before validation.
type ConfigTmp struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	Version  string `yaml:"version"`

	Provider struct {
		Name            string        `yaml:"name"`
		AlphaVantageKey string        `yaml:"alphavantage_api_key"`
		AlphaVantageURL string        `yaml:"alphavantage_url"`
		BinanceURL      string        `yaml:"binance_url"`
		BybitURL        string        `yaml:"bybit_url"`
		RatePerMinute   int           `yaml:"rate_per_minute"`
		RateBurst       int           `yaml:"rate_burst"`
		Timeout         time.Duration `yaml:"timeout"`
	} `yaml:"provider"`

	Analysis struct {
		Window         int           `yaml:"window"`
		OpinionTimeout time.Duration `yaml:"opinion_timeout"`
		AuditTimeout   time.Duration `yaml:"audit_timeout"`
	} `yaml:"analysis"`

	LLM struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"llm"`

	Audit struct {
		Driver string `yaml:"driver"`
		WALDir string `yaml:"wal_dir"`
		DSN    string `yaml:"dsn"`
	} `yaml:"audit"`

	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		TTL           time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Watch struct {
		Cron      string   `yaml:"cron"`
		Symbols   []string `yaml:"symbols"`
		Timeframe string   `yaml:"timeframe"`
	} `yaml:"watch"`
}

// Load reads the yaml file at path (defaults only when path is empty), applies
// .env and environment overrides and validates the result.
func Load(path string) (Config, error) {
	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()
	applyEnv(&tmp, os.LookupEnv)

	return tmp.toConfig()
}

func applyEnv(tmp *ConfigTmp, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&tmp.HTTPAddr, "HTTP_ADDR")
	set(&tmp.LogLevel, "LOG_LEVEL")
	set(&tmp.Provider.Name, "MARKET_PROVIDER")
	set(&tmp.Provider.AlphaVantageKey, "ALPHA_VANTAGE_API_KEY")
	set(&tmp.LLM.APIKey, "OPENROUTER_API_KEY")
	set(&tmp.LLM.BaseURL, "LLM_BASE_URL")
	set(&tmp.LLM.Model, "LLM_MODEL")
	set(&tmp.Audit.DSN, "DATABASE_URL")
	set(&tmp.Cache.RedisAddr, "REDIS_ADDR")
	set(&tmp.Cache.RedisPassword, "REDIS_PASSWORD")
}

func (c ConfigTmp) toConfig() (Config, error) {
	level, err := zapcore.ParseLevel(orDefault(c.LogLevel, defaultLogLevel))
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'log_level' param in config: %s", c.LogLevel)
	}

	cfg := Config{
		HTTPAddr: orDefault(c.HTTPAddr, defaultHTTPAddr),
		LogLevel: level,
		Version:  orDefault(c.Version, "dev"),
		Provider: ProviderConfig{
			Name:            strings.ToLower(orDefault(c.Provider.Name, ProviderAlphaVantage)),
			AlphaVantageKey: c.Provider.AlphaVantageKey,
			AlphaVantageURL: c.Provider.AlphaVantageURL,
			BinanceURL:      c.Provider.BinanceURL,
			BybitURL:        c.Provider.BybitURL,
			RatePerMinute:   positiveOr(c.Provider.RatePerMinute, defaultRateLimit),
			RateBurst:       positiveOr(c.Provider.RateBurst, defaultRateBurst),
			Timeout:         durationOr(c.Provider.Timeout, defaultProviderTimeout),
		},
		Analysis: AnalysisConfig{
			Window:         positiveOr(c.Analysis.Window, defaultWindow),
			OpinionTimeout: durationOr(c.Analysis.OpinionTimeout, defaultOpinionTimeout),
			AuditTimeout:   durationOr(c.Analysis.AuditTimeout, defaultAuditTimeout),
		},
		LLM: LLMConfig{
			BaseURL: c.LLM.BaseURL,
			APIKey:  c.LLM.APIKey,
			Model:   c.LLM.Model,
		},
		Audit: AuditConfig{
			Driver: strings.ToLower(orDefault(c.Audit.Driver, AuditWAL)),
			WALDir: orDefault(c.Audit.WALDir, defaultWALDir),
			DSN:    c.Audit.DSN,
		},
		Cache: CacheConfig{
			RedisAddr:     c.Cache.RedisAddr,
			RedisPassword: c.Cache.RedisPassword,
			RedisDB:       c.Cache.RedisDB,
			TTL:           durationOr(c.Cache.TTL, defaultCacheTTL),
		},
		Watch: WatchConfig{
			Cron:      strings.TrimSpace(c.Watch.Cron),
			Symbols:   c.Watch.Symbols,
			Timeframe: c.Watch.Timeframe,
		},
	}

	switch cfg.Provider.Name {
	case ProviderAlphaVantage, ProviderBinance, ProviderBybit, ProviderNone:
	default:
		return Config{}, errors.Errorf("incorrect 'provider.name' param in config: %s", cfg.Provider.Name)
	}

	switch cfg.Audit.Driver {
	case AuditWAL, AuditNone:
	case AuditPostgres, AuditSQLite:
		if cfg.Audit.DSN == "" {
			return Config{}, errors.Errorf("audit driver %s requires 'audit.dsn' or DATABASE_URL", cfg.Audit.Driver)
		}
	default:
		return Config{}, errors.Errorf("incorrect 'audit.driver' param in config: %s", cfg.Audit.Driver)
	}

	if cfg.Cache.RedisDB < 0 {
		return Config{}, errors.Errorf("incorrect 'cache.redis_db' param in config (must be >= 0): %d", cfg.Cache.RedisDB)
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
