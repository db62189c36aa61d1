package internal

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/config"
	"github.com/vadiminshakov/marketsignal/internal/clients"
	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/market/collector"
	"github.com/vadiminshakov/marketsignal/internal/services/market/providers"
	"github.com/vadiminshakov/marketsignal/internal/services/promptbuilder"
	"github.com/vadiminshakov/marketsignal/internal/storage/aidecisions"
	"github.com/vadiminshakov/marketsignal/internal/storage/sqlaudit"
)

// AuditStore persists audit records and serves the most recent ones.
type AuditStore interface {
	Save(ctx context.Context, record domain.AuditRecord) error
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	io.Closer
}

// NewCandleProvider creates the configured market data provider.
// ProviderNone yields a nil provider, which serves synthetic series only.
func NewCandleProvider(cfg config.ProviderConfig) (collector.CandleProvider, error) {
	switch cfg.Name {
	case config.ProviderAlphaVantage:
		opts := []providers.AlphaVantageOption{providers.WithRateLimit(cfg.RatePerMinute, cfg.RateBurst)}
		if cfg.AlphaVantageURL != "" {
			opts = append(opts, providers.WithBaseURL(cfg.AlphaVantageURL))
		}
		return providers.NewAlphaVantageProvider(cfg.AlphaVantageKey, opts...), nil
	case config.ProviderBinance:
		return providers.NewBinanceKlineProvider(clients.NewBinanceClient(cfg.BinanceURL)), nil
	case config.ProviderBybit:
		return providers.NewBybitKlineProvider(clients.NewBybitClient(cfg.BybitURL)), nil
	case config.ProviderNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unsupported market data provider: %s", cfg.Name)
	}
}

// NewAuditStore opens the configured audit sink. AuditNone yields a nil store.
func NewAuditStore(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (AuditStore, error) {
	switch cfg.Driver {
	case config.AuditWAL:
		store, err := aidecisions.NewWALStore(cfg.WALDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open audit WAL")
		}
		return store, nil
	case config.AuditPostgres:
		store, err := sqlaudit.Open(ctx, sqlaudit.DriverPostgres, cfg.DSN, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open postgres audit store")
		}
		return store, nil
	case config.AuditSQLite:
		store, err := sqlaudit.Open(ctx, sqlaudit.DriverSQLite, cfg.DSN, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open sqlite audit store")
		}
		return store, nil
	case config.AuditNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unsupported audit driver: %s", cfg.Driver)
	}
}

// NewChartAnalyst creates the external analyst client, or nil when no API key is configured.
func NewChartAnalyst(cfg config.LLMConfig, logger *zap.Logger) *clients.OpenAICompatibleClient {
	if !cfg.Enabled() {
		return nil
	}

	return clients.NewOpenAICompatibleClient(
		cfg.BaseURL,
		cfg.APIKey,
		cfg.Model,
		promptbuilder.NewPromptBuilder(logger),
		logger.Named("analyst"),
	)
}
