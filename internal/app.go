package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/marketsignal/config"
	"github.com/vadiminshakov/marketsignal/internal/metrics"
	"github.com/vadiminshakov/marketsignal/internal/scheduler"
	"github.com/vadiminshakov/marketsignal/internal/services/analysis"
	"github.com/vadiminshakov/marketsignal/internal/services/market/collector"
	"github.com/vadiminshakov/marketsignal/internal/services/market/synthetic"
	"github.com/vadiminshakov/marketsignal/internal/storage/aidecisions"
	"github.com/vadiminshakov/marketsignal/internal/web"
)

// App is the assembled market signal service.
type App struct {
	Collector *collector.MarketDataCollector
	Analysis  *analysis.Service
	Metrics   *metrics.Metrics

	server  *web.Server
	watcher *scheduler.Watcher
	audit   AuditStore
	cache   *web.RedisCache
	logger  *zap.Logger
}

// NewApp wires every component described by conf.
func NewApp(ctx context.Context, conf config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		Metrics: metrics.New(),
		logger:  logger,
	}

	provider, err := NewCandleProvider(conf.Provider)
	if err != nil {
		return nil, err
	}
	app.Collector = collector.NewMarketDataCollector(
		provider,
		synthetic.NewGenerator(),
		logger.Named("collector"),
		collector.WithTimeout(conf.Provider.Timeout),
		collector.WithObserver(app.Metrics),
	)

	app.audit, err = NewAuditStore(ctx, conf.Audit, logger.Named("audit"))
	if err != nil {
		return nil, err
	}

	opts := []analysis.Option{
		analysis.WithObserver(app.Metrics),
		analysis.WithWindow(conf.Analysis.Window),
		analysis.WithOpinionTimeout(conf.Analysis.OpinionTimeout),
		analysis.WithAuditTimeout(conf.Analysis.AuditTimeout),
	}
	if app.audit != nil {
		opts = append(opts, analysis.WithAuditSink(app.audit))
	}
	if analyst := NewChartAnalyst(conf.LLM, logger); analyst != nil {
		opts = append(opts, analysis.WithChartAnalyst(analyst))
		logger.Info("external analyst enabled", zap.String("model", analyst.Model()))
	}
	app.Analysis = analysis.NewService(app.Collector, logger.Named("analysis"), opts...)

	serverOpts := []web.Option{
		web.WithMetrics(app.Metrics.Handler(), app.Metrics),
		web.WithVersion(conf.Version),
	}
	if app.audit != nil {
		serverOpts = append(serverOpts, web.WithRecentDecisions(app.audit))
	}
	if wal, ok := app.audit.(*aidecisions.WALStore); ok {
		serverOpts = append(serverOpts, web.WithDecisionStream(wal))
	}
	if conf.Cache.Enabled() {
		cache, err := web.NewRedisCache(ctx, conf.Cache.RedisAddr, conf.Cache.RedisPassword, conf.Cache.RedisDB)
		if err != nil {
			logger.Warn("response cache disabled", zap.Error(err))
		} else {
			app.cache = cache
			serverOpts = append(serverOpts, web.WithResponseCache(cache, conf.Cache.TTL))
		}
	}
	app.server = web.NewServer(conf.HTTPAddr, app.Analysis, app.Collector, logger.Named("web"), serverOpts...)

	if conf.Watch.Enabled() {
		app.watcher = scheduler.NewWatcher(app.Analysis, conf.Watch.Symbols, conf.Watch.Timeframe, logger.Named("watcher"))
		if err := app.watcher.Register(conf.Watch.Cron); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	return app, nil
}

// Run serves HTTP and runs the watcher until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Start(ctx)
	})
	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "service stopped")
	}

	return nil
}

// Close releases the audit store and cache connections.
func (a *App) Close() error {
	var firstErr error
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			firstErr = errors.Wrap(err, "close audit store")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close response cache")
		}
	}

	return firstErr
}
