// Package scheduler periodically analyzes a watchlist of symbols.
package scheduler

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/internal/services/analysis"
)

type analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// Watcher runs analyses of the watchlist on a cron schedule.
// External opinions are never requested; results reach the analyzer's audit sink.
type Watcher struct {
	cron      *cron.Cron
	analyzer  analyzer
	symbols   []string
	timeframe string
	logger    *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewWatcher creates a watcher for symbols at timeframe.
func NewWatcher(analyzer analyzer, symbols []string, timeframe string, logger *zap.Logger) *Watcher {
	if timeframe == "" {
		timeframe = domain.DefaultTimeframe
	}

	return &Watcher{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		analyzer:  analyzer,
		symbols:   append([]string(nil), symbols...),
		timeframe: timeframe,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Register schedules the watchlist run. spec is a standard 5-field cron expression
// or a descriptor such as "@every 15m".
func (w *Watcher) Register(spec string) error {
	if len(w.symbols) == 0 {
		return errors.New("watchlist is empty")
	}
	if _, err := w.cron.AddFunc(spec, w.run); err != nil {
		return errors.Wrapf(err, "register watch schedule %q", spec)
	}

	return nil
}

// Start runs the scheduler until ctx is cancelled, then waits for a running job to finish.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.cron.Start()
	w.logger.Info("watcher started",
		zap.Strings("symbols", w.symbols),
		zap.String("timeframe", w.timeframe))

	<-ctx.Done()
	w.Stop()

	return nil
}

// Stop stops the scheduler gracefully.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("watcher stopped")
}

// RunOnce analyzes every watched symbol sequentially and returns the results.
func (w *Watcher) RunOnce(ctx context.Context) []*domain.AnalysisResult {
	results := make([]*domain.AnalysisResult, 0, len(w.symbols))
	for _, symbol := range w.symbols {
		if ctx.Err() != nil {
			break
		}

		result, err := w.analyzer.Analyze(ctx, domain.AnalysisRequest{
			Symbol:    symbol,
			Timeframe: w.timeframe,
		})
		if err != nil {
			w.logger.Error("watch analysis failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		w.logger.Info(analysis.Summary(result),
			zap.String("symbol", result.Symbol),
			zap.String("data_source", string(result.DataSource)))
		results = append(results, result)
	}

	return results
}

func (w *Watcher) run() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	w.RunOnce(ctx)
}
