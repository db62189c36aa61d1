// Command marketsignal serves market analyses over HTTP and runs the
// optional watchlist schedule.
//
// Usage:
//
//	marketsignal --config config.yaml
//	marketsignal (defaults plus environment)
//
// Environment variables (also read from .env):
//
//	ALPHA_VANTAGE_API_KEY, OPENROUTER_API_KEY, DATABASE_URL, REDIS_ADDR, HTTP_ADDR
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/config"
	"github.com/vadiminshakov/marketsignal/internal"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	zapConf := zap.NewProductionConfig()
	zapConf.Level = zap.NewAtomicLevelAt(conf.LogLevel)
	logger, err := zapConf.Build()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := internal.NewApp(ctx, conf, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer app.Close()

	logger.Info("started",
		zap.String("addr", conf.HTTPAddr),
		zap.String("provider", conf.Provider.Name),
		zap.String("audit", conf.Audit.Driver),
		zap.Bool("watch", conf.Watch.Enabled()))

	if err := app.Run(ctx); err != nil {
		logger.Error("stopped with error", zap.Error(err))
	}
}
