// Command analyze runs a single market analysis and prints a styled report.
//
// Usage:
//
//	analyze --symbol BTC-USD --timeframe 1d --config config.yaml
//	analyze --symbol AAPL --opinion=false
//
// Environment variables (also read from .env):
//
//	ALPHA_VANTAGE_API_KEY, OPENROUTER_API_KEY, DATABASE_URL
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/marketsignal/config"
	"github.com/vadiminshakov/marketsignal/internal"
	"github.com/vadiminshakov/marketsignal/internal/domain"
)

func main() {
	configPath, req, err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if err := run(configPath, req); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// parseArgs reads the command flags. The external opinion is requested unless --opinion=false.
func parseArgs(args []string) (string, domain.AnalysisRequest, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	symbol := fs.String("symbol", "BTC-USD", "symbol to analyze, example: BTC-USD")
	timeframe := fs.String("timeframe", domain.DefaultTimeframe, "candle timeframe, example: 1h")
	opinion := fs.Bool("opinion", true, "request an external AI opinion")
	configPath := fs.String("config", "", "path to yaml config")
	if err := fs.Parse(args); err != nil {
		return "", domain.AnalysisRequest{}, err
	}

	return *configPath, domain.AnalysisRequest{
		Symbol:                 *symbol,
		Timeframe:              *timeframe,
		IncludeExternalOpinion: *opinion,
	}, nil
}

func run(configPath string, req domain.AnalysisRequest) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if conf.LogLevel <= zap.DebugLevel {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the one-shot command never serves cached responses
	conf.Cache = config.CacheConfig{}
	app, err := internal.NewApp(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Analysis.Analyze(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(renderReport(result))

	return nil
}
