// Command sse_load opens many concurrent subscriptions to the audit decision
// stream and reports connection and event counts.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/ai/decisions/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	if rampUp == 0 {
		rampUp = defaultRampUp(connections)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting SSE load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	stats := &loadStats{}
	started := time.Now()

	g := new(errgroup.Group)
	g.Go(func() error {
		reportProgress(ctx, logger, stats, started)
		return nil
	})

	interval := rampUp / time.Duration(connections)
	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		g.Go(func() error {
			subscribe(ctx, client, targetURL, stats)
			return nil
		})
	}

	_ = g.Wait()

	snap := stats.snapshot()
	elapsed := time.Since(started)
	logger.Info("done",
		zap.Int64("connected", snap.Connected),
		zap.Int64("connect_errs", snap.ConnectErrs),
		zap.Int64("stream_errs", snap.StreamErrs),
		zap.Int64("decisions", snap.Decisions),
		zap.Int64("heartbeats", snap.Heartbeats),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("decisions_per_sec", float64(snap.Decisions)/max(elapsed.Seconds(), 0.001)))
}

// defaultRampUp spreads large connection counts at roughly 500 per second.
func defaultRampUp(connections int) time.Duration {
	if connections <= 100 {
		return 0
	}
	return max(time.Duration(connections/500)*time.Second, time.Second)
}

func reportProgress(ctx context.Context, logger *zap.Logger, stats *loadStats, started time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := stats.snapshot()
			logger.Info("status",
				zap.Int64("connected", snap.Connected),
				zap.Int64("connect_errs", snap.ConnectErrs),
				zap.Int64("stream_errs", snap.StreamErrs),
				zap.Int64("decisions", snap.Decisions),
				zap.Duration("elapsed", time.Since(started).Truncate(time.Second)))
		}
	}
}
