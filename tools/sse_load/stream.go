package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

const decisionEvent = "ai_decision"

type loadStats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	decisions   atomic.Int64
	heartbeats  atomic.Int64
}

type statsSnapshot struct {
	Connected   int64
	ConnectErrs int64
	StreamErrs  int64
	Decisions   int64
	Heartbeats  int64
}

func (s *loadStats) snapshot() statsSnapshot {
	return statsSnapshot{
		Connected:   s.connected.Load(),
		ConnectErrs: s.connectErrs.Load(),
		StreamErrs:  s.streamErrs.Load(),
		Decisions:   s.decisions.Load(),
		Heartbeats:  s.heartbeats.Load(),
	}
}

func subscribe(ctx context.Context, client *http.Client, url string, stats *loadStats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		stats.connectErrs.Add(1)
		return
	}
	stats.connected.Add(1)

	if err := consume(resp.Body, stats); err != nil && ctx.Err() == nil {
		stats.streamErrs.Add(1)
	}
}

// consume counts decision events and heartbeats until the stream ends.
func consume(r io.Reader, stats *loadStats) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			stats.heartbeats.Add(1)
		case strings.HasPrefix(line, "event:") && strings.TrimSpace(line[len("event:"):]) == decisionEvent:
			stats.decisions.Add(1)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return io.ErrUnexpectedEOF
}
