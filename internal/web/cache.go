package web

import (
	"bytes"
	"context"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultCacheTTL how long market data and price responses stay cached.
const DefaultCacheTTL = 5 * time.Second

const (
	cacheKeyPrefix = "marketsignal:http:"
	cacheHeader    = "X-Cache"
)

// ResponseCache stores serialized responses by key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache is a ResponseCache backed by redis.
type RedisCache struct {
	client *goredis.Client
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the cached value; ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	return val, true, nil
}

// Set stores value for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, key, value, ttl).Err(), "redis set")
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cached serves 200 JSON responses from the cache. Cache errors fall through to h.
func (s *Server) cached(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cache == nil {
			h(w, r)
			return
		}

		key := cacheKeyPrefix + r.URL.RequestURI()
		body, ok, err := s.cache.Get(r.Context(), key)
		switch {
		case err != nil:
			s.logger.Warn("response cache get", zap.String("key", key), zap.Error(err))
			s.observeCache("error")
		case ok:
			s.observeCache("hit")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(cacheHeader, "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		default:
			s.observeCache("miss")
		}

		rec := &recordingWriter{ResponseWriter: w, code: http.StatusOK}
		w.Header().Set(cacheHeader, "MISS")
		h(rec, r)

		if rec.code != http.StatusOK {
			return
		}
		if err := s.cache.Set(r.Context(), key, rec.body.Bytes(), s.cacheTTL); err != nil {
			s.logger.Warn("response cache set", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Server) observeCache(result string) {
	if s.observer != nil {
		s.observer.ObserveCacheLookup(result)
	}
}

// recordingWriter writes through and keeps a copy of the body.
type recordingWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (w *recordingWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
