// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv is the only owner of the ephemeral store connection. Presence,
// dedup and session bookkeeping reach the store exclusively through Store,
// one key (or one score range on one key) per call.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMissingURL is returned by New when no store URL is configured.
	ErrMissingURL = errors.New("kv: store url is required")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kv: client closed")

	// ErrNotFound is returned by Get for an absent (or expired) key.
	ErrNotFound = errors.New("kv: key not found")
)

// Store is the set of single-key commands the tracking components use.
// Keys are logical; implementations apply their own namespace.
type Store interface {
	// SetNX stores value under key with ttl only if key does not exist.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)

	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetEX stores value under key, replacing any previous value and TTL.
	SetEX(ctx context.Context, key string, value any, ttl time.Duration) error

	// ZAdd upserts member into the sorted set at key with the given score.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRemRangeByScore removes members whose score lies in [min, max] and
	// returns how many were removed. Bounds use store syntax: "-inf", "(42".
	ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error)

	// ZCard returns the number of members in the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Client is a lazily connected, reconnecting Store backed by Redis.
//
// The underlying connection pool is created on first use and re-dials
// broken connections on its own; each command is retried up to
// Config.MaxRetries times with capped exponential backoff before its error
// is surfaced to the caller.
//
// Usage:
//
//	client, err := kv.New(kv.Config{URL: "redis://localhost:6379/0"})
//	if err != nil {
//	    return err // missing URL is a startup failure
//	}
//	defer client.Close()
type Client struct {
	cfg  Config
	opts *redis.Options

	mu     sync.Mutex
	rdb    *redis.Client
	closed bool
}

var _ Store = (*Client)(nil)

// New validates cfg and returns a Client. It does not dial.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("kv: invalid store url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		ConnectionsTotal.Inc()
		return nil
	}

	return &Client{cfg: cfg, opts: opts}, nil
}

// Namespace returns the key prefix applied to every command.
func (c *Client) Namespace() string {
	return c.cfg.Namespace
}

func (c *Client) conn() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.rdb == nil {
		c.rdb = redis.NewClient(c.opts)
		logger.Info().
			Str("addr", c.opts.Addr).
			Int("db", c.opts.DB).
			Str("namespace", c.cfg.Namespace).
			Msg("ephemeral store client initialized")
	}
	return c.rdb, nil
}

func (c *Client) key(k string) string {
	return c.cfg.Namespace + k
}

// Connect pings the store up to Config.ConnectAttempts times with a jittered
// linear backoff and returns the last error. Optional: commands connect on
// demand, but callers that want to fail fast or warm the pool use it at startup.
func (c *Client) Connect(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		if err = c.Ping(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) || attempt == c.cfg.ConnectAttempts {
			break
		}

		delay := utils.LinearBackoff(attempt, 250*time.Millisecond, 2*time.Second, 0.2)
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("ephemeral store not reachable")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("kv: connect after %d attempts: %w", c.cfg.ConnectAttempts, err)
}

// Close tears the connection pool down. It is safe to call more than once;
// every later command fails with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Close()
	c.rdb = nil
	return err
}

// observe records latency and failures for op. Absent keys are not failures.
func observe(op string, start time.Time, err error) {
	CommandDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrClosed) {
		ErrorsTotal.WithLabelValues(op).Inc()
	}
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (ok bool, err error) {
	start := time.Now()
	defer func() { observe("setnx", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return false, err
	}
	ok, err = rdb.SetNX(ctx, c.key(key), value, ttl).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv setnx: %w", err)
	}
	return ok, nil
}

func (c *Client) Get(ctx context.Context, key string) (val string, err error) {
	start := time.Now()
	defer func() { observe("get", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return "", err
	}
	val, err = rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get: %w", err)
	}
	return val, nil
}

func (c *Client) SetEX(ctx context.Context, key string, value any, ttl time.Duration) (err error) {
	start := time.Now()
	defer func() { observe("set", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return err
	}
	if err = rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) (err error) {
	start := time.Now()
	defer func() { observe("zadd", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return err
	}
	if err = rdb.ZAdd(ctx, c.key(key), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kv zadd: %w", err)
	}
	return nil
}

func (c *Client) ZRemRangeByScore(ctx context.Context, key, min, max string) (n int64, err error) {
	start := time.Now()
	defer func() { observe("zremrangebyscore", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return 0, err
	}
	n, err = rdb.ZRemRangeByScore(ctx, c.key(key), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("kv zremrangebyscore: %w", err)
	}
	return n, nil
}

func (c *Client) ZCard(ctx context.Context, key string) (n int64, err error) {
	start := time.Now()
	defer func() { observe("zcard", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return 0, err
	}
	n, err = rdb.ZCard(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv zcard: %w", err)
	}
	return n, nil
}

func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("ping", start, err) }()

	rdb, err := c.conn()
	if err != nil {
		return err
	}
	if err = rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("kv ping: %w", err)
	}
	return nil
}

// ScoreBound formats a sorted-set score bound; exclusive bounds get the "(" prefix.
func ScoreBound(score int64, exclusive bool) string {
	s := strconv.FormatInt(score, 10)
	if exclusive {
		return "(" + s
	}
	return s
}
