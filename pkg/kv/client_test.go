// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a miniredis instance and a client pointed at it.
func setupTestStore(t *testing.T, namespace string) (*miniredis.Miniredis, *Client) {
	t.Helper()
	s := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.Addr()
	cfg.Namespace = namespace

	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return s, client
}

func TestNew_MissingURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingURL)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Config{URL: "memcached://localhost:11211"})
	assert.Error(t, err)
}

func TestNew_DoesNotDial(t *testing.T) {
	client, err := New(Config{URL: "redis://localhost:19999"})
	require.NoError(t, err)
	defer client.Close()

	client.mu.Lock()
	assert.Nil(t, client.rdb, "connection must be created on first use")
	client.mu.Unlock()
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{URL: "redis://localhost:6379", MaxRetries: -1, MinRetryBackoff: time.Second}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, time.Second, cfg.MaxRetryBackoff, "max backoff never below min")
}

func TestClient_SetNX(t *testing.T) {
	s, client := setupTestStore(t, "")
	ctx := context.Background()

	ok, err := client.SetNX(ctx, DedupKey("abc"), 1, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, DedupKey("abc"), 1, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second set must not overwrite")

	assert.True(t, s.Exists("visitor:hash:abc"))
	assert.Equal(t, 24*time.Hour, s.TTL("visitor:hash:abc"))
}

func TestClient_GetSetEX(t *testing.T) {
	s, client := setupTestStore(t, "")
	ctx := context.Background()

	_, err := client.Get(ctx, SessionKey("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.SetEX(ctx, SessionKey("s1"), `{"page_count":1}`, time.Hour))
	val, err := client.Get(ctx, SessionKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, `{"page_count":1}`, val)
	assert.Equal(t, time.Hour, s.TTL("session:s1"))

	s.FastForward(time.Hour + time.Second)
	_, err = client.Get(ctx, SessionKey("s1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_SortedSet(t *testing.T) {
	s, client := setupTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, client.ZAdd(ctx, PresenceKey, 100, "a"))
	require.NoError(t, client.ZAdd(ctx, PresenceKey, 200, "b"))
	require.NoError(t, client.ZAdd(ctx, PresenceKey, 300, "a")) // upsert

	n, err := client.ZCard(ctx, PresenceKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	score, err := s.ZScore(PresenceKey, "a")
	require.NoError(t, err)
	assert.Equal(t, float64(300), score)

	removed, err := client.ZRemRangeByScore(ctx, PresenceKey, "-inf", ScoreBound(300, true))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "only b is strictly below 300")

	members, err := s.ZMembers(PresenceKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
}

func TestClient_Namespace(t *testing.T) {
	s, client := setupTestStore(t, "test-run-7:")
	ctx := context.Background()

	_, err := client.SetNX(ctx, DedupKey("abc"), 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, client.ZAdd(ctx, PresenceKey, 1, "m"))

	assert.Equal(t, "test-run-7:", client.Namespace())
	assert.True(t, s.Exists("test-run-7:visitor:hash:abc"))
	assert.True(t, s.Exists("test-run-7:active_visitors"))
	assert.False(t, s.Exists("visitor:hash:abc"))
}

func TestClient_Close(t *testing.T) {
	_, client := setupTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "close is idempotent")

	assert.ErrorIs(t, client.Ping(ctx), ErrClosed)
	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, client.Connect(ctx), ErrClosed)
}

func TestClient_StoreErrorCounted(t *testing.T) {
	s, client := setupTestStore(t, "")
	ctx := context.Background()

	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("zcard"))
	s.SetError("ERR forced failure")

	_, err := client.ZCard(ctx, PresenceKey)
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("zcard")))

	s.SetError("")
	_, err = client.ZCard(ctx, PresenceKey)
	assert.NoError(t, err, "client recovers once the store does")
}

func TestClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://localhost:19999" // Non-existent port
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.MaxRetries = 1
	cfg.PoolSize = 50
	cfg.ConnectAttempts = 2

	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assert.Error(t, client.Ping(ctx))
	err = client.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestClient_ReconnectsAfterRestart(t *testing.T) {
	s, client := setupTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	s.Close()
	assert.Error(t, client.Ping(ctx))

	require.NoError(t, s.Restart())
	assert.NoError(t, client.Ping(ctx), "pool re-dials after the store comes back")
}
