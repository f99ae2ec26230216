//go:build integration

// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapstats/integration/testutil"
	"github.com/LeeDigitalWorks/zapstats/pkg/dedup"
	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/presence"
	"github.com/LeeDigitalWorks/zapstats/pkg/session"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *kv.Client {
	t.Helper()

	cfg := kv.DefaultConfig()
	cfg.URL = testutil.Addrs.RedisURL
	cfg.Namespace = testutil.Namespace()

	client, err := kv.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := testutil.WithShortTimeout(context.Background())
	defer cancel()
	require.NoError(t, client.Connect(ctx), "store must be reachable at %s", cfg.URL)
	return client
}

func TestDedup_ConcurrentFirstSight(t *testing.T) {
	client := newClient(t)
	d := dedup.New(client)
	id := visitor.NewHasher([]byte("it")).Hash(testutil.TestIP(1), uuid.NewString(), time.Now())

	var unique atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := d.CheckAndRecord(context.Background(), id); res.Unique && !res.Degraded {
				unique.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), unique.Load(), "exactly one caller sees the visitor as new")
}

func TestPresence_Isolated(t *testing.T) {
	client := newClient(t)
	tracker := presence.New(client)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tracker.RecordActivity(ctx, uuid.NewString())
	}

	count := tracker.ActiveCount(ctx)
	require.True(t, count.Known)
	assert.Equal(t, int64(4), count.Value, "namespace isolates this run from live traffic")
}

func TestSession_Lifecycle(t *testing.T) {
	client := newClient(t)
	store := session.New(client)
	ctx := context.Background()
	sid := uuid.NewString()

	assert.Equal(t, session.NotFound, store.Touch(ctx, sid).Status)

	created := store.GetOrCreate(ctx, sid, "https://a.com", session.UTMParams{Source: "it"})
	require.Equal(t, session.Created, created.Status)

	touched := store.Touch(ctx, sid)
	require.Equal(t, session.Touched, touched.Status)
	assert.Equal(t, int64(2), touched.Record.PageCount)
	assert.Equal(t, "it", touched.Record.UTMParams.Source)
}
