// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv/kvtest"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func testID(ip string) visitor.ID {
	h := visitor.NewHasher([]byte("test-secret"))
	return h.Hash(ip, "test-agent", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestCheckAndRecord_FirstThenRepeat(t *testing.T) {
	s, client := kvtest.NewClient(t)
	d := New(client)
	ctx := context.Background()
	id := testID("198.51.100.1")

	assert.Equal(t, Result{Unique: true}, d.CheckAndRecord(ctx, id))
	assert.Equal(t, Result{Unique: false}, d.CheckAndRecord(ctx, id))
	assert.Equal(t, Result{Unique: false}, d.CheckAndRecord(ctx, id))

	key := "visitor:hash:" + id.String()
	assert.True(t, s.Exists(key))
	assert.Equal(t, 24*time.Hour, s.TTL(key))
}

func TestCheckAndRecord_ExpiresAfterTTL(t *testing.T) {
	s, client := kvtest.NewClient(t)
	d := New(client)
	ctx := context.Background()
	id := testID("198.51.100.2")

	assert.True(t, d.CheckAndRecord(ctx, id).Unique)

	s.FastForward(23 * time.Hour)
	assert.False(t, d.CheckAndRecord(ctx, id).Unique, "repeat sighting does not extend the window")

	s.FastForward(time.Hour + time.Second)
	assert.True(t, d.CheckAndRecord(ctx, id).Unique, "unique again once the marker expired")
}

func TestCheckAndRecord_IndependentVisitors(t *testing.T) {
	_, client := kvtest.NewClient(t)
	d := New(client)
	ctx := context.Background()

	assert.True(t, d.CheckAndRecord(ctx, testID("198.51.100.3")).Unique)
	assert.True(t, d.CheckAndRecord(ctx, testID("198.51.100.4")).Unique)
}

func TestCheckAndRecord_WithTTL(t *testing.T) {
	s, client := kvtest.NewClient(t)
	d := New(client, WithTTL(time.Minute))
	id := testID("198.51.100.5")

	d.CheckAndRecord(context.Background(), id)
	assert.Equal(t, time.Minute, s.TTL("visitor:hash:"+id.String()))
}

func TestCheckAndRecord_ConcurrentFirstSighting(t *testing.T) {
	_, client := kvtest.NewClient(t)
	d := New(client)
	id := testID("198.51.100.6")

	var unique atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.CheckAndRecord(context.Background(), id).Unique {
				unique.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), unique.Load())
}

func TestCheckAndRecord_StoreDown(t *testing.T) {
	d := New(kvtest.FailingStore{})
	before := testutil.ToFloat64(ChecksTotal.WithLabelValues(resultDegraded))

	res := d.CheckAndRecord(context.Background(), testID("198.51.100.7"))
	assert.Equal(t, Result{Unique: true, Degraded: true}, res)
	assert.Equal(t, before+1, testutil.ToFloat64(ChecksTotal.WithLabelValues(resultDegraded)))
}

func TestCheckAndRecord_StoreErrors(t *testing.T) {
	s, client := kvtest.NewClient(t)
	d := New(client)
	id := testID("198.51.100.8")

	s.SetError("ERR forced failure")
	assert.Equal(t, Result{Unique: true, Degraded: true}, d.CheckAndRecord(context.Background(), id))

	s.SetError("")
	assert.Equal(t, Result{Unique: true}, d.CheckAndRecord(context.Background(), id),
		"the failed call recorded nothing")
}
