// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/kv/kvtest"

	"github.com/alicebob/miniredis/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTracker(t *testing.T) (*miniredis.Miniredis, *Tracker, *clock) {
	t.Helper()
	s, client := kvtest.NewClient(t)
	clk := &clock{t: fixedNow}
	return s, New(client, WithClock(clk.Now)), clk
}

// seedAges inserts one member per age directly into the sorted set.
func seedAges(s *miniredis.Miniredis, ages ...int) {
	for _, age := range ages {
		s.ZAdd(kv.PresenceKey, float64(fixedNow.Unix()-int64(age)), fmt.Sprintf("age-%d", age))
	}
}

func TestActiveCount_WindowBoundary(t *testing.T) {
	s, tracker, _ := setupTracker(t)
	seedAges(s, 0, 60, 120, 180, 240, 299, 301, 360, 600)

	assert.Equal(t, KnownCount(6), tracker.ActiveCount(context.Background()))
}

func TestActiveCount_ExactlyWindowOldIsExcluded(t *testing.T) {
	s, tracker, _ := setupTracker(t)
	seedAges(s, 299, 300)

	assert.Equal(t, KnownCount(1), tracker.ActiveCount(context.Background()))

	members, err := s.ZMembers(kv.PresenceKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"age-299"}, members)
}

func TestActiveCount_TrimsStaleEntries(t *testing.T) {
	s, tracker, _ := setupTracker(t)
	seedAges(s, 0, 10, 299, 300, 301, 3600, 86400)

	count := tracker.ActiveCount(context.Background())
	require.True(t, count.Known)
	assert.Equal(t, int64(3), count.Value)

	members, err := s.ZMembers(kv.PresenceKey)
	require.NoError(t, err)
	assert.Len(t, members, int(count.Value), "stale members are removed by the read")
}

func TestActiveCount_Empty(t *testing.T) {
	_, tracker, _ := setupTracker(t)
	assert.Equal(t, KnownCount(0), tracker.ActiveCount(context.Background()))
}

func TestRecordActivity_Idempotent(t *testing.T) {
	s, tracker, clk := setupTracker(t)
	ctx := context.Background()

	tracker.RecordActivity(ctx, "visitor-a")
	clk.Advance(time.Minute)
	tracker.RecordActivity(ctx, "visitor-a")

	members, err := s.ZMembers(kv.PresenceKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"visitor-a"}, members)

	score, err := s.ZScore(kv.PresenceKey, "visitor-a")
	require.NoError(t, err)
	assert.Equal(t, float64(fixedNow.Add(time.Minute).Unix()), score, "score refreshed to latest activity")
	assert.Equal(t, KnownCount(1), tracker.ActiveCount(ctx))
}

func TestRecordActivity_RefreshKeepsVisitorActive(t *testing.T) {
	_, tracker, clk := setupTracker(t)
	ctx := context.Background()

	tracker.RecordActivity(ctx, "visitor-a")
	tracker.RecordActivity(ctx, "visitor-b")

	clk.Advance(4 * time.Minute)
	tracker.RecordActivity(ctx, "visitor-a")
	assert.Equal(t, KnownCount(2), tracker.ActiveCount(ctx))

	clk.Advance(time.Minute)
	assert.Equal(t, KnownCount(1), tracker.ActiveCount(ctx), "visitor-b is now exactly five minutes old")

	clk.Advance(4 * time.Minute)
	assert.Equal(t, KnownCount(0), tracker.ActiveCount(ctx))
}

func TestTracker_StoreDown(t *testing.T) {
	tracker := New(kvtest.FailingStore{})
	ctx := context.Background()

	assert.NotPanics(t, func() { tracker.RecordActivity(ctx, "visitor-a") })

	count := tracker.ActiveCount(ctx)
	assert.False(t, count.Known)
	assert.Equal(t, Unknown, count)
}

func TestTracker_CountFailsAfterTrim(t *testing.T) {
	s, tracker, _ := setupTracker(t)
	seedAges(s, 0)

	s.SetError("ERR forced failure")
	assert.Equal(t, Unknown, tracker.ActiveCount(context.Background()))

	s.SetError("")
	assert.Equal(t, KnownCount(1), tracker.ActiveCount(context.Background()), "recovers on the next poll")
}

func TestActiveCount_UpdatesGauge(t *testing.T) {
	s, tracker, _ := setupTracker(t)
	seedAges(s, 1, 2, 3)

	tracker.ActiveCount(context.Background())

	var m dto.Metric
	require.NoError(t, ActiveVisitors.Write(&m))
	assert.Equal(t, float64(3), m.GetGauge().GetValue())
}

func TestCount_JSON(t *testing.T) {
	for _, tt := range []struct {
		count Count
		json  string
	}{
		{KnownCount(0), `{"count":0}`},
		{KnownCount(42), `{"count":42}`},
		{Unknown, `{"count":null}`},
	} {
		b, err := json.Marshal(struct {
			Count Count `json:"count"`
		}{tt.count})
		require.NoError(t, err)
		assert.JSONEq(t, tt.json, string(b))

		var back struct {
			Count Count `json:"count"`
		}
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, tt.count, back.Count)
	}
}

func TestCount_String(t *testing.T) {
	assert.Equal(t, "0", KnownCount(0).String())
	assert.Equal(t, "unknown", Unknown.String())
}
