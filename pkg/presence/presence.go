// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence counts visitors active within a sliding five-minute window.
//
// Activity lives in one sorted set: member = visitor identifier, score = unix
// seconds of the last pageview. Re-recording a member moves its score, so
// each visitor appears at most once. Stale members are trimmed by the read
// path; there is no background sweeper.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
)

// Window is how long a visitor counts as active after its last activity.
const Window = 5 * time.Minute

// Count is an active-visitor count that may be unknown.
// The zero value is "unknown", which encodes to JSON null.
type Count struct {
	Value int64
	Known bool
}

// KnownCount returns a known count of n.
func KnownCount(n int64) Count { return Count{Value: n, Known: true} }

// Unknown is the count reported when the store is unavailable.
var Unknown = Count{}

// String renders an unknown count as "unknown", never as zero.
func (c Count) String() string {
	if !c.Known {
		return "unknown"
	}
	return strconv.FormatInt(c.Value, 10)
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, c.Value, 10), nil
}

func (c *Count) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Unknown
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*c = KnownCount(n)
	return nil
}

// Tracker records visitor activity and counts active visitors.
type Tracker struct {
	store kv.Store
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func New(store kv.Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordActivity marks member as active now. Store failures are logged and
// dropped; tracking must never fail the request it rides on.
func (t *Tracker) RecordActivity(ctx context.Context, member string) {
	score := float64(t.now().Unix())
	if err := t.store.ZAdd(ctx, kv.PresenceKey, score, member); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("component", "presence").
			Str("op", "record").
			Msg("failed to record visitor activity")
		ErrorsTotal.WithLabelValues("record").Inc()
	}
}

// ActiveCount trims members last seen Window or more ago, then returns how
// many remain. A member exactly Window old is no longer active.
// It returns Unknown if either step fails.
func (t *Tracker) ActiveCount(ctx context.Context) Count {
	threshold := t.now().Add(-Window).Unix()

	if _, err := t.store.ZRemRangeByScore(ctx, kv.PresenceKey, "-inf", kv.ScoreBound(threshold, false)); err != nil {
		t.countFailed(ctx, "trim", err)
		return Unknown
	}

	n, err := t.store.ZCard(ctx, kv.PresenceKey)
	if err != nil {
		t.countFailed(ctx, "count", err)
		return Unknown
	}

	ActiveVisitors.Set(float64(n))
	return KnownCount(n)
}

func (t *Tracker) countFailed(ctx context.Context, op string, err error) {
	logger.Ctx(ctx).Warn().Err(err).
		Str("component", "presence").
		Str("op", op).
		Msg("active visitor count unavailable")
	ErrorsTotal.WithLabelValues(op).Inc()
}
