// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup answers "is this the first time today we see this visitor?".
package dedup

import (
	"context"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"
)

// TTL is how long a visitor stays "seen" after its first sighting.
const TTL = 24 * time.Hour

// Result is the outcome of CheckAndRecord.
//
// Degraded is set when the store could not be consulted. Unique is then
// forced to true: an inflated unique count is preferable to a visitor
// missing from it.
type Result struct {
	Unique   bool
	Degraded bool
}

// Deduplicator marks visitor identifiers as seen for TTL.
type Deduplicator struct {
	store kv.Store
	ttl   time.Duration
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithTTL overrides TTL. Intended for tests.
func WithTTL(ttl time.Duration) Option {
	return func(d *Deduplicator) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

func New(store kv.Store, opts ...Option) *Deduplicator {
	d := &Deduplicator{store: store, ttl: TTL}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckAndRecord reports whether id is seen for the first time within the
// window, recording it if so. The check and the write are one SET NX, so
// concurrent first sightings of the same id yield exactly one Unique.
func (d *Deduplicator) CheckAndRecord(ctx context.Context, id visitor.ID) Result {
	stored, err := d.store.SetNX(ctx, kv.DedupKey(id.String()), 1, d.ttl)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("component", "dedup").
			Msg("unique visitor check failed, counting visitor as unique")
		ChecksTotal.WithLabelValues(resultDegraded).Inc()
		return Result{Unique: true, Degraded: true}
	}

	if stored {
		ChecksTotal.WithLabelValues(resultUnique).Inc()
	} else {
		ChecksTotal.WithLabelValues(resultRepeat).Inc()
	}
	return Result{Unique: stored}
}
