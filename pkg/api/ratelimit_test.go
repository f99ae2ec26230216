// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_Unlimited(t *testing.T) {
	var l *ipLimiter = newIPLimiter(0, 0)
	assert.Nil(t, l)
	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("198.51.100.1"))
	}
}

func TestIPLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiter(5, 5)
	l.now = func() time.Time { return now }
	l.lastSweep.Store(now.UnixNano())

	l.Allow("198.51.100.1")
	l.Allow("198.51.100.2")
	assert.Equal(t, 2, l.size())

	now = now.Add(11 * time.Minute)
	l.Allow("198.51.100.3")
	assert.Equal(t, 1, l.size(), "idle buckets dropped")
}

func TestIPLimiter_DefaultBurst(t *testing.T) {
	l := newIPLimiter(0.5, 0)
	assert.Equal(t, 1, l.burst)
}
