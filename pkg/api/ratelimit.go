// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter applies a token bucket per client IP. Buckets idle for longer
// than idleTTL are dropped on the next sweep.
type ipLimiter struct {
	rps   rate.Limit
	burst int

	limiters  sync.Map // ip -> *ipBucket
	lastSweep atomic.Int64
	idleTTL   time.Duration
	now       func() time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// newIPLimiter returns nil when rps is not positive (unlimited).
func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	l := &ipLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *ipLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.maybeSweep(now)

	v, ok := l.limiters.Load(ip)
	if !ok {
		v, _ = l.limiters.LoadOrStore(ip, &ipBucket{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	b := v.(*ipBucket)
	b.lastUsed.Store(now.UnixNano())
	return b.limiter.AllowN(now, 1)
}

func (l *ipLimiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.idleTTL) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.limiters.Range(func(key, value any) bool {
		if value.(*ipBucket).lastUsed.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

func (l *ipLimiter) size() int {
	n := 0
	l.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
