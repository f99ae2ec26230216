// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracking turns raw pageviews into visitor, presence and session
// bookkeeping and hands the result to durable storage.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/dedup"
	"github.com/LeeDigitalWorks/zapstats/pkg/presence"
	"github.com/LeeDigitalWorks/zapstats/pkg/session"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"
)

// Pipeline wires the hasher, deduplicator, presence tracker and session
// store for each pageview.
type Pipeline struct {
	hasher   *visitor.Hasher
	dedup    *dedup.Deduplicator
	presence *presence.Tracker
	sessions *session.Store
	recorder Recorder
	now      func() time.Time
}

// Config holds the pipeline collaborators. Recorder defaults to LogRecorder.
type Config struct {
	Hasher   *visitor.Hasher
	Dedup    *dedup.Deduplicator
	Presence *presence.Tracker
	Sessions *session.Store
	Recorder Recorder
	Now      func() time.Time
}

func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		hasher:   cfg.Hasher,
		dedup:    cfg.Dedup,
		presence: cfg.Presence,
		sessions: cfg.Sessions,
		recorder: cfg.Recorder,
		now:      cfg.Now,
	}
	if p.recorder == nil {
		p.recorder = LogRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Track processes one pageview. Dedup and presence run concurrently; the
// session is advanced with Touch, or created on its first pageview. The
// event is recorded whatever happened to the bookkeeping.
func (p *Pipeline) Track(ctx context.Context, pv Pageview) Outcome {
	at := pv.Timestamp
	if at.IsZero() {
		at = p.now()
	}

	id := p.hasher.Hash(pv.IP, pv.UserAgent, at)
	out := Outcome{VisitorID: id}

	var (
		wg  sync.WaitGroup
		dup dedup.Result
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dup = p.dedup.CheckAndRecord(ctx, id)
	}()
	go func() {
		defer wg.Done()
		p.presence.RecordActivity(ctx, id.String())
	}()
	wg.Wait()

	out.IsUnique = dup.Unique
	if dup.Degraded {
		out.Degraded = append(out.Degraded, "dedup")
	}

	if pv.SessionID != "" {
		res := p.advanceSession(ctx, pv)
		out.Session = res.Record
		if res.Status == session.Unavailable {
			out.Degraded = append(out.Degraded, "session")
		}
	}

	ev := Event{
		VisitorID: id,
		IsUnique:  out.IsUnique,
		URL:       pv.URL,
		Referrer:  pv.Referrer,
		SessionID: pv.SessionID,
		Timestamp: at,
	}
	if out.Session != nil {
		ev.PageCount = out.Session.PageCount
	}

	if err := p.recorder.Record(ctx, ev); err != nil {
		out.Err = err
		PageviewsTotal.WithLabelValues(resultFailed).Inc()
		return out
	}

	if len(out.Degraded) > 0 {
		PageviewsTotal.WithLabelValues(resultDegraded).Inc()
	} else {
		PageviewsTotal.WithLabelValues(resultRecorded).Inc()
	}
	return out
}

func (p *Pipeline) advanceSession(ctx context.Context, pv Pageview) session.Result {
	res := p.sessions.Touch(ctx, pv.SessionID)
	if res.Status != session.NotFound {
		return res
	}
	return p.sessions.GetOrCreate(ctx, pv.SessionID, pv.Referrer, pv.UTM)
}

// ActiveCount returns the number of visitors active in the presence window.
func (p *Pipeline) ActiveCount(ctx context.Context) presence.Count {
	return p.presence.ActiveCount(ctx)
}

// Session looks a session up without advancing it.
func (p *Pipeline) Session(ctx context.Context, sessionID string) session.Result {
	return p.sessions.Get(ctx, sessionID)
}
