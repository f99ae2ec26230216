// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package session keeps per-session pageview state with a sliding 24h TTL.
//
// Sessions are created explicitly with GetOrCreate and advanced with Touch.
// Every write re-arms the TTL, so a session lives until it sees a full day
// without activity. Nothing is ever deleted explicitly.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
)

// TTL is the sliding session lifetime.
const TTL = 24 * time.Hour

// Store reads and writes session records.
//
// Touch is a read-modify-write on a single key. Two concurrent touches of the
// same session may both read page_count n and write n+1; sessions are
// advanced by one client at a time in practice, so no lock is taken.
type Store struct {
	store kv.Store
	now   func() time.Time
	ttl   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store kv.Store, opts ...Option) *Store {
	s := &Store{store: store, now: time.Now, ttl: TTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session sessionID unchanged if it exists (Found).
// Otherwise it stores a new one with page_count 1 and the given first-touch
// attribution (Created).
func (s *Store) GetOrCreate(ctx context.Context, sessionID, referrer string, utm UTMParams) Result {
	if sessionID == "" {
		return s.done("get_or_create", Result{Status: NotFound})
	}

	rec, err := s.load(ctx, sessionID)
	switch {
	case err == nil:
		return s.done("get_or_create", Result{Record: rec, Status: Found})
	case !errors.Is(err, kv.ErrNotFound):
		return s.fail(ctx, "get_or_create", sessionID, err)
	}

	now := s.now().UnixMilli()
	rec = &Record{
		StartTime:       now,
		PageCount:       1,
		LastSeen:        now,
		InitialReferrer: referrer,
		UTMParams:       utm,
	}
	if err := s.save(ctx, sessionID, rec); err != nil {
		return s.fail(ctx, "get_or_create", sessionID, err)
	}
	return s.done("get_or_create", Result{Record: rec, Status: Created})
}

// Touch advances an existing session by one pageview and re-arms its TTL.
// A missing session is NotFound; Touch never creates one.
func (s *Store) Touch(ctx context.Context, sessionID string) Result {
	if sessionID == "" {
		return s.done("touch", Result{Status: NotFound})
	}

	rec, err := s.load(ctx, sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return s.done("touch", Result{Status: NotFound})
	}
	if err != nil {
		return s.fail(ctx, "touch", sessionID, err)
	}

	rec.PageCount++
	rec.LastSeen = s.now().UnixMilli()
	if err := s.save(ctx, sessionID, rec); err != nil {
		return s.fail(ctx, "touch", sessionID, err)
	}
	return s.done("touch", Result{Record: rec, Status: Touched})
}

// Get returns the session without modifying it.
func (s *Store) Get(ctx context.Context, sessionID string) Result {
	if sessionID == "" {
		return s.done("get", Result{Status: NotFound})
	}

	rec, err := s.load(ctx, sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return s.done("get", Result{Status: NotFound})
	}
	if err != nil {
		return s.fail(ctx, "get", sessionID, err)
	}
	return s.done("get", Result{Record: rec, Status: Found})
}

// errCorrupt marks a stored value that does not decode as a Record.
var errCorrupt = errors.New("session: corrupt record")

func (s *Store) load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.store.Get(ctx, kv.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if rec.PageCount < 1 {
		return nil, fmt.Errorf("%w: page_count %d", errCorrupt, rec.PageCount)
	}
	return &rec, nil
}

func (s *Store) save(ctx context.Context, sessionID string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return s.store.SetEX(ctx, kv.SessionKey(sessionID), data, s.ttl)
}

func (s *Store) done(op string, res Result) Result {
	OperationsTotal.WithLabelValues(op, res.Status.String()).Inc()
	return res
}

// fail logs err and degrades to Unavailable. Corrupt records are treated
// like store failures; they are left in place to expire.
func (s *Store) fail(ctx context.Context, op, sessionID string, err error) Result {
	logger.Ctx(ctx).Warn().Err(err).
		Str("component", "session").
		Str("op", op).
		Str("session_id", sessionID).
		Bool("corrupt", errors.Is(err, errCorrupt)).
		Msg("session bookkeeping failed, continuing without session")
	return s.done(op, Result{Status: Unavailable})
}
