// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"time"
)

// UTMParams is first-touch campaign attribution.
type UTMParams struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// IsZero reports whether no parameter is set.
func (u UTMParams) IsZero() bool {
	return u == UTMParams{}
}

// Record is the stored state of one session. Times are unix milliseconds.
// InitialReferrer and UTMParams are set on creation and never change.
type Record struct {
	StartTime       int64     `json:"start_time"`
	PageCount       int64     `json:"page_count"`
	LastSeen        int64     `json:"last_seen"`
	InitialReferrer string    `json:"initial_referrer"`
	UTMParams       UTMParams `json:"utm_params"`
}

func (r *Record) Started() time.Time { return time.UnixMilli(r.StartTime) }

func (r *Record) LastSeenAt() time.Time { return time.UnixMilli(r.LastSeen) }

// Duration is the time between the first and the latest pageview.
func (r *Record) Duration() time.Duration {
	return time.Duration(r.LastSeen-r.StartTime) * time.Millisecond
}

// Status says how a session operation ended.
type Status int

const (
	// Unavailable: the store failed or held an unreadable record. Record is nil.
	Unavailable Status = iota
	// NotFound: no live session with that id. Record is nil.
	NotFound
	// Found: an existing session was returned unchanged.
	Found
	// Created: a new session was stored.
	Created
	// Touched: an existing session was advanced by one pageview.
	Touched
)

func (s Status) String() string {
	switch s {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case Created:
		return "created"
	case Touched:
		return "touched"
	default:
		return "unavailable"
	}
}

// Result carries the session after an operation, if there is one.
// Callers without a Record proceed without session context.
type Result struct {
	Record *Record
	Status Status
}

// OK reports whether Record is set.
func (r Result) OK() bool {
	return r.Record != nil
}
