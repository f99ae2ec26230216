// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/session"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"
)

// Pageview is one inbound tracking hit. IP and UserAgent are only used to
// derive the visitor id and are not passed on.
type Pageview struct {
	IP        string
	UserAgent string
	URL       string
	Referrer  string
	SessionID string
	UTM       session.UTMParams
	Timestamp time.Time
}

// Event is what reaches durable storage for one pageview.
type Event struct {
	VisitorID visitor.ID `json:"visitor_id"`
	IsUnique  bool       `json:"is_unique"`
	URL       string     `json:"url"`
	Referrer  string     `json:"referrer,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	// PageCount is the session page number, 0 without session context.
	PageCount int64     `json:"page_count,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Recorder persists pageview events durably.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Outcome reports what Track did. Err is only set when the Recorder failed;
// presence and session trouble is reflected in Degraded and Session instead.
type Outcome struct {
	VisitorID visitor.ID
	IsUnique  bool
	Session   *session.Record
	// Degraded lists the bookkeeping steps that fell back to defaults.
	Degraded []string
	Err      error
}
