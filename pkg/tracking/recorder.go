// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"

	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
)

// LogRecorder writes events to the structured log. It is the recorder used
// when no durable sink is wired in.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, ev Event) error {
	logger.Ctx(ctx).Info().
		Str("visitor_id", ev.VisitorID.String()).
		Bool("is_unique", ev.IsUnique).
		Str("url", ev.URL).
		Str("referrer", ev.Referrer).
		Str("session_id", ev.SessionID).
		Int64("page_count", ev.PageCount).
		Time("ts", ev.Timestamp).
		Msg("pageview")
	return nil
}
