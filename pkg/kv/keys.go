// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package kv

// Logical key layout, shared with existing deployments. The client adds
// Config.Namespace in front of each.
const (
	dedupKeyPrefix   = "visitor:hash:"
	sessionKeyPrefix = "session:"

	// PresenceKey is the sorted set of active visitors scored by last-seen unix seconds.
	PresenceKey = "active_visitors"
)

func DedupKey(visitorID string) string { return dedupKeyPrefix + visitorID }

func SessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }
