//go:build integration

// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package store runs the tracking components against a real store.
package store

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
