// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrorsTotal counts failed store commands after retries.
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapstats",
		Subsystem: "kv",
		Name:      "errors_total",
		Help:      "Total number of ephemeral store commands that failed after retries",
	}, []string{"op"}) // op: setnx, get, set, zadd, zremrangebyscore, zcard, ping

	// ConnectionsTotal counts new connections, so reconnect storms are visible.
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zapstats",
		Subsystem: "kv",
		Name:      "connections_total",
		Help:      "Total number of connections established to the ephemeral store",
	})

	// CommandDuration tracks command round-trip latency.
	CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapstats",
		Subsystem: "kv",
		Name:      "command_duration_seconds",
		Help:      "Time spent on ephemeral store commands",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"op"})
)

func init() {
	debug.Registry().MustRegister(
		ErrorsTotal,
		ConnectionsTotal,
		CommandDuration,
	)
}
