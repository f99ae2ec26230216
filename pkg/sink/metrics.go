// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsTotal counts events handed to a sink by outcome.
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapstats",
		Subsystem: "sink",
		Name:      "events_total",
		Help:      "Total number of pageview events handled by durable sinks",
	}, []string{"sink", "result"}) // result: sent/buffered/dropped/failed

	// FlushDuration tracks how long batch inserts take.
	FlushDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapstats",
		Subsystem: "sink",
		Name:      "flush_duration_seconds",
		Help:      "Duration of durable sink writes",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sink"})
)

func init() {
	debug.Registry().MustRegister(EventsTotal, FlushDuration)
}
