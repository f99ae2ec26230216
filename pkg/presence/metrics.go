// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveVisitors holds the last successfully read active count.
	ActiveVisitors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zapstats",
		Subsystem: "presence",
		Name:      "active_visitors",
		Help:      "Visitors active in the last five minutes, as of the last successful read",
	})

	// ErrorsTotal counts swallowed presence failures.
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapstats",
		Subsystem: "presence",
		Name:      "errors_total",
		Help:      "Total number of presence operations that failed",
	}, []string{"op"}) // op: record/trim/count
)

func init() {
	debug.Registry().MustRegister(ActiveVisitors, ErrorsTotal)
}
