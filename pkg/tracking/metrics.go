// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultRecorded = "recorded"
	resultDegraded = "degraded"
	resultFailed   = "failed"
)

// PageviewsTotal counts tracked pageviews by outcome.
var PageviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zapstats",
	Subsystem: "tracking",
	Name:      "pageviews_total",
	Help:      "Total number of tracked pageviews",
}, []string{"result"}) // result: recorded/degraded/failed

func init() {
	debug.Registry().MustRegister(PageviewsTotal)
}
