// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultUnique   = "unique"
	resultRepeat   = "repeat"
	resultDegraded = "degraded"
)

// ChecksTotal counts dedup checks by result.
var ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zapstats",
	Subsystem: "dedup",
	Name:      "checks_total",
	Help:      "Total number of unique-visitor checks",
}, []string{"result"}) // result: unique/repeat/degraded

func init() {
	debug.Registry().MustRegister(ChecksTotal)
}
