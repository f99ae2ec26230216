// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationsTotal counts session operations by outcome.
var OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zapstats",
	Subsystem: "session",
	Name:      "operations_total",
	Help:      "Total number of session operations by outcome",
}, []string{"op", "status"}) // op: get_or_create/touch/get, status: found/created/touched/not_found/unavailable

func init() {
	debug.Registry().MustRegister(OperationsTotal)
}
