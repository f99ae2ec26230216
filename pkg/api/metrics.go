// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestsTotal counts API requests by route and status code.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapstats",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of API requests",
	}, []string{"route", "code"})

	// RequestDuration tracks API latency by route.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapstats",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving API requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	debug.Registry().MustRegister(RequestsTotal, RequestDuration)
}
