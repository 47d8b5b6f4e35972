// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promLimitChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphplane_limit_checks_total",
			Help: "Total number of plan limit checks",
		},
		[]string{"result"},
	)
	promLimitDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphplane_limit_denials_total",
			Help: "Total number of limit check denials by metric",
		},
		[]string{"metric"},
	)
	promLedgerIncrements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphplane_ledger_increments_total",
			Help: "Total number of usage ledger increment operations",
		},
	)
)

func init() {
	prometheus.MustRegister(promLimitChecks)
	prometheus.MustRegister(promLimitDenials)
	prometheus.MustRegister(promLedgerIncrements)
}
