// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package billing

import "github.com/prometheus/client_golang/prometheus"

var (
	promUsageReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphplane_billing_reports_total",
			Help: "Usage reports pushed to the billing processor, by result.",
		},
		[]string{"result"},
	)

	promSyncRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphplane_billing_sync_runs_total",
			Help: "Completed periodic billing sync sweeps.",
		},
	)
)

func init() {
	prometheus.MustRegister(promUsageReports)
	prometheus.MustRegister(promSyncRuns)
}
