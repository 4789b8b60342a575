package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	approvalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_approval_decisions_total",
		Help: "Terminal transitions committed by the approval engine, labeled by outcome",
	}, []string{"status", "reason"})

	approvalConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_approval_version_conflicts_total",
		Help: "Optimistic commits rejected because the account ledger version moved",
	})

	approvalAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_approval_attempts",
		Help:    "Read-compute-commit cycles needed per approval",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})
)
