// Package telemetry owns the service's Prometheus collectors and the
// OpenTelemetry tracer provider.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes used as the "outcome" label.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

var (
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Subsystem: "tasks",
		Name:      "submitted_total",
		Help:      "Tasks accepted by submit, labelled by mode (now or scheduled).",
	}, []string{"mode"})

	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Subsystem: "dispatch",
		Name:      "total",
		Help:      "Dispatch attempts, labelled by outcome.",
	}, []string{"outcome"})

	DispatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mailsched",
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Help:      "Time spent in the delivery API per dispatch.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	ScanClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailsched",
		Subsystem: "scan",
		Name:      "claimed_total",
		Help:      "Due tasks claimed and dispatched by scans.",
	})

	ScanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Subsystem: "scan",
		Name:      "runs_total",
		Help:      "Scan invocations, labelled by result.",
	}, []string{"result"})

	FollowUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailsched",
		Subsystem: "followup",
		Name:      "total",
		Help:      "Completion follow-up notifications, labelled by outcome (sent, failed, dropped).",
	}, []string{"outcome"})
)
