// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "license_authority"

var (
	// AccessVerdicts counts access checks by outcome and reason code.
	AccessVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_verdicts_total",
		Help:      "Access checks by allowed flag and reason code.",
	}, []string{"allowed", "reason"})

	// AdminActions counts admin lifecycle actions by action and result.
	AdminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_actions_total",
		Help:      "Admin lifecycle actions by action and result.",
	}, []string{"action", "result"})

	// WebhookEvents counts processor webhook events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Processor webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Processor webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// VersionConflicts counts optimistic concurrency conflicts by source.
	VersionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "version_conflicts_total",
		Help:      "Optimistic concurrency conflicts by writer (admin, webhook).",
	}, []string{"source"})

	// SpoofingRejections counts admin requests rejected for carrying identity fields.
	SpoofingRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spoofing_rejections_total",
		Help:      "Admin requests rejected for carrying server-controlled fields.",
	})
)
