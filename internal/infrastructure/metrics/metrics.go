package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing_sync"

var (
	// WebhookRequestsTotal counts webhook requests by HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Total webhook requests by HTTP status.",
	}, []string{"status"})

	// WebhookEventsTotal counts dispatched events by type and processing outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events processed, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// SignatureFailuresTotal counts rejected webhook signatures by reason.
	SignatureFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "signature_failures_total",
		Help:      "Webhook requests rejected during signature verification.",
	}, []string{"reason"})

	// LookupsTotal counts provider lookups by object kind and result.
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "lookups_total",
		Help:      "Provider API lookups by object kind and result (ok, not_found, error, cache_hit).",
	}, []string{"kind", "result"})

	// ReplayedEventsTotal counts ledger events re-dispatched by the replayer.
	ReplayedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "replayed_total",
		Help:      "Failed webhook events re-dispatched from the ledger, by outcome.",
	}, []string{"outcome"})
)
