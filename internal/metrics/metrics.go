// Package metrics exposes the relayer's Prometheus instrumentation,
// grounded directly in contract-data-processor/go/server/prometheus_metrics.go's
// promauto-registered package-level vars plus update functions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_submissions_total",
		Help: "Total number of submit_vote/submit_comment_anonymous calls by outcome",
	}, []string{"op", "status"})

	SubmissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_submission_duration_seconds",
		Help:    "End-to-end submit pipeline duration",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"op"})

	SimulateRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_simulate_retries_total",
		Help: "Total number of simulateTransaction retry attempts",
	})

	IndexerWatermark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_indexer_watermark",
		Help: "Current indexer poll-loop ledger watermark",
	})

	IndexerEventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_indexer_events_ingested_total",
		Help: "Total number of events inserted by the indexer's poll loop",
	})

	IndexerPollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_indexer_poll_errors_total",
		Help: "Total number of failed indexer poll-loop sweeps",
	})

	PendingEventsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_pending_events_resolved_total",
		Help: "Total number of pending events resolved by the verify loop, by outcome",
	}, []string{"outcome"})

	OrgCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_org_cache_size",
		Help: "Number of organizations currently cached",
	})

	OrgSyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_org_sync_errors_total",
		Help: "Total number of org-sync sweep failures",
	})

	MembershipSyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_membership_sync_errors_total",
		Help: "Total number of membership-sync sweep failures",
	})
)
