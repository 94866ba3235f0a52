package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CreditsAwarded sums credits moved through the ledger by transaction type.
	CreditsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditfeed_credits_awarded_total",
		Help: "Total credits awarded (negative adjustments included) by transaction type",
	}, []string{"type"})

	// LedgerWrites counts ledger transactions by type and outcome.
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditfeed_ledger_writes_total",
		Help: "Total ledger award attempts by type and outcome",
	}, []string{"type", "outcome"})

	// Interactions counts interaction requests by action and outcome.
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditfeed_interactions_total",
		Help: "Total content interactions by action and outcome",
	}, []string{"action", "outcome"})

	// FeedRefreshItems counts items contributed per source by refresh outcome.
	FeedRefreshItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditfeed_feed_refresh_items_total",
		Help: "Total items ingested per source during feed refresh",
	}, []string{"source", "outcome"})

	// FeedRefreshDuration records per-source refresh latency.
	FeedRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "creditfeed_feed_refresh_duration_seconds",
		Help:    "Feed refresh latency per source in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// SupplierQuotaRemaining exposes the last known remaining supplier quota.
	SupplierQuotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "creditfeed_supplier_quota_remaining",
		Help: "Remaining calls in the current supplier quota period",
	}, []string{"source"})

	// SupplierFallbacks counts fetches served by generated content instead of the supplier.
	SupplierFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditfeed_supplier_fallbacks_total",
		Help: "Total supplier fetches answered by generated content",
	}, []string{"source", "reason"})
)

// ObserveRefresh records one source's refresh result.
func ObserveRefresh(source string, count int, ok bool, start time.Time) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	FeedRefreshItems.WithLabelValues(source, outcome).Add(float64(count))
	FeedRefreshDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
