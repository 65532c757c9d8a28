// Package metrics declares the prometheus collectors of the share access
// service. They register with the default registry served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "showroom"

const (
	NameVerifyAttempts     = "share_verify_attempts"
	NameLockouts           = "share_lockouts"
	NameTimelineCache      = "timeline_cache_lookups"
	NameCacheInvalidations = "timeline_cache_invalidations"
	NameVerifyThrottled    = "share_verify_throttled"
	LabelOutcome           = "outcome"
	LabelResult            = "result"
	LabelMutation          = "mutation"
	ResultHit              = "hit"
	ResultMiss             = "miss"
	ResultError            = "error"
)

// VerifyAttempts counts admission outcomes: success, not_found, inactive,
// expired, locked_out, password_mismatch, malformed, error.
var VerifyAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameVerifyAttempts,
		Help:      "Share verify attempts by outcome",
		Namespace: Namespace,
	},
	[]string{LabelOutcome},
)

var Lockouts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameLockouts,
		Help:      "Lockouts triggered by repeated wrong share passwords",
		Namespace: Namespace,
	},
)

var TimelineCache = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameTimelineCache,
		Help:      "Timeline cache lookups by result",
		Namespace: Namespace,
	},
	[]string{LabelResult},
)

var CacheInvalidations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameCacheInvalidations,
		Help:      "Timeline cache entries invalidated by admin mutations",
		Namespace: Namespace,
	},
	[]string{LabelMutation},
)

var VerifyThrottled = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameVerifyThrottled,
		Help:      "Verify requests rejected by the per-IP rate limiter",
		Namespace: Namespace,
	},
)
