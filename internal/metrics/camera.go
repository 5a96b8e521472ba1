// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics registers the camgate Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_snapshot_fetches_total",
		Help: "Camera snapshot fetches by outcome (ok, auth, network, empty)",
	}, []string{"outcome"})

	authNegotiations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_auth_negotiations_total",
		Help: "Camera HTTP authentication attempts by scheme and outcome",
	}, []string{"scheme", "outcome"})

	schemeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_scheme_cache_lookups_total",
		Help: "Auth scheme cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	schemeCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camgate_scheme_cache_invalidations_total",
		Help: "Cached auth schemes dropped after a failed attempt",
	})
)

// IncSnapshotFetch counts one snapshot fetch.
func IncSnapshotFetch(outcome string) {
	snapshotFetches.WithLabelValues(outcome).Inc()
}

// IncAuthNegotiation counts one authentication attempt.
func IncAuthNegotiation(scheme, outcome string) {
	authNegotiations.WithLabelValues(scheme, outcome).Inc()
}

// IncSchemeCacheLookup counts a scheme cache lookup.
func IncSchemeCacheLookup(result string) {
	schemeCacheLookups.WithLabelValues(result).Inc()
}

// IncSchemeCacheInvalidation counts a dropped scheme cache entry.
func IncSchemeCacheInvalidation() {
	schemeCacheInvalidations.Inc()
}
