// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_http_requests_total",
		Help: "Trigger API requests by route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "camgate_http_request_duration_seconds",
		Help:    "Trigger API latency; recording streams run for the clip length",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 150},
	}, []string{"method", "route"})

	messagingSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_messaging_sends_total",
		Help: "Outbound messaging deliveries by kind and outcome",
	}, []string{"kind", "outcome"})
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncMessagingSend counts one delivery attempt.
func IncMessagingSend(kind, outcome string) {
	messagingSends.WithLabelValues(kind, outcome).Inc()
}
