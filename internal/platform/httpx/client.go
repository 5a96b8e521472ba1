// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds hardened outbound HTTP clients.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

type options struct {
	tracing       bool
	spanName      string
	headerTimeout time.Duration
}

// Option customizes NewClient.
type Option func(*options)

// WithTracing wraps the transport with OpenTelemetry client spans named after
// operation.
func WithTracing(operation string) Option {
	return func(o *options) {
		o.tracing = true
		o.spanName = operation
	}
}

// WithResponseHeaderTimeout overrides the time allowed for the server to
// start answering. Cameras that render a frame on demand can be slow here.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *options) { o.headerTimeout = d }
}

// NewClient returns an HTTP client with bounded dial, TLS and header timeouts.
// The overall timeout caps every request; callers use contexts for tighter
// per-attempt bounds.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	o := options{headerTimeout: timeout}
	for _, opt := range opts {
		opt(&o)
	}

	dialTimeout := min(timeout, defaultDialTimeout)

	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: min(o.headerTimeout, timeout),
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if o.tracing {
		spanName := o.spanName
		rt = otelhttp.NewTransport(rt, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return spanName + " " + r.Method
		}))
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		// Same-origin redirects only; Authorization must not leave the camera.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			if via[0].URL.Scheme != req.URL.Scheme || via[0].URL.Host != req.URL.Host {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
