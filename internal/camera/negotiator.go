// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
	"github.com/ManuGH/camgate/internal/platform/httpx"
	"github.com/ManuGH/camgate/internal/telemetry"
)

const (
	defaultBasicTimeout   = 3 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultMaxBody        = 20 << 20
)

// Request describes the HTTP call made against an endpoint.
type Request struct {
	// Method defaults to GET.
	Method string
	Header http.Header
}

// NegotiatorConfig tunes a Negotiator.
type NegotiatorConfig struct {
	BasicTimeout   time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Negotiator performs authenticated camera requests, trying Basic before
// Digest unless the endpoint is already known to need Digest.
type Negotiator struct {
	client         *http.Client
	schemes        *SchemeStore
	basicTimeout   time.Duration
	requestTimeout time.Duration
	maxBody        int64
	logger         zerolog.Logger
	cnonce         func() (string, error)
}

// NewNegotiator creates a Negotiator with a traced HTTP client.
func NewNegotiator(cfg NegotiatorConfig, schemes *SchemeStore) *Negotiator {
	client := httpx.NewClient(cfg.RequestTimeout, httpx.WithTracing("camera"))
	return newNegotiator(client, cfg, schemes)
}

func newNegotiator(client *http.Client, cfg NegotiatorConfig, schemes *SchemeStore) *Negotiator {
	if cfg.BasicTimeout <= 0 {
		cfg.BasicTimeout = defaultBasicTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	return &Negotiator{
		client:         client,
		schemes:        schemes,
		basicTimeout:   cfg.BasicTimeout,
		requestTimeout: cfg.RequestTimeout,
		maxBody:        cfg.MaxBodyBytes,
		logger:         xglog.WithComponent("camera"),
		cnonce:         NewCNonce,
	}
}

// budget bounds one full negotiation: a challenge round trip plus the
// authenticated request.
func (n *Negotiator) budget() time.Duration {
	return n.basicTimeout + 2*n.requestTimeout
}

type response struct {
	status       int
	contentType  string
	authenticate []string
	body         []byte
}

// Fetch performs req against ep and returns the body and reported MIME type.
// Each scheme is tried at most once.
func (n *Negotiator) Fetch(ctx context.Context, ep Endpoint, creds Credentials, req Request) (body []byte, mimeType string, err error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	ctx, span := telemetry.StartSpan(ctx, "camera.fetch", telemetry.CameraAttributes(ep.Redacted(), "")...)
	defer func() { telemetry.EndSpan(span, err, errorType(err)) }()

	logger := xglog.WithContext(ctx, n.logger).With().Str(xglog.FieldEndpoint, ep.Redacted()).Logger()

	cached := n.schemes.Get(ctx, ep.Key)
	var (
		attempted []Scheme
		challenge Challenge
	)

	if cached == SchemeDigest {
		// A digest nonce is single-use; harvest a fresh one.
		resp, err := n.do(ctx, 0, ep, req, "")
		if err != nil {
			n.invalidate(ctx, ep, cached, logger)
			return nil, "", n.networkError(ep, attempted, 0, err)
		}
		if isSuccess(resp.status) {
			return n.accept(ctx, ep, resp, SchemeUnknown, attempted)
		}
		ch, ok := pickChallenge(resp.authenticate)
		if resp.status != http.StatusUnauthorized || !ok {
			n.invalidate(ctx, ep, cached, logger)
			return nil, "", n.statusError(ep, resp, attempted)
		}
		challenge = ch
	} else {
		attempted = append(attempted, SchemeBasic)
		authz := ""
		if !creds.Empty() {
			authz = basicAuthorization(creds)
		}
		resp, err := n.do(ctx, n.basicTimeout, ep, req, authz)
		if err != nil {
			metrics.IncAuthNegotiation("basic", "error")
			n.invalidate(ctx, ep, cached, logger)
			return nil, "", n.networkError(ep, attempted, 0, err)
		}
		if isSuccess(resp.status) {
			metrics.IncAuthNegotiation("basic", "ok")
			return n.accept(ctx, ep, resp, SchemeBasic, attempted)
		}
		if resp.status != http.StatusUnauthorized {
			n.invalidate(ctx, ep, cached, logger)
			return nil, "", n.statusError(ep, resp, attempted)
		}
		metrics.IncAuthNegotiation("basic", "rejected")

		ch, ok := pickChallenge(resp.authenticate)
		if !ok {
			n.invalidate(ctx, ep, cached, logger)
			logger.Warn().Str(xglog.FieldEvent, "camera.auth.rejected").Msg("camera rejected basic auth and offers no digest")
			return nil, "", &Error{
				Kind:      ErrAuthentication,
				Endpoint:  ep.Redacted(),
				Status:    resp.status,
				Challenge: firstOf(resp.authenticate),
				Attempted: attempted,
			}
		}
		challenge = ch
	}

	attempted = append(attempted, SchemeDigest)
	cnonce, err := n.cnonce()
	if err != nil {
		return nil, "", n.networkError(ep, attempted, 0, fmt.Errorf("cnonce: %w", err))
	}
	authz, err := challenge.Authorization(creds, req.Method, ep.RequestURI(), cnonce)
	if err != nil {
		n.invalidate(ctx, ep, cached, logger)
		return nil, "", &Error{Kind: ErrAuthentication, Endpoint: ep.Redacted(), Status: http.StatusUnauthorized, Attempted: attempted, Err: err}
	}

	resp, err := n.do(ctx, 0, ep, req, authz)
	if err != nil {
		metrics.IncAuthNegotiation("digest", "error")
		n.invalidate(ctx, ep, cached, logger)
		return nil, "", n.networkError(ep, attempted, 0, err)
	}
	if isSuccess(resp.status) {
		metrics.IncAuthNegotiation("digest", "ok")
		return n.accept(ctx, ep, resp, SchemeDigest, attempted)
	}

	n.invalidate(ctx, ep, cached, logger)
	if resp.status == http.StatusUnauthorized {
		metrics.IncAuthNegotiation("digest", "rejected")
		logger.Warn().Str(xglog.FieldEvent, "camera.auth.rejected").Msg("camera rejected digest auth")
		return nil, "", &Error{
			Kind:      ErrAuthentication,
			Endpoint:  ep.Redacted(),
			Status:    resp.status,
			Challenge: firstOf(resp.authenticate),
			Attempted: attempted,
		}
	}
	return nil, "", n.statusError(ep, resp, attempted)
}

// accept validates a 2xx response and caches scheme when it is known.
func (n *Negotiator) accept(ctx context.Context, ep Endpoint, resp response, scheme Scheme, attempted []Scheme) ([]byte, string, error) {
	if len(resp.body) == 0 {
		return nil, "", &Error{Kind: ErrEmptyResponse, Endpoint: ep.Redacted(), Status: resp.status, Attempted: attempted}
	}
	if scheme != SchemeUnknown {
		if err := n.schemes.Set(ctx, ep.Key, scheme); err != nil {
			n.logger.Warn().Err(err).Str(xglog.FieldEndpoint, ep.Redacted()).Msg("failed to cache auth scheme")
		}
	}
	return resp.body, resp.contentType, nil
}

func (n *Negotiator) invalidate(ctx context.Context, ep Endpoint, cached Scheme, logger zerolog.Logger) {
	if cached == SchemeUnknown {
		return
	}
	if err := n.schemes.Invalidate(ctx, ep.Key); err != nil {
		logger.Warn().Err(err).Msg("failed to drop cached auth scheme")
		return
	}
	logger.Info().Str(xglog.FieldScheme, cached.String()).Str(xglog.FieldEvent, "camera.scheme.invalidated").Msg("cached auth scheme failed, forgetting it")
}

// do sends one request and reads the capped body. timeout 0 relies on the
// client timeout.
func (n *Negotiator) do(ctx context.Context, timeout time.Duration, ep Endpoint, req Request, authorization string) (response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, ep.URL.String(), nil)
	if err != nil {
		return response{}, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	out := response{
		status:       resp.StatusCode,
		contentType:  resp.Header.Get("Content-Type"),
		authenticate: resp.Header.Values("WWW-Authenticate"),
	}
	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBody+1))
	if err != nil {
		return response{}, err
	}
	if int64(len(body)) > n.maxBody {
		return response{}, fmt.Errorf("response body exceeds %d bytes", n.maxBody)
	}
	out.body = body
	return out, nil
}

func (n *Negotiator) networkError(ep Endpoint, attempted []Scheme, status int, err error) error {
	return &Error{Kind: ErrNetwork, Endpoint: ep.Redacted(), Status: status, Attempted: attempted, Err: err}
}

func (n *Negotiator) statusError(ep Endpoint, resp response, attempted []Scheme) error {
	if resp.status == http.StatusUnauthorized {
		return &Error{Kind: ErrAuthentication, Endpoint: ep.Redacted(), Status: resp.status, Challenge: firstOf(resp.authenticate), Attempted: attempted}
	}
	return n.networkError(ep, attempted, resp.status, fmt.Errorf("upstream returned %s", http.StatusText(resp.status)))
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "auth"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "network"
	}
}
