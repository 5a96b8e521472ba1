// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package messaging delivers text and media to a recipient through an HTTP
// messaging gateway.
package messaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
	"github.com/ManuGH/camgate/internal/platform/httpx"
	"github.com/ManuGH/camgate/internal/resilience"
	"github.com/ManuGH/camgate/internal/telemetry"
)

const (
	headerAPIToken = "X-API-Token"

	// errorBodyLimit bounds how much of a failed response ends up in errors.
	errorBodyLimit  = 200
	maxResponseBody = 1 << 20
)

var (
	// ErrNoRecipient is returned when neither the call nor the config names a
	// recipient.
	ErrNoRecipient = errors.New("no recipient")

	// ErrNotConfigured is returned by a client without a gateway URL.
	ErrNotConfigured = errors.New("messaging gateway not configured")

	// ErrTransport wraps sends that never got a gateway response.
	ErrTransport = errors.New("messaging gateway unreachable")
)

// Media is an attachment. Data is sent base64-encoded.
type Media struct {
	Data     []byte
	MimeType string
	Filename string
}

// Sender delivers messages to a phone number.
type Sender interface {
	SendText(ctx context.Context, phone, message, subject string) error
	SendMedia(ctx context.Context, phone string, media Media, caption string) error
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d - %s", e.Endpoint, e.Status, e.Body)
}

// Temporary reports whether the gateway itself is failing, as opposed to
// rejecting the request.
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Client is the HTTP Sender.
type Client struct {
	baseURL          string
	token            string
	defaultRecipient string
	http             *http.Client
	limiter          *rate.Limiter
	breaker          *resilience.CircuitBreaker
	logger           zerolog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg config.MessagingConfig) *Client {
	return newClient(cfg, httpx.NewClient(cfg.Timeout, httpx.WithTracing("messaging")))
}

func newClient(cfg config.MessagingConfig, hc *http.Client) *Client {
	breaker := resilience.NewCircuitBreaker("messaging", cfg.BreakerThreshold, cfg.BreakerReset,
		resilience.WithFailurePredicate(countsAgainstGateway))
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		token:            cfg.APIToken,
		defaultRecipient: cfg.DefaultRecipient,
		http:             hc,
		limiter:          limiterFor(cfg),
		breaker:          breaker,
		logger:           xglog.WithComponent("messaging"),
	}
}

func limiterFor(cfg config.MessagingConfig) *rate.Limiter {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// countsAgainstGateway keeps client-side rejections (4xx) from opening the
// breaker.
func countsAgainstGateway(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

type textPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

type mediaPayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
}

type sendMediaPayload struct {
	Phone   string       `json:"phone"`
	Media   mediaPayload `json:"media"`
	Caption string       `json:"caption,omitempty"`
}

// SendText posts a text message. An empty phone selects the configured
// default recipient.
func (c *Client) SendText(ctx context.Context, phone, message, subject string) error {
	phone, err := c.recipient(phone)
	if err != nil {
		return err
	}
	return c.post(ctx, "text", "/send", phone, textPayload{
		Phone:   phone,
		Message: norm.NFC.String(message),
		Subject: norm.NFC.String(subject),
	})
}

// SendMedia posts an attachment with an optional caption.
func (c *Client) SendMedia(ctx context.Context, phone string, media Media, caption string) error {
	phone, err := c.recipient(phone)
	if err != nil {
		return err
	}
	return c.post(ctx, "media", "/send-media", phone, sendMediaPayload{
		Phone: phone,
		Media: mediaPayload{
			Data:     base64.StdEncoding.EncodeToString(media.Data),
			MimeType: media.MimeType,
			Filename: media.Filename,
		},
		Caption: norm.NFC.String(caption),
	})
}

func (c *Client) recipient(phone string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		phone = c.defaultRecipient
	}
	if phone == "" {
		return "", ErrNoRecipient
	}
	return phone, nil
}

func (c *Client) post(ctx context.Context, kind, endpoint, phone string, payload any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "messaging.send", telemetry.MessagingAttributes(kind, maskPhone(phone))...)
	defer func() { telemetry.EndSpan(span, err, "messaging") }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.IncMessagingSend(kind, "throttled")
		return fmt.Errorf("%w: rate limit wait: %w", ErrTransport, err)
	}

	start := time.Now()
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, endpoint, body)
	})

	logger := xglog.WithContext(ctx, c.logger).With().
		Str("kind", kind).
		Str("recipient", maskPhone(phone)).
		Int("payload_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Logger()
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.IncMessagingSend(kind, "circuit_open")
		logger.Warn().Msg("messaging gateway circuit open, send skipped")
	case err != nil:
		metrics.IncMessagingSend(kind, "error")
		logger.Error().Err(err).Msg("message delivery failed")
	default:
		metrics.IncMessagingSend(kind, "success")
		logger.Info().Msg("message delivered")
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(headerAPIToken, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     truncate(string(respBody), errorBodyLimit),
		}
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
