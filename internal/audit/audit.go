// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audit provides structured audit logging for security-sensitive operations.
// It follows the WHO/WHAT/WHEN pattern for compliance and forensics.
package audit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/auth"
	"github.com/ManuGH/camgate/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventConfigReload      EventType = "config.reload"
	EventConfigReloadError EventType = "config.reload.error"

	EventAuthFailure  EventType = "auth.failure"
	EventAPIRateLimit EventType = "api.ratelimit"

	// Capture triggers
	EventSnapshot EventType = "capture.snapshot"
	EventRecord   EventType = "capture.record"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Actor      string // WHO: token principal, client IP or "system"
	Action     string
	Resource   string
	Result     string
	RemoteAddr string
	UserAgent  string
	RequestID  string
	Details    map[string]string
}

// Logger writes audit events.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	return WithLogger(log.WithComponent("audit"))
}

// WithLogger creates an audit logger writing through base.
func WithLogger(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ev := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)
	if event.RemoteAddr != "" {
		ev.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		ev.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		ev.Str(log.FieldRequestID, event.RequestID)
	}
	for key, value := range event.Details {
		ev.Str(key, value)
	}
	ev.Msg("audit event")
}

// fromRequest fills the request metadata of event. Authenticated requests
// are attributed to their token principal.
func fromRequest(r *http.Request, event Event) Event {
	ip := clientIP(r)
	event.Actor = ip
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		event.Actor = p.ID
	}
	event.RemoteAddr = ip
	event.UserAgent = r.UserAgent()
	event.RequestID = log.RequestIDFromContext(r.Context())
	if event.Resource == "" {
		event.Resource = r.URL.Path
	}
	return event
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthFailure logs a rejected API token.
func (l *Logger) AuthFailure(r *http.Request) {
	l.Log(fromRequest(r, Event{
		Type:   EventAuthFailure,
		Action: "authentication failed",
		Result: ResultDenied,
	}))
}

// RateLimitExceeded logs rate limit violations.
func (l *Logger) RateLimitExceeded(r *http.Request) {
	l.Log(fromRequest(r, Event{
		Type:   EventAPIRateLimit,
		Action: "rate limit exceeded",
		Result: ResultDenied,
	}))
}

// Trigger logs the outcome of a snapshot or recording request. code is the
// failure code, empty on success.
func (l *Logger) Trigger(r *http.Request, typ EventType, delivered bool, code string) {
	result := ResultSuccess
	details := map[string]string{"delivered": strconv.FormatBool(delivered)}
	if code != "" {
		result = ResultFailure
		details["code"] = code
	}
	l.Log(fromRequest(r, Event{
		Type:    typ,
		Action:  r.Method + " " + r.URL.Path,
		Result:  result,
		Details: details,
	}))
}

// ConfigReload logs a configuration reload attempt.
func (l *Logger) ConfigReload(actor string, err error) {
	event := Event{
		Type:     EventConfigReload,
		Actor:    actor,
		Action:   "reloaded configuration",
		Resource: "config",
		Result:   ResultSuccess,
	}
	if err != nil {
		event.Type = EventConfigReloadError
		event.Result = ResultFailure
		event.Details = map[string]string{"error": err.Error()}
	}
	l.Log(event)
}
