// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package camera fetches media from IP cameras, negotiating HTTP Basic or
// Digest authentication per endpoint.
package camera

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/camgate/internal/cache"
	"github.com/ManuGH/camgate/internal/metrics"
	xnet "github.com/ManuGH/camgate/internal/platform/net"
)

// Scheme is the HTTP authentication scheme that works for an endpoint.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeBasic
	SchemeDigest
)

func (s Scheme) String() string {
	switch s {
	case SchemeBasic:
		return "basic"
	case SchemeDigest:
		return "digest"
	}
	return "unknown"
}

// ParseScheme is the inverse of String; anything unrecognized is SchemeUnknown.
func ParseScheme(s string) Scheme {
	switch strings.ToLower(s) {
	case "basic":
		return SchemeBasic
	case "digest":
		return SchemeDigest
	}
	return SchemeUnknown
}

// Credentials for a camera. The zero value means anonymous.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Empty() bool { return c.Username == "" && c.Password == "" }

// Endpoint is a camera URL without credentials plus its cache identity.
type Endpoint struct {
	URL *url.URL
	Key string
}

// NewEndpoint parses rawURL. Userinfo is dropped; use SplitCredentials first
// to keep it.
func NewEndpoint(rawURL string) (Endpoint, error) {
	key, err := xnet.EndpointKey(rawURL)
	if err != nil {
		return Endpoint{}, err
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Endpoint{}, err
	}
	u.User = nil
	u.Fragment = ""
	return Endpoint{URL: u, Key: key}, nil
}

// Redacted is the endpoint URL without query, safe for logs.
func (e Endpoint) Redacted() string {
	return xnet.SanitizeURL(e.URL.String())
}

// RequestURI is the digest "uri" parameter: path plus query.
func (e Endpoint) RequestURI() string {
	return e.URL.RequestURI()
}

const schemeKeyPrefix = "camera:scheme:"

// SchemeStore remembers which scheme worked for each endpoint. Writes are
// last-write-wins; store errors degrade to "unknown" and are never fatal.
type SchemeStore struct {
	store cache.Store
	ttl   time.Duration
}

// NewSchemeStore wraps store. ttl 0 keeps entries until invalidated.
func NewSchemeStore(store cache.Store, ttl time.Duration) *SchemeStore {
	return &SchemeStore{store: store, ttl: ttl}
}

// Get returns the cached scheme, or SchemeUnknown.
func (s *SchemeStore) Get(ctx context.Context, key string) Scheme {
	v, ok, err := s.store.Get(ctx, schemeKeyPrefix+key)
	switch {
	case err != nil:
		metrics.IncSchemeCacheLookup("error")
		return SchemeUnknown
	case !ok:
		metrics.IncSchemeCacheLookup("miss")
		return SchemeUnknown
	}
	metrics.IncSchemeCacheLookup("hit")
	return ParseScheme(v)
}

// Set records the scheme that just succeeded.
func (s *SchemeStore) Set(ctx context.Context, key string, scheme Scheme) error {
	return s.store.Set(ctx, schemeKeyPrefix+key, scheme.String(), s.ttl)
}

// Invalidate forgets the endpoint's scheme.
func (s *SchemeStore) Invalidate(ctx context.Context, key string) error {
	metrics.IncSchemeCacheInvalidation()
	return s.store.Delete(ctx, schemeKeyPrefix+key)
}
