// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camgate/internal/cache"
)

type authMode int

const (
	modeNone authMode = iota
	modeBasic
	modeDigest
	modeDigestNoQOP
	modeBasicOnly401
)

// fakeCamera is an HTTP camera that accepts exactly one scheme.
type fakeCamera struct {
	mode        authMode
	user, pass  string
	body        []byte
	contentType string
	status      int

	hits       atomic.Int32
	mu         sync.Mutex
	authHeader []string
	queries    []string
	hold       chan struct{}
}

func newFakeCamera(mode authMode) *fakeCamera {
	return &fakeCamera{
		mode:        mode,
		user:        "admin",
		pass:        "s3cret",
		body:        []byte("\xff\xd8\xff\xe0fakejpeg"),
		contentType: "image/jpeg",
	}
}

func (c *fakeCamera) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return srv
}

func (c *fakeCamera) headers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.authHeader...)
}

func (c *fakeCamera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.hits.Add(1)
	authz := r.Header.Get("Authorization")
	c.mu.Lock()
	c.authHeader = append(c.authHeader, authz)
	c.queries = append(c.queries, r.URL.RawQuery)
	c.mu.Unlock()

	if c.hold != nil {
		<-c.hold
	}

	if !c.authorized(r, authz) {
		switch c.mode {
		case modeDigest:
			w.Header().Add("WWW-Authenticate", `Digest realm="cam", nonce="n0nce", qop="auth,auth-int", opaque="op4que"`)
		case modeDigestNoQOP:
			w.Header().Add("WWW-Authenticate", `Digest realm="cam", nonce="n0nce"`)
		case modeBasic, modeBasicOnly401:
			w.Header().Add("WWW-Authenticate", `Basic realm="cam"`)
		}
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	if c.contentType != "" {
		w.Header().Set("Content-Type", c.contentType)
	}
	_, _ = w.Write(c.body)
}

func (c *fakeCamera) authorized(r *http.Request, authz string) bool {
	switch c.mode {
	case modeNone:
		return true
	case modeBasic:
		u, p, ok := r.BasicAuth()
		return ok && u == c.user && p == c.pass
	case modeBasicOnly401:
		return false
	case modeDigest, modeDigestNoQOP:
		return c.verifyDigest(r, authz)
	}
	return false
}

func hexMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *fakeCamera) verifyDigest(r *http.Request, authz string) bool {
	if !strings.HasPrefix(authz, "Digest ") {
		return false
	}
	params := map[string]string{}
	for _, part := range strings.Split(strings.TrimPrefix(authz, "Digest "), ", ") {
		k, v, ok := strings.Cut(part, "=")
		if ok {
			params[k] = strings.Trim(v, `"`)
		}
	}
	if params["username"] != c.user || params["nonce"] != "n0nce" || params["uri"] != r.URL.RequestURI() {
		return false
	}
	ha1 := hexMD5(c.user + ":cam:" + c.pass)
	ha2 := hexMD5(r.Method + ":" + params["uri"])
	var want string
	if c.mode == modeDigest {
		if params["qop"] != "auth" || params["nc"] != "00000001" || params["opaque"] != "op4que" {
			return false
		}
		want = hexMD5(fmt.Sprintf("%s:n0nce:%s:%s:auth:%s", ha1, params["nc"], params["cnonce"], ha2))
	} else {
		want = hexMD5(ha1 + ":n0nce:" + ha2)
	}
	return params["response"] == want
}

func newTestNegotiator(t *testing.T) (*Negotiator, *SchemeStore) {
	t.Helper()
	mem := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	schemes := NewSchemeStore(mem, 0)
	n := newNegotiator(&http.Client{Timeout: 5 * time.Second}, NegotiatorConfig{BasicTimeout: time.Second}, schemes)
	return n, schemes
}

func mustEndpoint(t *testing.T, raw string) Endpoint {
	t.Helper()
	ep, err := NewEndpoint(raw)
	require.NoError(t, err)
	return ep
}
