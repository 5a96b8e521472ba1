// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"crypto/md5" // #nosec G501 -- RFC 2617 mandates MD5
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const digestNC = "00000001"

// Challenge is a parsed Digest WWW-Authenticate header.
type Challenge struct {
	Realm     string
	Nonce     string
	QOP       string
	Opaque    string
	Algorithm string
}

var challengeParam = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_-]*)\s*=\s*(?:"((?:[^"\\]|\\.)*)"|([^\s,]+))`)

// isDigest reports whether a WWW-Authenticate value offers Digest.
func isDigest(header string) bool {
	return strings.Contains(strings.ToLower(header), "digest")
}

// ParseChallenge extracts the digest parameters from a WWW-Authenticate value.
// Missing optional fields stay empty. A qop list selects "auth" when offered.
func ParseChallenge(header string) (Challenge, bool) {
	idx := strings.Index(strings.ToLower(header), "digest")
	if idx < 0 {
		return Challenge{}, false
	}
	params := header[idx+len("digest"):]

	var ch Challenge
	for _, m := range challengeParam.FindAllStringSubmatch(params, -1) {
		val := m[3]
		if val == "" {
			val = strings.ReplaceAll(m[2], `\"`, `"`)
		}
		switch strings.ToLower(m[1]) {
		case "realm":
			ch.Realm = val
		case "nonce":
			ch.Nonce = val
		case "qop":
			ch.QOP = selectQOP(val)
		case "opaque":
			ch.Opaque = val
		case "algorithm":
			ch.Algorithm = val
		}
	}
	return ch, ch.Nonce != ""
}

func selectQOP(list string) string {
	var first string
	for _, q := range strings.Split(list, ",") {
		q = strings.ToLower(strings.TrimSpace(q))
		if q == "auth" {
			return q
		}
		if first == "" {
			first = q
		}
	}
	return first
}

// pickChallenge returns the first usable digest challenge among the
// WWW-Authenticate values, preferring MD5 over other algorithms.
func pickChallenge(values []string) (Challenge, bool) {
	var fallback Challenge
	found := false
	for _, v := range values {
		if !isDigest(v) {
			continue
		}
		ch, ok := ParseChallenge(v)
		if !ok {
			continue
		}
		if ch.supported() {
			return ch, true
		}
		if !found {
			fallback, found = ch, true
		}
	}
	return fallback, found
}

func (c Challenge) supported() bool {
	switch strings.ToUpper(c.Algorithm) {
	case "", "MD5", "MD5-SESS":
		return true
	}
	return false
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// NewCNonce returns 16 random bytes as hex.
func NewCNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Authorization builds the Digest Authorization header for one request.
// The request carries no body, so auth-int hashes the empty entity.
func (c Challenge) Authorization(creds Credentials, method, uri, cnonce string) (string, error) {
	if !c.supported() {
		return "", fmt.Errorf("unsupported digest algorithm %q", c.Algorithm)
	}

	ha1 := md5Hex(creds.Username + ":" + c.Realm + ":" + creds.Password)
	if strings.EqualFold(c.Algorithm, "MD5-sess") {
		ha1 = md5Hex(ha1 + ":" + c.Nonce + ":" + cnonce)
	}
	ha2 := md5Hex(method + ":" + uri)
	if c.QOP == "auth-int" {
		ha2 = md5Hex(method + ":" + uri + ":" + md5Hex(""))
	}

	var response string
	if c.QOP != "" {
		response = md5Hex(strings.Join([]string{ha1, c.Nonce, digestNC, cnonce, c.QOP, ha2}, ":"))
	} else {
		response = md5Hex(ha1 + ":" + c.Nonce + ":" + ha2)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		quote(creds.Username), quote(c.Realm), quote(c.Nonce), quote(uri), response)
	if c.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, quote(c.Opaque))
	}
	if c.QOP != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, c.QOP, digestNC, cnonce)
	}
	if c.Algorithm != "" {
		fmt.Fprintf(&b, ", algorithm=%s", c.Algorithm)
	}
	return b.String(), nil
}

func quote(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
