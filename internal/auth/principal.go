// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Principal identifies an authenticated caller without exposing its token.
type Principal struct {
	// ID is "t_" plus a truncated SHA-256 of the token; safe to log.
	ID string
}

// NewPrincipal derives a stable principal from a token.
func NewPrincipal(token string) *Principal {
	hash := sha256.Sum256([]byte(token))
	return &Principal{ID: "t_" + hex.EncodeToString(hash[:])[:16]}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns nil for unauthenticated contexts.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
