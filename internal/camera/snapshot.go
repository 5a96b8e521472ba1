// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
	xnet "github.com/ManuGH/camgate/internal/platform/net"
)

// Snapshot is a still image as delivered by the camera. Data may be shared
// between concurrent callers and must not be modified.
type Snapshot struct {
	Data     []byte
	MimeType string
}

// SnapshotFetcher retrieves still images through a Negotiator.
type SnapshotFetcher struct {
	negotiator *Negotiator
	params     url.Values
	group      singleflight.Group
}

// NewSnapshotFetcher creates a fetcher. params is a query string such as
// "resolution=1920x1080&quality=90"; its keys are added to snapshot URLs
// that do not already set them.
func NewSnapshotFetcher(n *Negotiator, params string) (*SnapshotFetcher, error) {
	values, err := url.ParseQuery(params)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot params: %w", err)
	}
	return &SnapshotFetcher{negotiator: n, params: values}, nil
}

// Fetch downloads one snapshot. Credentials embedded in rawURL are used when
// creds is empty. Identical concurrent fetches share one camera request.
func (f *SnapshotFetcher) Fetch(ctx context.Context, rawURL string, creds Credentials) (Snapshot, error) {
	clean, user, pass, err := xnet.SplitCredentials(rawURL)
	if err != nil {
		metrics.IncSnapshotFetch("network")
		return Snapshot{}, &Error{Kind: ErrNetwork, Endpoint: xnet.SanitizeURL(rawURL), Err: err}
	}
	if creds.Empty() {
		creds = Credentials{Username: user, Password: pass}
	}

	ep, err := NewEndpoint(f.withParams(clean))
	if err != nil {
		metrics.IncSnapshotFetch("network")
		return Snapshot{}, &Error{Kind: ErrNetwork, Endpoint: xnet.SanitizeURL(clean), Err: err}
	}

	logger := xglog.FromContext(ctx).With().Str(xglog.FieldEndpoint, ep.Redacted()).Logger()
	start := time.Now()

	// The shared fetch outlives any single caller; each caller stops
	// waiting on its own ctx below.
	key := ep.URL.String() + "\x00" + creds.Username
	ch := f.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.negotiator.budget())
		defer cancel()
		body, mimeType, err := f.negotiator.Fetch(fetchCtx, ep, creds, Request{Method: http.MethodGet})
		if err != nil {
			return nil, err
		}
		return Snapshot{Data: body, MimeType: resolveMime(mimeType, body)}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		metrics.IncSnapshotFetch("canceled")
		return Snapshot{}, &Error{Kind: ErrNetwork, Endpoint: ep.Redacted(), Err: ctx.Err()}
	}

	if res.Err != nil {
		metrics.IncSnapshotFetch(errorType(res.Err))
		logger.Warn().Err(res.Err).Str(xglog.FieldEvent, "snapshot.failed").Msg("snapshot fetch failed")
		return Snapshot{}, res.Err
	}

	snap := res.Val.(Snapshot)
	metrics.IncSnapshotFetch("ok")
	logger.Info().
		Str(xglog.FieldMimeType, snap.MimeType).
		Int(xglog.FieldBytes, len(snap.Data)).
		Float64(xglog.FieldDuration, time.Since(start).Seconds()).
		Bool("shared", res.Shared).
		Str(xglog.FieldEvent, "snapshot.fetched").
		Msg("snapshot fetched")
	return snap, nil
}

func (f *SnapshotFetcher) withParams(rawURL string) string {
	if len(f.params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	have := u.Query()
	missing := url.Values{}
	for k, vs := range f.params {
		if _, ok := have[k]; !ok {
			missing[k] = vs
		}
	}
	if len(missing) == 0 {
		return rawURL
	}
	// Existing parameters keep their order and encoding.
	extra := missing.Encode()
	if u.RawQuery == "" {
		u.RawQuery = extra
	} else {
		u.RawQuery += "&" + extra
	}
	return u.String()
}

// resolveMime keeps the camera's type unless it is missing or generic.
func resolveMime(header string, body []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mt
}

// IsAuthError reports whether err is a camera authentication failure.
func IsAuthError(err error) bool { return errors.Is(err, ErrAuthentication) }
