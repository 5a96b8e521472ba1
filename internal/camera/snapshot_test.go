// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFetcher_CredentialsFromURL(t *testing.T) {
	cam := newFakeCamera(modeDigest)
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	withCreds := strings.Replace(srv.URL, "http://", "http://admin:s3cret@", 1) + "/snap.jpg"
	snap, err := f.Fetch(context.Background(), withCreds, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, cam.body, snap.Data)
	assert.Equal(t, "image/jpeg", snap.MimeType)
}

func TestSnapshotFetcher_ErrorNeverLeaksCredentials(t *testing.T) {
	cam := newFakeCamera(modeDigest)
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	withCreds := strings.Replace(srv.URL, "http://", "http://admin:hunter2@", 1) + "/snap.jpg"
	_, err = f.Fetch(context.Background(), withCreds, Credentials{})
	require.ErrorIs(t, err, ErrAuthentication)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestSnapshotFetcher_ParamsDoNotOverride(t *testing.T) {
	cam := newFakeCamera(modeNone)
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "resolution=1920x1080&quality=90")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/snap?quality=50", Credentials{})
	require.NoError(t, err)

	cam.mu.Lock()
	defer cam.mu.Unlock()
	require.Len(t, cam.queries, 1)
	assert.Contains(t, cam.queries[0], "quality=50")
	assert.Contains(t, cam.queries[0], "resolution=1920x1080")
	assert.NotContains(t, cam.queries[0], "quality=90")
}

func TestSnapshotFetcher_MimeFallback(t *testing.T) {
	cam := newFakeCamera(modeNone)
	cam.contentType = "application/octet-stream"
	cam.body = []byte("\x89PNG\r\n\x1a\n0000")
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	snap, err := f.Fetch(context.Background(), srv.URL+"/snap", Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", snap.MimeType)
}

func TestSnapshotFetcher_CoalescesConcurrentFetches(t *testing.T) {
	cam := newFakeCamera(modeNone)
	cam.hold = make(chan struct{})
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	const callers = 5
	var started, done sync.WaitGroup
	results := make([]Snapshot, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = f.Fetch(context.Background(), srv.URL+"/snap", Credentials{})
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return cam.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(cam.hold)
	done.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, cam.body, results[i].Data)
	}
	assert.EqualValues(t, 1, cam.hits.Load())
}

func TestSnapshotFetcher_CanceledCallerDoesNotFailOthers(t *testing.T) {
	cam := newFakeCamera(modeNone)
	cam.hold = make(chan struct{})
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctxA, srv.URL+"/snap", Credentials{})
		errA <- err
	}()
	require.Eventually(t, func() bool { return cam.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	type result struct {
		snap Snapshot
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		snap, err := f.Fetch(context.Background(), srv.URL+"/snap", Credentials{})
		resB <- result{snap, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(cam.hold)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, cam.body, r.snap.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.EqualValues(t, 1, cam.hits.Load())
}

func TestSnapshotFetcher_ParamsKeepExistingOrder(t *testing.T) {
	cam := newFakeCamera(modeNone)
	srv := cam.start(t)
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "resolution=1920x1080")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/snap?z=1&channel=2&a=b%2Fc", Credentials{})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL+"/snap", Credentials{})
	require.NoError(t, err)

	cam.mu.Lock()
	defer cam.mu.Unlock()
	require.Len(t, cam.queries, 2)
	assert.Equal(t, "z=1&channel=2&a=b%2Fc&resolution=1920x1080", cam.queries[0])
	assert.Equal(t, "resolution=1920x1080", cam.queries[1])
}

func TestSnapshotFetcher_MixedSchemesConcurrently(t *testing.T) {
	digestCam := newFakeCamera(modeDigest)
	digestSrv := digestCam.start(t)
	basicCam := newFakeCamera(modeBasic)
	basicSrv := basicCam.start(t)
	n, schemes := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	creds := Credentials{Username: "admin", Password: "s3cret"}
	const rounds = 4
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		for _, u := range []string{digestSrv.URL + "/snap", basicSrv.URL + "/snap"} {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				_, err := f.Fetch(context.Background(), u, creds)
				errs <- err
			}(u)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ctx := context.Background()
	assert.Equal(t, SchemeDigest, schemes.Get(ctx, mustEndpoint(t, digestSrv.URL+"/snap").Key))
	assert.Equal(t, SchemeBasic, schemes.Get(ctx, mustEndpoint(t, basicSrv.URL+"/snap").Key))
}

func TestSnapshotFetcher_InvalidURL(t *testing.T) {
	n, _ := newTestNegotiator(t)
	f, err := NewSnapshotFetcher(n, "")
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "not a url", Credentials{})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestEndpoint_KeyIgnoresCredentialsAndQuery(t *testing.T) {
	a := mustEndpoint(t, "http://user:pw@CAM.local:80/snap?x=1")
	b := mustEndpoint(t, "http://cam.local/snap")
	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, "http://CAM.local:80/snap", a.Redacted())
	assert.Nil(t, a.URL.User)
	assert.Equal(t, "/snap?x=1", a.RequestURI())
}
