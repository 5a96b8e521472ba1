// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/recorder"
)

func TestApp_RequiresManager(t *testing.T) {
	app := NewApp(nil, nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_RunRecoversServesAndCloses(t *testing.T) {
	cfg := testAppConfig(t)
	holder := config.NewConfigHolder(cfg, nil)
	rt, err := Bootstrap(context.Background(), holder)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, rt.Ledger.Upsert(context.Background(), recorder.Status{
		ID: "rec-left", State: recorder.StatePending, CreatedAt: now, UpdatedAt: now,
	}))

	m, err := NewManager(cfg.Server, rt.Handler)
	require.NoError(t, err)
	app := NewApp(m, holder, rt)
	app.reloadSignal = nil
	app.maintenanceInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	e, err := rt.Ledger.Get(context.Background(), "rec-left")
	require.NoError(t, err)
	assert.Equal(t, recorder.StateFailed, e.State)

	resp, err := http.Get("http://" + m.Addr() + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	_, err = rt.Ledger.Get(context.Background(), "rec-left")
	assert.Error(t, err, "ledger is closed with the runtime")
}
