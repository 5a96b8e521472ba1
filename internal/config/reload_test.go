// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHolder_ReloadSwapsMutableSettings(t *testing.T) {
	path := writeConfig(t, "video:\n  max_mb: 16\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("video:\n  max_mb: 8\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 8, h.Get().Video.MaxMB)
	select {
	case got := <-updates:
		assert.Equal(t, 8, got.Video.MaxMB)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestConfigHolder_ProfilesAreFrozen(t *testing.T) {
	path := writeConfig(t, "image:\n  max_kb: 500\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte(`
image:
  max_kb: 100
video:
  max_mb: 10
  compress:
    codec: libx264
    preset: ultrafast
    profile: baseline
    level: "3.0"
    pix_fmt: yuv420p
    crf: 40
    max_bitrate_k: 300
    bufsize_k: 600
    gop: 25
    max_width: 640
    max_height: 360
    audio_bitrate_k: 32
`), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	got := h.Get()
	assert.Equal(t, 10, got.Video.MaxMB)
	assert.Equal(t, initial.Image, got.Image)
	assert.Equal(t, initial.Video.Compress, got.Video.Compress)
}

func TestConfigHolder_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeConfig(t, "video:\n  max_mb: 16\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("video:\n  max_mb: -1\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 16, h.Get().Video.MaxMB)
}

func TestConfigHolder_WatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "video:\n  max_mb: 16\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("video:\n  max_mb: 4\n"), 0o600))
	assert.Eventually(t, func() bool { return h.Get().Video.MaxMB == 4 }, 5*time.Second, 50*time.Millisecond)
}

func TestConfigHolder_WatcherDisabledWithoutFile(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
}
