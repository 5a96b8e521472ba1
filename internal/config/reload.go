// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camgate/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigHolder holds the active configuration and swaps it atomically on reload.
// Transcode profiles and image budgets are frozen at startup: a reload that
// changes them keeps the startup values and logs the attempt.
type ConfigHolder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a holder seeded with the startup configuration.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	path := ""
	if loader != nil {
		path = loader.Path()
	}
	return &ConfigHolder{
		current:    initial,
		loader:     loader,
		configPath: path,
		logger:     xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads and validates the configuration. On failure the previous
// configuration stays active.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	next = h.freeze(prev, next)
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)
	h.notifyListeners(next)

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// freeze carries the startup-only sections of prev into next.
func (h *ConfigHolder) freeze(prev, next AppConfig) AppConfig {
	frozen := []struct {
		name    string
		changed bool
	}{
		{"video.record", prev.Video.Record != next.Video.Record},
		{"video.compress", prev.Video.Compress != next.Video.Compress},
		{"video.recordings_dir", prev.Video.RecordingsDir != next.Video.RecordingsDir},
		{"image", prev.Image != next.Image},
		{"server.listen", prev.Server.Listen != next.Server.Listen},
		{"data_dir", prev.DataDir != next.DataDir},
	}
	for _, f := range frozen {
		if f.changed {
			h.logger.Warn().
				Str(xglog.FieldEvent, "config.frozen_field").
				Str("field", f.name).
				Err(ErrFrozenField).
				Msg("ignoring change to startup-only setting")
		}
	}
	next.Video.Record = prev.Video.Record
	next.Video.Compress = prev.Video.Compress
	next.Video.RecordingsDir = prev.Video.RecordingsDir
	next.Image = prev.Image
	next.Server.Listen = prev.Server.Listen
	next.DataDir = prev.DataDir
	return next
}

// StartWatcher watches the config file and reloads on change. It is a no-op
// for env-only configurations.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("config file watcher disabled (env-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = watcher

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = h.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.auto_reload_failed").Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// RegisterListener registers a channel that receives every successfully
// reloaded configuration. Sends are non-blocking.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *ConfigHolder) notifyListeners(cfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, ch := range h.reloadListeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *ConfigHolder) logChanges(prev, next AppConfig) {
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", prev.LogLevel).Str("new", next.LogLevel).Msg("config changed: log_level")
	}
	if prev.Camera.SnapshotURL != next.Camera.SnapshotURL {
		h.logger.Info().
			Str("old", MaskURL(prev.Camera.SnapshotURL)).
			Str("new", MaskURL(next.Camera.SnapshotURL)).
			Msg("config changed: camera.snapshot_url")
	}
	if prev.Camera.RTSPURL != next.Camera.RTSPURL {
		h.logger.Info().
			Str("old", MaskURL(prev.Camera.RTSPURL)).
			Str("new", MaskURL(next.Camera.RTSPURL)).
			Msg("config changed: camera.rtsp_url")
	}
	if prev.Video.MaxMB != next.Video.MaxMB {
		h.logger.Info().Int("old", prev.Video.MaxMB).Int("new", next.Video.MaxMB).Msg("config changed: video.max_mb")
	}
	if prev.Messaging.BaseURL != next.Messaging.BaseURL {
		h.logger.Info().
			Str("old", MaskURL(prev.Messaging.BaseURL)).
			Str("new", MaskURL(next.Messaging.BaseURL)).
			Msg("config changed: messaging.base_url")
	}
}
