// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon assembles the camgate runtime and owns its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/api"
	"github.com/ManuGH/camgate/internal/cache"
	"github.com/ManuGH/camgate/internal/camera"
	"github.com/ManuGH/camgate/internal/capture"
	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/fsutil"
	"github.com/ManuGH/camgate/internal/health"
	"github.com/ManuGH/camgate/internal/imaging"
	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/messaging"
	"github.com/ManuGH/camgate/internal/recorder"
	"github.com/ManuGH/camgate/internal/recordings"
	"github.com/ManuGH/camgate/internal/telemetry"
	"github.com/ManuGH/camgate/internal/transcoder"
	"github.com/ManuGH/camgate/internal/validation"
	"github.com/ManuGH/camgate/internal/version"
)

const (
	serviceName        = "camgate"
	schemeKeyPrefix    = "camgate:"
	memoryJanitorEvery = time.Minute
	ledgerWriteTimeout = 2 * time.Second
)

// Runtime is the assembled pipeline shared by the server and the CLI.
type Runtime struct {
	Capture *capture.Service
	Ledger  *recordings.Ledger
	Cleaner *fsutil.Cleaner
	Health  *health.Manager
	Handler http.Handler

	closers []namedCloser
	logger  zerolog.Logger
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

func (rt *Runtime) onClose(name string, fn func(context.Context) error) {
	rt.closers = append(rt.closers, namedCloser{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			rt.logger.Warn().Err(err).Str("resource", c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// Bootstrap builds the runtime for cfg. Camera settings are read through
// holder on every request so a reload takes effect without a restart.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (_ *Runtime, err error) {
	cfg := holder.Get()
	rt := &Runtime{logger: xglog.WithComponent("bootstrap")}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	for _, dir := range []string{cfg.DataDir, cfg.Video.RecordingsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	store, ttl, err := newSchemeBackend(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	rt.onClose("scheme-store", func(context.Context) error { return store.Close() })

	neg := camera.NewNegotiator(camera.NegotiatorConfig{
		BasicTimeout:   cfg.Camera.BasicTimeout,
		RequestTimeout: cfg.Camera.RequestTimeout,
		MaxBodyBytes:   int64(cfg.Camera.MaxBodyMB) << 20,
	}, camera.NewSchemeStore(store, ttl))
	fetcher, err := camera.NewSnapshotFetcher(neg, cfg.Camera.SnapshotParams)
	if err != nil {
		return nil, fmt.Errorf("snapshot params: %w", err)
	}

	ledger, err := recordings.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	rt.Ledger = ledger
	rt.onClose("ledger", func(context.Context) error { return ledger.Close() })

	rt.Cleaner = fsutil.NewCleaner(cfg.Video.RecordingsDir)
	runner := ffmpeg.NewRunner(cfg.FFmpeg.Bin, cfg.FFmpeg.StartTimeout, cfg.FFmpeg.StallTimeout, cfg.FFmpeg.KillTimeout)
	rec := recorder.New(recorder.Config{
		Dir:             cfg.Video.RecordingsDir,
		DefaultDuration: cfg.Video.DefaultDuration,
		Grace:           cfg.FFmpeg.Grace,
		Profile:         cfg.Video.Record,
	}, runner, rt.Cleaner, recorder.WithStatusHook(ledgerHook(ledger, rt.logger)))
	comp := transcoder.New(transcoder.Config{
		MaxBytes: int64(cfg.Video.MaxMB) << 20,
		Passes:   cfg.Video.CompressPasses,
		Profile:  cfg.Video.Compress,
	}, runner, ffmpeg.NewProber(cfg.FFmpeg.FFprobeBin), rt.Cleaner)

	rt.Capture = capture.NewService(capture.Deps{
		Camera:     func() config.CameraConfig { return holder.Get().Camera },
		Fetcher:    fetcher,
		Optimizer:  imaging.New(cfg.Image),
		Recorder:   rec,
		Compressor: comp,
		Cleaner:    rt.Cleaner,
		Sender:     NewSender(cfg.Messaging),
	})

	rt.Health = health.NewManager(version.Version)
	validation.Register(rt.Health, cfg)

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	rt.Handler = api.New(api.Config{
		APIToken:       cfg.Server.APIToken,
		RateLimitRPM:   cfg.Server.RateLimitRPM,
		MetricsEnabled: cfg.Server.MetricsEnabled,
		TracingService: tracing,
	}, rt.Capture, ledger, rt.Health).Handler()

	return rt, nil
}

// NewSender returns the messaging client for cfg, or nil when no gateway is
// configured.
func NewSender(cfg config.MessagingConfig) messaging.Sender {
	if cfg.BaseURL == "" {
		return nil
	}
	return messaging.NewClient(cfg)
}

// newSchemeBackend returns the auth scheme store. Memory entries live for
// the process lifetime; redis entries expire after SchemeTTL.
func newSchemeBackend(ctx context.Context, cfg config.CacheConfig) (cache.Store, time.Duration, error) {
	if cfg.Backend != "redis" {
		return cache.NewMemoryStore(memoryJanitorEvery), 0, nil
	}
	store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: schemeKeyPrefix,
	}, xglog.WithComponent("cache"))
	if err != nil {
		return nil, 0, err
	}
	return store, cfg.SchemeTTL, nil
}

// ledgerHook persists every job transition. Ledger failures never affect
// the job.
func ledgerHook(ledger *recordings.Ledger, logger zerolog.Logger) func(recorder.Status) {
	return func(s recorder.Status) {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
		defer cancel()
		if err := ledger.Upsert(ctx, s); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldJobID, s.ID).Msg("ledger update failed")
		}
	}
}
