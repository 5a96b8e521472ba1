// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/camgate/internal/audit"
	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
)

// ErrMissingManager is returned by Run without a manager.
var ErrMissingManager = errors.New("manager is required")

const defaultMaintenanceInterval = 10 * time.Minute

// App owns the long-lived runtime lifecycle (watchers, reload wiring,
// maintenance) and delegates server management to Manager.
type App struct {
	logger    zerolog.Logger
	audit     *audit.Logger
	manager   Manager
	cfgHolder *config.ConfigHolder
	runtime   *Runtime

	reloadSignal        os.Signal
	maintenanceInterval time.Duration
}

// NewApp creates a new App orchestrator. The runtime is closed as the last
// shutdown step.
func NewApp(manager Manager, cfgHolder *config.ConfigHolder, rt *Runtime) *App {
	if manager != nil && rt != nil {
		manager.RegisterShutdownHook("runtime", rt.Close)
	}
	return &App{
		logger:              xglog.WithComponent("daemon"),
		audit:               audit.NewLogger(),
		manager:             manager,
		cfgHolder:           cfgHolder,
		runtime:             rt,
		reloadSignal:        syscall.SIGHUP,
		maintenanceInterval: defaultMaintenanceInterval,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.runtime != nil && a.cfgHolder != nil {
		if err := a.runtime.Recover(ctx, a.cfgHolder.Get().Video.SweepAge); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "recordings.recover_failed").Msg("startup recovery incomplete")
		}
	}

	// Watcher failures are not fatal.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	if a.cfgHolder != nil && a.runtime != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		current := a.cfgHolder.Get().Messaging

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					if cfg.Messaging == current {
						continue
					}
					current = cfg.Messaging
					a.runtime.Capture.SetSender(NewSender(current))
					a.logger.Info().
						Str(xglog.FieldEvent, "messaging.reconfigured").
						Str("base_url", config.MaskURL(current.BaseURL)).
						Msg("messaging client replaced")
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					err := a.cfgHolder.Reload(ctx)
					a.audit.ConfigReload("signal", err)
					if err != nil {
						a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.runtime != nil && a.cfgHolder != nil && a.maintenanceInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(a.maintenanceInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := a.runtime.Maintain(ctx, a.cfgHolder.Get().Video.SweepAge); err != nil {
						a.logger.Warn().Err(err).Str(xglog.FieldEvent, "maintenance.failed").Msg("maintenance pass failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}
