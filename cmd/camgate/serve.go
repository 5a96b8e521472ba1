// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/daemon"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/validation"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var skipChecks bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			holder, err := opts.load()
			if err != nil {
				return err
			}
			cfg := holder.Get()
			logger := xglog.WithComponent("daemon")

			if !skipChecks {
				if err := validation.PerformStartupChecks(ctx, cfg); err != nil {
					logger.Error().Err(err).Str(xglog.FieldEvent, "startup.check_failed").
						Msg("startup checks failed, verify configuration and permissions")
					return err
				}
			}
			if cfg.Server.APIToken == "" {
				logger.Warn().Str(xglog.FieldEvent, "auth.disabled").Msg("no API token configured, trigger API rejects every request")
			}

			rt, err := daemon.Bootstrap(ctx, holder)
			if err != nil {
				return err
			}
			mgr, err := daemon.NewManager(cfg.Server, rt.Handler)
			if err != nil {
				_ = rt.Close(ctx)
				return err
			}

			logger.Info().
				Str("listen", cfg.Server.Listen).
				Str("snapshot_url", config.MaskURL(cfg.Camera.SnapshotURL)).
				Str("rtsp_url", config.MaskURL(cfg.Camera.RTSPURL)).
				Msg("starting camgate")
			return daemon.NewApp(mgr, holder, rt).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "skip startup checks (encoder binaries, writable dirs)")
	return cmd
}
