// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command camgate serves the camera capture API and runs one-shot captures.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "camgate",
		Short:         "IP camera snapshot and clip gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	root.SetVersionTemplate(version.String() + "\n")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		config.ParseString(config.EnvPrefix+"CONFIG", ""), "path to config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newSnapshotCmd(opts),
		newRecordCmd(opts),
		newCheckCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

// load resolves the configuration (defaults, file, env) and configures the
// global logger from it. Logs go to stderr so stdout can carry media.
func (o *rootOptions) load() (*config.ConfigHolder, error) {
	xglog.Configure(xglog.Config{Level: "info", Output: os.Stderr, Service: "camgate", Version: version.Version})

	path := strings.TrimSpace(o.configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "camgate", Version: cfg.Version})
	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger := xglog.WithComponent("cli")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldSource, source).
		Str(xglog.FieldPath, path).
		Msg("configuration loaded")
	return config.NewConfigHolder(cfg, loader), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
