// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/validation"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and run startup checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			holder, err := opts.load()
			if err != nil {
				return err
			}
			cfg := holder.Get()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "config          ok")
			fmt.Fprintf(out, "  snapshot_url  %s\n", orUnset(config.MaskURL(cfg.Camera.SnapshotURL)))
			fmt.Fprintf(out, "  rtsp_url      %s\n", orUnset(config.MaskURL(cfg.Camera.RTSPURL)))
			fmt.Fprintf(out, "  messaging     %s\n", orUnset(config.MaskURL(cfg.Messaging.BaseURL)))

			failed := 0
			for _, c := range validation.Checks(cfg) {
				if err := c.Run(cmd.Context()); err != nil {
					failed++
					fmt.Fprintf(out, "%-15s FAIL %v\n", c.Name, err)
					continue
				}
				fmt.Fprintf(out, "%-15s ok\n", c.Name)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
