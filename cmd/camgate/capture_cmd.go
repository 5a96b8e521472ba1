// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ManuGH/camgate/internal/capture"
	"github.com/ManuGH/camgate/internal/daemon"
	"github.com/ManuGH/camgate/internal/recorder"
)

type deliveryFlags struct {
	out     string
	send    bool
	to      string
	caption string
	message string
}

func (f *deliveryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "", `write the media to this file ("-" for stdout)`)
	cmd.Flags().BoolVar(&f.send, "send", false, "deliver to the configured default recipient")
	cmd.Flags().StringVar(&f.to, "to", "", "deliver to this phone number")
	cmd.Flags().StringVar(&f.caption, "caption", "", "caption for the delivered media")
	cmd.Flags().StringVar(&f.message, "message", "", "text message sent before the media")
}

func (f *deliveryFlags) delivery() capture.Delivery {
	return capture.Delivery{Send: f.send, Phone: f.to, Caption: f.caption, Message: f.message}
}

func (f *deliveryFlags) validate() error {
	if f.out == "" && !f.send && f.to == "" {
		return errors.New("nothing to do: set --out, --send or --to")
	}
	if f.message != "" && !f.send && f.to == "" {
		return errors.New("--message requires --send or --to")
	}
	return nil
}

// writeMedia writes data to path atomically, or to stdout for "-".
func writeMedia(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		return nil
	}
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// withRuntime bootstraps the pipeline for a one-shot command.
func withRuntime(ctx context.Context, opts *rootOptions, fn func(*daemon.Runtime) error) error {
	holder, err := opts.load()
	if err != nil {
		return err
	}
	rt, err := daemon.Bootstrap(ctx, holder)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()
	return fn(rt)
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var df deliveryFlags
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch one optimized still image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := df.validate(); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), opts, func(rt *daemon.Runtime) error {
				res, err := rt.Capture.Snapshot(cmd.Context(), df.delivery())
				if err != nil {
					return err
				}
				if err := writeMedia(cmd.OutOrStdout(), df.out, res.Image.Data); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "snapshot: %d bytes %s %dx%d delivered=%t\n",
					len(res.Image.Data), res.Image.MimeType, res.Image.Width, res.Image.Height, res.Delivered)
				return nil
			})
		},
	}
	df.register(cmd)
	return cmd
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		df       deliveryFlags
		duration int
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a clip from the camera stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := df.validate(); err != nil {
				return err
			}
			if duration < 0 {
				return fmt.Errorf("--duration must not be negative")
			}
			stderr := cmd.ErrOrStderr()
			obs := capture.RecordObserver{
				OnStart: func(s recorder.Status) {
					fmt.Fprintf(stderr, "recording %s for %ds\n", s.ID, s.EffectiveSeconds)
				},
				OnProgress: func(p recorder.EventProgress) {
					fmt.Fprintf(stderr, "\rprogress %3d%% (%ds left)", p.Percent, p.RemainingSeconds)
				},
			}
			return withRuntime(cmd.Context(), opts, func(rt *daemon.Runtime) error {
				res, err := rt.Capture.Record(cmd.Context(), capture.RecordRequest{
					DurationSeconds: duration,
					Delivery:        df.delivery(),
				}, obs)
				fmt.Fprintln(stderr)
				if err != nil {
					return err
				}
				if res.Data != nil {
					if err := writeMedia(cmd.OutOrStdout(), df.out, res.Data); err != nil {
						return fmt.Errorf("write clip: %w", err)
					}
				}
				fmt.Fprintf(stderr, "clip %s: %d bytes delivered=%t\n", res.JobID, res.Size, res.Delivered)
				return nil
			})
		},
	}
	df.register(cmd)
	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "clip length in seconds (0 selects the configured default)")
	return cmd
}
