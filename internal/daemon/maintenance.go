// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/camgate/internal/log"
)

// ledgerRetentionFactor scales the sweep age into the ledger retention.
const ledgerRetentionFactor = 7

// Maintain removes stale recording artifacts and old terminal ledger rows.
func (rt *Runtime) Maintain(ctx context.Context, sweepAge time.Duration) error {
	if sweepAge <= 0 {
		return nil
	}
	logger := xglog.WithComponent("maintenance")

	var errs []error
	removed, err := rt.Cleaner.Sweep(ctx, sweepAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	pruned, err := rt.Ledger.Prune(ctx, time.Now().Add(-sweepAge*ledgerRetentionFactor))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune ledger: %w", err))
	}

	if removed > 0 || pruned > 0 {
		logger.Info().
			Str(xglog.FieldEvent, "maintenance.done").
			Int("files_removed", removed).
			Int64("rows_pruned", pruned).
			Msg("maintenance pass completed")
	}
	return errors.Join(errs...)
}

// Recover fails jobs left active by a previous process and sweeps their
// partial files.
func (rt *Runtime) Recover(ctx context.Context, sweepAge time.Duration) error {
	n, err := rt.Ledger.MarkInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("mark interrupted: %w", err)
	}
	if n > 0 {
		rt.logger.Warn().
			Str(xglog.FieldEvent, "recordings.interrupted").
			Int64("count", n).
			Msg("marked interrupted recordings as failed")
	}
	return rt.Maintain(ctx, sweepAge)
}
