// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validation checks the runtime environment before the pipeline is
// first used.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/health"
	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
	"github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/persistence/sqlite"
)

const binaryCheckTimeout = 5 * time.Second

// Check is one named startup check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Checks returns the startup checks for cfg in execution order.
func Checks(cfg config.AppConfig) []Check {
	return []Check{
		{Name: "data_dir", Run: func(context.Context) error { return CheckWritableDir(cfg.DataDir) }},
		{Name: "recordings_dir", Run: func(context.Context) error { return CheckWritableDir(cfg.Video.RecordingsDir) }},
		{Name: "encoder", Run: func(ctx context.Context) error { return checkBinary(ctx, cfg.FFmpeg.Bin) }},
		{Name: "prober", Run: func(ctx context.Context) error { return checkBinary(ctx, cfg.FFmpeg.FFprobeBin) }},
		{Name: "ledger", Run: func(ctx context.Context) error { return CheckLedger(ctx, cfg.LedgerPath()) }},
	}
}

// PerformStartupChecks runs every check and reports all failures together.
// Encoder failures unwrap to ffmpeg.ErrSpawn.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running startup checks")

	var errs []error
	for _, c := range Checks(cfg) {
		if err := c.Run(ctx); err != nil {
			logger.Error().Err(err).Str("check", c.Name).Msg("startup check failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		logger.Info().Str("check", c.Name).Msg("startup check passed")
	}
	return errors.Join(errs...)
}

// Register adds the checks to a health manager for readiness reporting.
func Register(m *health.Manager, cfg config.AppConfig) {
	for _, c := range Checks(cfg) {
		m.RegisterChecker(health.CheckFunc(c.Name, c.Run))
	}
}

// CheckWritableDir creates path if needed and verifies it accepts files.
func CheckWritableDir(path string) error {
	if path == "" {
		return errors.New("directory is not configured")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func checkBinary(ctx context.Context, bin string) error {
	ctx, cancel := context.WithTimeout(ctx, binaryCheckTimeout)
	defer cancel()
	v, err := ffmpeg.CheckBinary(ctx, bin)
	if err != nil {
		return err
	}
	log.L().Debug().Str("bin", filepath.Base(bin)).Str("version", v).Msg("encoder binary available")
	return nil
}

// CheckLedger verifies an existing ledger database. A missing file is fine;
// it is created on first open.
func CheckLedger(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	problems, err := sqlite.VerifyIntegrity(ctx, path, "quick")
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("ledger integrity check failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
