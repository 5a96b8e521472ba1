// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg supervises encoder processes: spawn in a process group,
// progress parsing, stall detection and graceful termination.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/media/ffmpeg/watchdog"
	"github.com/ManuGH/camgate/internal/metrics"
	"github.com/ManuGH/camgate/internal/procgroup"
)

const stderrLines = 50

// Progress is one -progress block as seen by the watchdog.
type Progress struct {
	OutTime    time.Duration
	HasOutTime bool
	TotalSize  int64
	Done       bool
}

// Invocation is a single encoder run.
type Invocation struct {
	Args []string
	// Deadline bounds wall-clock time. Zero means unbounded.
	Deadline time.Duration
	// OnProgress is called from the stdout reader after each progress block.
	OnProgress func(Progress)
}

// Result summarizes a finished encoder process.
type Result struct {
	ExitCode int
	Reason   string
	Elapsed  time.Duration
	Stderr   []string
}

// Runner starts encoder processes. Args must include "-progress pipe:1"
// for stall detection to see heartbeats.
type Runner struct {
	Bin          string
	StartTimeout time.Duration
	StallTimeout time.Duration
	KillGrace    time.Duration
	Logger       zerolog.Logger
}

// NewRunner creates a Runner with the component logger.
func NewRunner(bin string, startTimeout, stallTimeout, killGrace time.Duration) *Runner {
	return &Runner{
		Bin:          bin,
		StartTimeout: startTimeout,
		StallTimeout: stallTimeout,
		KillGrace:    killGrace,
		Logger:       xglog.WithComponent("ffmpeg"),
	}
}

// Run executes inv and blocks until the process group is gone. A non-nil
// error is always an *Error wrapping ErrSpawn or ErrProcess; cancellation
// additionally wraps ctx.Err().
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	logger := xglog.WithContext(ctx, r.Logger)

	cmd := exec.Command(r.Bin, inv.Args...) // #nosec G204 -- binary comes from operator config
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, &Error{Kind: ErrSpawn, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, &Error{Kind: ErrSpawn, Err: err}
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, &Error{Kind: ErrSpawn, Err: err}
	}
	logger.Debug().Int(xglog.FieldPID, cmd.Process.Pid).Str(xglog.FieldEvent, "encoder.started").Msg("encoder started")

	var wd *watchdog.Watchdog
	if r.StartTimeout > 0 && r.StallTimeout > 0 {
		wd = watchdog.New(r.StartTimeout, r.StallTimeout)
	}

	ring := NewLineRing(stderrLines)
	var ioWg sync.WaitGroup
	ioWg.Add(2)
	go func() {
		defer ioWg.Done()
		readProgress(stdout, wd, inv.OnProgress)
	}()
	go func() {
		defer ioWg.Done()
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := config.MaskURLsInText(sc.Text())
			ring.Add(line)
			logger.Trace().Str(xglog.FieldSource, "stderr").Msg(line)
		}
	}()

	waitCh := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so reads must drain first.
		ioWg.Wait()
		waitCh <- cmd.Wait()
	}()

	wdCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	stallCh := make(chan error, 1)
	if wd != nil {
		go func() { stallCh <- wd.Run(wdCtx) }()
	}

	var deadlineC <-chan time.Time
	if inv.Deadline > 0 {
		timer := time.NewTimer(inv.Deadline)
		defer timer.Stop()
		deadlineC = timer.C
	}

	var (
		waitErr error
		reason  = ReasonExit
		cause   error
	)
	for waiting := true; waiting; {
		select {
		case waitErr = <-waitCh:
			waiting = false
		case <-ctx.Done():
			reason, cause = ReasonCanceled, ctx.Err()
			waitErr = procgroup.Terminate(cmd, waitCh, r.KillGrace)
			waiting = false
		case <-deadlineC:
			reason, cause = ReasonDeadline, ErrDeadline
			waitErr = procgroup.Terminate(cmd, waitCh, r.KillGrace)
			waiting = false
		case err := <-stallCh:
			if err == nil {
				// Watchdog finished (progress=end); keep waiting for exit.
				stallCh = nil
				continue
			}
			metrics.IncEncoderStall()
			reason, cause = ReasonStalled, err
			waitErr = procgroup.Terminate(cmd, waitCh, r.KillGrace)
			waiting = false
		}
	}

	res := Result{
		ExitCode: exitCode(waitErr),
		Reason:   reason,
		Elapsed:  time.Since(started),
		Stderr:   ring.LastN(10),
	}

	logEvt := logger.Debug()
	if reason != ReasonExit || waitErr != nil {
		logEvt = logger.Warn()
	}
	logEvt.
		Int(xglog.FieldExitCode, res.ExitCode).
		Str(xglog.FieldReason, reason).
		Float64(xglog.FieldDuration, res.Elapsed.Seconds()).
		Str(xglog.FieldEvent, "encoder.exited").
		Msg("encoder exited")

	if reason != ReasonExit {
		return res, &Error{Kind: ErrProcess, Reason: reason, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: cause}
	}
	if waitErr != nil {
		return res, &Error{Kind: ErrProcess, Reason: reason, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: waitErr}
	}
	return res, nil
}

func readProgress(r io.Reader, wd *watchdog.Watchdog, onProgress func(Progress)) {
	if wd == nil {
		wd = watchdog.New(time.Hour, time.Hour)
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		wd.ParseLine(line)
		if onProgress == nil || !strings.HasPrefix(strings.TrimSpace(line), "progress=") {
			continue
		}
		out, ok := wd.OutTime()
		onProgress(Progress{
			OutTime:    out,
			HasOutTime: ok,
			TotalSize:  wd.TotalSize(),
			Done:       wd.State() == watchdog.StateCompleted,
		})
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
