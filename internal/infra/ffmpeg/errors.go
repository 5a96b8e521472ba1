// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn means the encoder binary could not be started.
	ErrSpawn = errors.New("encoder spawn failed")
	// ErrProcess means the encoder ran but did not finish cleanly.
	ErrProcess = errors.New("encoder process failed")
	// ErrDeadline means the encoder outlived its hard wall-clock bound.
	ErrDeadline = errors.New("encoder exceeded wall-clock bound")
)

// Termination reasons reported in Error.Reason and Result.Reason.
const (
	ReasonExit     = "exit"
	ReasonCanceled = "canceled"
	ReasonDeadline = "deadline"
	ReasonStalled  = "stalled"
)

// Error describes an encoder failure. It never carries the command line,
// which may embed camera credentials.
type Error struct {
	Kind     error
	Reason   string
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Reason != "" && e.Reason != ReasonExit:
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	case e.ExitCode != 0:
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
