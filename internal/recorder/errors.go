// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"errors"

	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
)

var (
	// ErrEncoderSpawn means ffmpeg could not be started.
	ErrEncoderSpawn = ffmpeg.ErrSpawn
	// ErrEncoderProcess means ffmpeg failed, stalled, was stopped or left no output.
	ErrEncoderProcess = ffmpeg.ErrProcess

	errEmptyOutput = errors.New("encoder produced no output")
)

// EncoderError carries exit code, reason and the last stderr lines. It never
// includes the command line.
type EncoderError = ffmpeg.Error
