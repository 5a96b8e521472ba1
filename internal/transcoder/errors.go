// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"errors"
	"fmt"
)

// ErrSizeLimitExceeded means the compressed clip is still over budget.
var ErrSizeLimitExceeded = errors.New("output exceeds size limit")

// SizeError reports a compressed file that did not fit. Path is valid and
// the caller decides whether to deliver it.
type SizeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: %.1f MB > %.1f MB", ErrSizeLimitExceeded, mb(e.Size), mb(e.Limit))
}

func (e *SizeError) Unwrap() error { return ErrSizeLimitExceeded }

func mb(n int64) float64 { return float64(n) / (1024 * 1024) }
