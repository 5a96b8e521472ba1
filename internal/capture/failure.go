// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/camgate/internal/camera"
	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
	"github.com/ManuGH/camgate/internal/messaging"
	"github.com/ManuGH/camgate/internal/recorder"
	"github.com/ManuGH/camgate/internal/resilience"
	"github.com/ManuGH/camgate/internal/transcoder"
)

// Code is a machine-readable failure class.
type Code string

const (
	CodeNotConfigured      Code = "not_configured"
	CodeCameraAuth         Code = "camera_auth_failed"
	CodeCameraUnreachable  Code = "camera_unreachable"
	CodeCameraEmpty        Code = "camera_empty_response"
	CodeEncoderUnavailable Code = "encoder_unavailable"
	CodeEncoderFailed      Code = "encoder_failed"
	CodeSizeLimit          Code = "size_limit_exceeded"
	CodeDeliveryFailed     Code = "delivery_failed"
	CodeCanceled           Code = "canceled"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

var errNotConfigured = errors.New("camera source not configured")

// Failure is the user-visible form of a pipeline error. Message never
// contains credentials or the encoder command line.
type Failure struct {
	Code    Code
	Message string
	Schemes []string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns the Failure wrapped in err, classifying err if needed.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return classify(err)
}

func classify(err error) *Failure {
	f := &Failure{Err: err, Message: err.Error()}
	for _, s := range camera.AttemptedSchemes(err) {
		f.Schemes = append(f.Schemes, s.String())
	}

	switch {
	case errors.Is(err, context.Canceled):
		f.Code, f.Message = CodeCanceled, "request canceled"
	case errors.Is(err, errNotConfigured):
		f.Code = CodeNotConfigured
	case errors.Is(err, camera.ErrAuthentication):
		f.Code = CodeCameraAuth
	case errors.Is(err, camera.ErrEmptyResponse):
		f.Code = CodeCameraEmpty
	case errors.Is(err, camera.ErrNetwork):
		f.Code = CodeCameraUnreachable
	case errors.Is(err, recorder.ErrEncoderSpawn):
		f.Code, f.Message = CodeEncoderUnavailable, "encoder could not be started"
	case errors.Is(err, recorder.ErrEncoderProcess):
		// Encoder stderr can echo the source URL, so it stays in the logs.
		f.Code, f.Message = CodeEncoderFailed, encoderMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		f.Code, f.Message = CodeTimeout, "operation timed out"
	case errors.Is(err, transcoder.ErrSizeLimitExceeded):
		f.Code = CodeSizeLimit
	case errors.Is(err, messaging.ErrNoRecipient), errors.Is(err, messaging.ErrNotConfigured),
		errors.Is(err, messaging.ErrTransport), errors.Is(err, resilience.ErrCircuitOpen):
		f.Code = CodeDeliveryFailed
	default:
		var se *messaging.StatusError
		if errors.As(err, &se) {
			f.Code = CodeDeliveryFailed
			break
		}
		f.Code, f.Message = CodeInternal, "internal error"
	}
	return f
}

func encoderMessage(err error) string {
	var ee *recorder.EncoderError
	if !errors.As(err, &ee) {
		return "encoder failed"
	}
	switch {
	case ee.Reason != "" && ee.Reason != ffmpeg.ReasonExit:
		return "encoder failed (" + ee.Reason + ")"
	case ee.ExitCode != 0:
		return fmt.Sprintf("encoder failed (exit %d)", ee.ExitCode)
	}
	return "encoder failed"
}
