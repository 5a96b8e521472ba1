// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldJobID         = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Camera fields
	FieldEndpoint = "endpoint"
	FieldScheme   = "scheme"
	FieldStatus   = "status"
	FieldMimeType = "mime_type"

	// Media fields
	FieldDuration = "duration_s"
	FieldWidth    = "width"
	FieldHeight   = "height"
	FieldBytes    = "bytes"
	FieldPercent  = "percent"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath   = "path"
	FieldSource = "source"
	FieldReason = "reason"
)
