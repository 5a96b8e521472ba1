// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	CameraEndpointKey = "camera.endpoint"
	CameraSchemeKey   = "camera.auth_scheme"
	CameraMimeTypeKey = "camera.mime_type"

	ImageWidthKey  = "image.width"
	ImageHeightKey = "image.height"
	ImageBytesKey  = "image.bytes"

	RecordingIDKey       = "recording.id"
	RecordingDurationKey = "recording.duration_s"
	RecordingBytesKey    = "recording.bytes"

	TranscodePassKey    = "transcode.pass"
	TranscodeBitrateKey = "transcode.bitrate_k"

	MessagingKindKey      = "messaging.kind"
	MessagingRecipientKey = "messaging.recipient"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// CameraAttributes describes a camera request. endpoint must already be
// stripped of credentials.
func CameraAttributes(endpoint, scheme string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(CameraEndpointKey, endpoint)}
	if scheme != "" {
		attrs = append(attrs, attribute.String(CameraSchemeKey, scheme))
	}
	return attrs
}

func ImageAttributes(width, height, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ImageWidthKey, width),
		attribute.Int(ImageHeightKey, height),
		attribute.Int(ImageBytesKey, size),
	}
}

func RecordingAttributes(id string, durationSeconds int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RecordingIDKey, id),
		attribute.Int(RecordingDurationKey, durationSeconds),
	}
}

func TranscodeAttributes(pass, bitrateK int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(TranscodePassKey, pass),
		attribute.Int(TranscodeBitrateKey, bitrateK),
	}
}

// MessagingAttributes never includes message bodies.
func MessagingAttributes(kind, recipient string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MessagingKindKey, kind),
		attribute.String(MessagingRecipientKey, recipient),
	}
}

func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
