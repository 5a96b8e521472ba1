// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/camgate/internal/validate"
)

// Duration bounds for a single recording, in seconds.
const (
	MinRecordSeconds = 5
	MaxRecordSeconds = 120
)

// MaxCompressPasses bounds the iterative compression policy.
const MaxCompressPasses = 3

// Validate checks the resolved configuration. It runs once at startup and on
// every hot reload before the new values are published.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		v.AddError("log_level", err.Error(), cfg.LogLevel)
	}
	v.NotEmpty("data_dir", cfg.DataDir)

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.NonNegative("server.rate_limit_rpm", cfg.Server.RateLimitRPM)
	v.PositiveDuration("server.read_timeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		v.AddError("server.tls_cert", "tls_cert and tls_key must be set together", cfg.Server.TLSCert)
	}

	v.OptionalURL("camera.snapshot_url", cfg.Camera.SnapshotURL, []string{"http", "https"})
	v.OptionalURL("camera.rtsp_url", cfg.Camera.RTSPURL, []string{"rtsp", "rtsps"})
	v.PositiveDuration("camera.basic_timeout", cfg.Camera.BasicTimeout)
	v.PositiveDuration("camera.request_timeout", cfg.Camera.RequestTimeout)
	v.Range("camera.max_body_mb", cfg.Camera.MaxBodyMB, 1, 512)

	v.Positive("image.max_width", cfg.Image.MaxWidth)
	v.Positive("image.max_height", cfg.Image.MaxHeight)
	v.Positive("image.max_kb", cfg.Image.MaxKB)
	v.Range("image.quality", cfg.Image.Quality, 1, 100)

	v.NotEmpty("video.recordings_dir", cfg.Video.RecordingsDir)
	v.Range("video.default_duration", cfg.Video.DefaultDuration, MinRecordSeconds, MaxRecordSeconds)
	v.Positive("video.max_mb", cfg.Video.MaxMB)
	v.Range("video.compress_passes", cfg.Video.CompressPasses, 1, MaxCompressPasses)
	v.PositiveDuration("video.sweep_age", cfg.Video.SweepAge)
	validateProfile(v, "video.record", cfg.Video.Record)
	validateProfile(v, "video.compress", cfg.Video.Compress)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NotEmpty("ffmpeg.ffprobe_bin", cfg.FFmpeg.FFprobeBin)
	v.PositiveDuration("ffmpeg.start_timeout", cfg.FFmpeg.StartTimeout)
	v.PositiveDuration("ffmpeg.stall_timeout", cfg.FFmpeg.StallTimeout)
	v.PositiveDuration("ffmpeg.grace", cfg.FFmpeg.Grace)
	v.PositiveDuration("ffmpeg.kill_timeout", cfg.FFmpeg.KillTimeout)

	v.OptionalURL("messaging.base_url", cfg.Messaging.BaseURL, []string{"http", "https"})
	v.PositiveDuration("messaging.timeout", cfg.Messaging.Timeout)
	if cfg.Messaging.RatePerSecond <= 0 {
		v.AddError("messaging.rate_per_second", "must be positive", cfg.Messaging.RatePerSecond)
	}
	v.Positive("messaging.burst", cfg.Messaging.Burst)
	v.Positive("messaging.breaker_threshold", cfg.Messaging.BreakerThreshold)
	v.PositiveDuration("messaging.breaker_reset", cfg.Messaging.BreakerReset)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis"})
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redis_addr", cfg.Cache.RedisAddr)
	}
	v.NonNegative("cache.redis_db", cfg.Cache.RedisDB)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.sampling_rate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}

func validateProfile(v *validate.Validator, field string, p TranscodeProfile) {
	v.OneOf(field+".codec", p.Codec, []string{"libx264"})
	v.OneOf(field+".preset", p.Preset, []string{
		"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow",
	})
	v.OneOf(field+".profile", p.Profile, []string{"baseline", "main", "high"})
	v.NotEmpty(field+".level", p.Level)
	v.OneOf(field+".pix_fmt", p.PixFmt, []string{"yuv420p"})
	v.Range(field+".crf", p.CRF, 0, 51)
	v.Positive(field+".max_bitrate_k", p.MaxBitrateK)
	v.Positive(field+".bufsize_k", p.BufSizeK)
	v.Positive(field+".gop", p.GOP)
	v.Range(field+".max_width", p.MaxWidth, 16, 7680)
	v.Range(field+".max_height", p.MaxHeight, 16, 4320)
	v.Range(field+".audio_bitrate_k", p.AudioBitrate, 16, 320)
}

// ParseLevel accepts the log levels camgate understands.
func ParseLevel(level string) (string, error) {
	switch level {
	case "debug", "info", "warn", "error":
		return level, nil
	}
	return "", validate.Error{Field: "log_level", Value: level, Message: "must be one of debug, info, warn, error"}
}
