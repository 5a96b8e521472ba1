// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the baseline configuration before file and env overrides.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "/var/lib/camgate",
		LogLevel: "info",
		Server: ServerConfig{
			Listen:          ":8088",
			RateLimitRPM:    30,
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MetricsEnabled:  true,
		},
		Camera: CameraConfig{
			BasicTimeout:   3 * time.Second,
			RequestTimeout: 10 * time.Second,
			MaxBodyMB:      20,
		},
		Image: ImageConfig{
			MaxWidth:  1920,
			MaxHeight: 1080,
			MaxKB:     500,
			Quality:   85,
		},
		Video: VideoConfig{
			RecordingsDir:   "/tmp/camgate-recordings",
			DefaultDuration: 15,
			MaxMB:           16,
			CompressPasses:  1,
			SweepAge:        time.Hour,
			Record: TranscodeProfile{
				Codec:        "libx264",
				Preset:       "veryfast",
				Profile:      "baseline",
				Level:        "3.1",
				PixFmt:       "yuv420p",
				CRF:          28,
				MaxBitrateK:  1500,
				BufSizeK:     3000,
				GOP:          50,
				MaxWidth:     1280,
				MaxHeight:    720,
				AudioBitrate: 96,
			},
			Compress: TranscodeProfile{
				Codec:        "libx264",
				Preset:       "veryfast",
				Profile:      "baseline",
				Level:        "3.1",
				PixFmt:       "yuv420p",
				CRF:          32,
				MaxBitrateK:  800,
				BufSizeK:     1600,
				GOP:          50,
				MaxWidth:     854,
				MaxHeight:    480,
				AudioBitrate: 64,
			},
		},
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			StartTimeout: 15 * time.Second,
			StallTimeout: 20 * time.Second,
			Grace:        30 * time.Second,
			KillTimeout:  5 * time.Second,
		},
		Messaging: MessagingConfig{
			Timeout:          30 * time.Second,
			RatePerSecond:    1,
			Burst:            3,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			SchemeTTL: 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
