// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and hot-reloads the camgate configuration.
package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	Image     ImageConfig     `yaml:"image"`
	Video     VideoConfig     `yaml:"video"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Messaging MessagingConfig `yaml:"messaging"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the trigger API.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	APIToken        string        `yaml:"api_token"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// CameraConfig describes the camera endpoints and credentials.
type CameraConfig struct {
	SnapshotURL    string        `yaml:"snapshot_url"`
	RTSPURL        string        `yaml:"rtsp_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	SnapshotParams string        `yaml:"snapshot_params"`
	BasicTimeout   time.Duration `yaml:"basic_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyMB      int           `yaml:"max_body_mb"`
}

// ImageConfig is the snapshot optimization budget.
type ImageConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
	MaxKB     int `yaml:"max_kb"`
	Quality   int `yaml:"quality"`
}

// VideoConfig is the recording and compression budget.
type VideoConfig struct {
	RecordingsDir   string           `yaml:"recordings_dir"`
	DefaultDuration int              `yaml:"default_duration"`
	MaxMB           int              `yaml:"max_mb"`
	CompressPasses  int              `yaml:"compress_passes"`
	SweepAge        time.Duration    `yaml:"sweep_age"`
	Record          TranscodeProfile `yaml:"record"`
	Compress        TranscodeProfile `yaml:"compress"`
}

// TranscodeProfile is the encoder parameter set for one encode pass.
// Bitrates are in kbit/s.
type TranscodeProfile struct {
	Codec        string `yaml:"codec"`
	Preset       string `yaml:"preset"`
	Profile      string `yaml:"profile"`
	Level        string `yaml:"level"`
	PixFmt       string `yaml:"pix_fmt"`
	CRF          int    `yaml:"crf"`
	MaxBitrateK  int    `yaml:"max_bitrate_k"`
	BufSizeK     int    `yaml:"bufsize_k"`
	GOP          int    `yaml:"gop"`
	MaxWidth     int    `yaml:"max_width"`
	MaxHeight    int    `yaml:"max_height"`
	AudioBitrate int    `yaml:"audio_bitrate_k"`
}

// FFmpegConfig locates the encoder binaries and bounds their runtime.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	StartTimeout time.Duration `yaml:"start_timeout"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
	Grace        time.Duration `yaml:"grace"`
	KillTimeout  time.Duration `yaml:"kill_timeout"`
}

// MessagingConfig configures the outbound media delivery client.
type MessagingConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIToken         string        `yaml:"api_token"`
	DefaultRecipient string        `yaml:"default_recipient"`
	Timeout          time.Duration `yaml:"timeout"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// CacheConfig selects the auth scheme store backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	SchemeTTL     time.Duration `yaml:"scheme_ttl"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// LedgerPath is the sqlite database holding recording job metadata.
func (c AppConfig) LedgerPath() string {
	return c.DataDir + "/camgate.db"
}
