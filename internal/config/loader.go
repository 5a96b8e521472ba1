// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path the loader reads, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

// Load resolves defaults, then the YAML file (strict), then environment
// overrides, and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.Video.RecordingsDir); err == nil {
		cfg.Video.RecordingsDir = abs
	}
	if cfg.FFmpeg.FFprobeBin == "" {
		cfg.FFmpeg.FFprobeBin = deriveFFprobeBin(cfg.FFmpeg.Bin)
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)

	s := &cfg.Server
	s.Listen = l.envString("LISTEN", s.Listen)
	s.APIToken = l.envString("API_TOKEN", s.APIToken)
	s.RateLimitRPM = l.envInt("RATE_LIMIT_RPM", s.RateLimitRPM)
	s.ReadTimeout = l.envDuration("READ_TIMEOUT", s.ReadTimeout)
	s.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MetricsEnabled = l.envBool("METRICS_ENABLED", s.MetricsEnabled)
	s.TLSCert = l.envString("TLS_CERT", s.TLSCert)
	s.TLSKey = l.envString("TLS_KEY", s.TLSKey)

	c := &cfg.Camera
	c.SnapshotURL = l.envString("CAMERA_SNAPSHOT_URL", c.SnapshotURL)
	c.RTSPURL = l.envString("CAMERA_RTSP_URL", c.RTSPURL)
	c.Username = l.envString("CAMERA_USERNAME", c.Username)
	c.Password = l.envString("CAMERA_PASSWORD", c.Password)
	c.SnapshotParams = l.envString("CAMERA_SNAPSHOT_PARAMS", c.SnapshotParams)
	c.BasicTimeout = l.envDuration("CAMERA_BASIC_TIMEOUT", c.BasicTimeout)
	c.RequestTimeout = l.envDuration("CAMERA_REQUEST_TIMEOUT", c.RequestTimeout)
	c.MaxBodyMB = l.envInt("CAMERA_MAX_BODY_MB", c.MaxBodyMB)

	i := &cfg.Image
	i.MaxWidth = l.envInt("IMAGE_MAX_WIDTH", i.MaxWidth)
	i.MaxHeight = l.envInt("IMAGE_MAX_HEIGHT", i.MaxHeight)
	i.MaxKB = l.envInt("IMAGE_MAX_KB", i.MaxKB)
	i.Quality = l.envInt("IMAGE_QUALITY", i.Quality)

	v := &cfg.Video
	v.RecordingsDir = l.envString("RECORDINGS_DIR", v.RecordingsDir)
	v.DefaultDuration = l.envInt("VIDEO_DEFAULT_DURATION", v.DefaultDuration)
	v.MaxMB = l.envInt("VIDEO_MAX_MB", v.MaxMB)
	v.CompressPasses = l.envInt("VIDEO_COMPRESS_PASSES", v.CompressPasses)
	v.SweepAge = l.envDuration("VIDEO_SWEEP_AGE", v.SweepAge)
	v.Record.CRF = l.envInt("VIDEO_CRF", v.Record.CRF)
	v.Record.Preset = l.envString("VIDEO_PRESET", v.Record.Preset)
	v.Record.MaxBitrateK = l.envInt("VIDEO_MAX_BITRATE_K", v.Record.MaxBitrateK)
	v.Record.BufSizeK = l.envInt("VIDEO_BUFSIZE_K", v.Record.BufSizeK)
	v.Record.GOP = l.envInt("VIDEO_GOP", v.Record.GOP)
	v.Record.AudioBitrate = l.envInt("VIDEO_AUDIO_BITRATE_K", v.Record.AudioBitrate)

	f := &cfg.FFmpeg
	f.Bin = l.envString("FFMPEG_BIN", f.Bin)
	f.FFprobeBin = l.envString("FFPROBE_BIN", f.FFprobeBin)
	f.StartTimeout = l.envDuration("FFMPEG_START_TIMEOUT", f.StartTimeout)
	f.StallTimeout = l.envDuration("FFMPEG_STALL_TIMEOUT", f.StallTimeout)
	f.Grace = l.envDuration("FFMPEG_GRACE", f.Grace)
	f.KillTimeout = l.envDuration("FFMPEG_KILL_TIMEOUT", f.KillTimeout)

	m := &cfg.Messaging
	m.BaseURL = l.envString("MESSAGING_BASE_URL", m.BaseURL)
	m.APIToken = l.envString("MESSAGING_API_TOKEN", m.APIToken)
	m.DefaultRecipient = l.envString("MESSAGING_DEFAULT_RECIPIENT", m.DefaultRecipient)
	m.Timeout = l.envDuration("MESSAGING_TIMEOUT", m.Timeout)
	m.RatePerSecond = l.envFloat("MESSAGING_RATE_PER_SECOND", m.RatePerSecond)
	m.Burst = l.envInt("MESSAGING_BURST", m.Burst)

	k := &cfg.Cache
	k.Backend = l.envString("CACHE_BACKEND", k.Backend)
	k.RedisAddr = l.envString("REDIS_ADDR", k.RedisAddr)
	k.RedisPassword = l.envString("REDIS_PASSWORD", k.RedisPassword)
	k.RedisDB = l.envInt("REDIS_DB", k.RedisDB)
	k.SchemeTTL = l.envDuration("SCHEME_TTL", k.SchemeTTL)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.ExporterType = l.envString("TELEMETRY_EXPORTER", t.ExporterType)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
}

// deriveFFprobeBin places ffprobe next to an explicitly located ffmpeg.
func deriveFFprobeBin(ffmpegBin string) string {
	dir, base := filepath.Split(ffmpegBin)
	if dir == "" || !strings.HasPrefix(base, "ffmpeg") {
		return "ffprobe"
	}
	return filepath.Join(dir, strings.Replace(base, "ffmpeg", "ffprobe", 1))
}
