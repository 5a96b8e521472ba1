// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcoder re-encodes clips that exceed the delivery size limit.
package transcoder

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/fsutil"
	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
	"github.com/ManuGH/camgate/internal/telemetry"
)

const (
	// muxHeadroom leaves room for container overhead in the bitrate budget.
	muxHeadroom = 0.92
	// Each extra pass raises CRF by crfStep and scales bitrate by bitrateStep.
	crfStep     = 4
	bitrateStep = 0.75
	minVideoK   = 64

	compressedSuffix = ".compressed.mp4"
)

// Prober reports media duration for bitrate budgeting.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.MediaInfo, error)
}

// Config parameterizes a Compressor.
type Config struct {
	MaxBytes int64
	// Passes is the number of re-encode attempts, 1 to 3.
	Passes  int
	Profile config.TranscodeProfile
}

// Compressor shrinks recordings to fit MaxBytes.
type Compressor struct {
	cfg     Config
	runner  *ffmpeg.Runner
	prober  Prober
	cleaner *fsutil.Cleaner
	logger  zerolog.Logger
}

// New creates a Compressor.
func New(cfg Config, runner *ffmpeg.Runner, prober Prober, cleaner *fsutil.Cleaner) *Compressor {
	if cfg.Passes < 1 {
		cfg.Passes = 1
	}
	return &Compressor{
		cfg:     cfg,
		runner:  runner,
		prober:  prober,
		cleaner: cleaner,
		logger:  xglog.WithComponent("transcoder"),
	}
}

// CompressedPath returns the output path used for path.
func CompressedPath(path string) string {
	return strings.TrimSuffix(path, ".mp4") + compressedSuffix
}

// Fits reports whether path is already within the size limit.
func (c *Compressor) Fits(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", fsutil.ErrFileSystem, path, err)
	}
	return info.Size() <= c.cfg.MaxBytes, nil
}

// CompressIfNeeded returns path untouched when it fits. Otherwise it
// re-encodes into CompressedPath(path), removes the original and returns the
// new path; a result that still does not fit comes with a *SizeError. If
// encoding fails the partial output is removed and path is returned with a
// nil error.
func (c *Compressor) CompressIfNeeded(ctx context.Context, path string) (string, error) {
	fits, err := c.Fits(path)
	if err != nil {
		return path, err
	}
	if fits {
		metrics.IncCompression("skipped")
		return path, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return path, fmt.Errorf("%w: stat %s: %w", fsutil.ErrFileSystem, path, err)
	}

	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldPath, path).Logger()
	media, probeErr := c.prober.Probe(ctx, path)
	if probeErr != nil {
		logger.Warn().Err(probeErr).Msg("probe failed, compressing without bitrate cap")
	}

	out := CompressedPath(path)
	var outSize int64
	for pass := 0; pass < c.cfg.Passes; pass++ {
		enc := c.encodingFor(pass, media)

		passCtx, span := telemetry.StartSpan(ctx, "transcoder.compress", telemetry.TranscodeAttributes(pass+1, enc.MaxBitrateK)...)
		started := time.Now()
		_, err := c.runner.Run(passCtx, ffmpeg.Invocation{Args: BuildArgs(path, enc, out)})
		telemetry.EndSpan(span, err, "encoder")

		if err != nil {
			c.cleaner.Cleanup(ctx, out, "compression_failed")
			metrics.IncCompression("failed")
			logger.Warn().Err(err).Int("pass", pass+1).
				Str(xglog.FieldEvent, "compression.failed").
				Msg("compression failed, keeping original")
			return path, nil
		}

		st, err := os.Stat(out)
		if err != nil || st.Size() == 0 {
			c.cleaner.Cleanup(ctx, out, "compression_empty")
			metrics.IncCompression("failed")
			logger.Warn().Int("pass", pass+1).Msg("compression produced no output, keeping original")
			return path, nil
		}
		outSize = st.Size()

		logger.Info().
			Int("pass", pass+1).
			Int("crf", enc.CRF).
			Int("maxrate_k", enc.MaxBitrateK).
			Int64("input_bytes", info.Size()).
			Int64(xglog.FieldBytes, outSize).
			Float64(xglog.FieldDuration, time.Since(started).Seconds()).
			Str(xglog.FieldEvent, "compression.pass").
			Msg("compression pass finished")

		if outSize <= c.cfg.MaxBytes {
			break
		}
	}

	c.cleaner.Cleanup(ctx, path, "compressed")
	metrics.ObserveCompressionRatio(info.Size(), outSize)
	if outSize > c.cfg.MaxBytes {
		metrics.IncCompression("oversize")
		return out, &SizeError{Path: out, Size: outSize, Limit: c.cfg.MaxBytes}
	}
	metrics.IncCompression("ok")
	return out, nil
}

// encodingFor derives the encoder settings of a pass. With a known duration
// the video bitrate is capped to (budget*8/duration - audio) * headroom.
func (c *Compressor) encodingFor(pass int, media ffmpeg.MediaInfo) ffmpeg.Encoding {
	enc := ffmpeg.EncodingFromProfile(c.cfg.Profile)
	enc.CRF = min(enc.CRF+crfStep*pass, 51)
	enc.MaxBitrateK = int(float64(enc.MaxBitrateK) * math.Pow(bitrateStep, float64(pass)))

	if secs := media.Duration.Seconds(); secs > 0 {
		audioK := 0
		if media.HasAudio {
			audioK = enc.AudioBitrateK
		}
		budgetK := (float64(c.cfg.MaxBytes)*8/secs/1000 - float64(audioK)) * muxHeadroom
		enc.MaxBitrateK = min(enc.MaxBitrateK, int(budgetK))
	}
	enc.MaxBitrateK = max(enc.MaxBitrateK, minVideoK)
	enc.BufSizeK = 2 * enc.MaxBitrateK
	return enc
}

// BuildArgs returns the ffmpeg arguments that re-encode in into out.
func BuildArgs(in string, enc ffmpeg.Encoding, out string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}
	args = append(args, enc.OutputArgs()...)
	args = append(args, ffmpeg.ProgressArgs()...)
	return append(args, out)
}
