// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recorder captures bounded RTSP clips with ffmpeg.
package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/fsutil"
	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
	"github.com/ManuGH/camgate/internal/telemetry"
)

// elapsedTick drives the wall-clock progress fallback.
const elapsedTick = 500 * time.Millisecond

// Config parameterizes a Recorder.
type Config struct {
	Dir             string
	DefaultDuration int
	// Grace is added to the clip length to form the hard wall-clock bound.
	Grace   time.Duration
	Profile config.TranscodeProfile
}

// Recorder starts recording jobs. Each job runs in its own goroutine.
type Recorder struct {
	cfg     Config
	enc     ffmpeg.Encoding
	runner  *ffmpeg.Runner
	cleaner *fsutil.Cleaner
	hook    func(Status)
	logger  zerolog.Logger
	now     func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithStatusHook observes every job state transition.
func WithStatusHook(fn func(Status)) Option {
	return func(r *Recorder) { r.hook = fn }
}

// New creates a Recorder writing into cfg.Dir.
func New(cfg Config, runner *ffmpeg.Runner, cleaner *fsutil.Cleaner, opts ...Option) *Recorder {
	r := &Recorder{
		cfg:     cfg,
		enc:     ffmpeg.EncodingFromProfile(cfg.Profile),
		runner:  runner,
		cleaner: cleaner,
		logger:  xglog.WithComponent("recorder"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record starts capturing rtspURL for durationSeconds (0 selects the
// default; values are clamped to [5,120]). The returned channel delivers
// progress, then one terminal event, and is then closed. Cancelling ctx stops
// the encoder and fails the job with context.Canceled.
func (r *Recorder) Record(ctx context.Context, rtspURL string, durationSeconds int) (<-chan Event, *Job) {
	effective := ClampDuration(durationSeconds, r.cfg.DefaultDuration)
	now := r.now()
	id := NewJobID(now)
	job := newJob(id, config.MaskURL(rtspURL), durationSeconds, effective, now, r.hook)

	// Sized for every progress threshold plus the terminal event, so the
	// job goroutine never blocks on a slow reader.
	events := make(chan Event, len(progressThresholds)+1)
	go r.run(xglog.ContextWithJobID(ctx, id), job, rtspURL, events)
	return events, job
}

func (r *Recorder) run(ctx context.Context, job *Job, rtspURL string, events chan<- Event) {
	defer close(events)

	st := job.Status()
	out := filepath.Join(r.cfg.Dir, st.ID+".mp4")
	logger := xglog.WithContext(ctx, r.logger).With().Str(xglog.FieldSource, st.Source).Logger()

	ctx, span := telemetry.StartSpan(ctx, "recorder.record", telemetry.RecordingAttributes(st.ID, st.EffectiveSeconds)...)
	var runErr error
	defer func() { telemetry.EndSpan(span, runErr, "encoder") }()

	_ = job.transition(StateRecording, func(s *Status) { s.Path = out })
	metrics.RecordingStarted()
	started := time.Now()
	logger.Info().
		Int(xglog.FieldDuration, st.EffectiveSeconds).
		Str(xglog.FieldEvent, "recording.started").
		Msg("recording started")

	total := time.Duration(st.EffectiveSeconds) * time.Second
	tracker := newProgressTracker(total, func(p EventProgress) {
		job.setPercent(p.Percent)
		events <- p
	})

	tickCtx, stopTicker := context.WithCancel(ctx)
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		t := time.NewTicker(elapsedTick)
		defer t.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-t.C:
				tracker.fromElapsed(time.Since(started))
			}
		}
	}()

	_, runErr = r.runner.Run(ctx, ffmpeg.Invocation{
		Args:     BuildArgs(rtspURL, st.EffectiveSeconds, r.enc, out),
		Deadline: total + r.cfg.Grace,
		OnProgress: func(p ffmpeg.Progress) {
			if p.HasOutTime {
				tracker.fromEncoder(p.OutTime)
			}
		},
	})
	stopTicker()
	<-tickDone

	var size int64
	if runErr == nil {
		info, err := os.Stat(out)
		switch {
		case err != nil:
			runErr = &EncoderError{Kind: ErrEncoderProcess, Reason: "missing_output", Err: errEmptyOutput}
		case info.Size() == 0:
			runErr = &EncoderError{Kind: ErrEncoderProcess, Reason: "empty_output", Err: errEmptyOutput}
		default:
			size = info.Size()
		}
	}

	elapsed := time.Since(started)
	if runErr != nil {
		r.cleaner.Cleanup(ctx, out, "recording_failed")
		_ = job.MarkFailed(runErr)
		metrics.RecordingFinished(outcome(runErr), elapsed)
		logger.Error().Err(runErr).
			Float64(xglog.FieldDuration, elapsed.Seconds()).
			Str(xglog.FieldEvent, "recording.failed").
			Msg("recording failed")
		events <- EventFailed{Err: runErr}
		return
	}

	_ = job.transition(StateEncoded, func(s *Status) { s.Size = size })
	metrics.RecordingFinished("ok", elapsed)
	logger.Info().
		Int64(xglog.FieldBytes, size).
		Float64(xglog.FieldDuration, elapsed.Seconds()).
		Str(xglog.FieldEvent, "recording.encoded").
		Msg("recording encoded")
	events <- EventDone{Path: out, Size: size}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEncoderSpawn):
		return "spawn_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ffmpeg.ErrDeadline):
		return "timeout"
	default:
		return "encoder_error"
	}
}
