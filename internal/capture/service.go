// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capture wires the camera, imaging, recorder, transcoder and
// messaging packages into the snapshot and recording pipelines.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camgate/internal/camera"
	"github.com/ManuGH/camgate/internal/config"
	"github.com/ManuGH/camgate/internal/fsutil"
	"github.com/ManuGH/camgate/internal/imaging"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/messaging"
	"github.com/ManuGH/camgate/internal/recorder"
	"github.com/ManuGH/camgate/internal/telemetry"
	"github.com/ManuGH/camgate/internal/transcoder"
)

const videoMimeType = "video/mp4"

// Deps are the collaborators of a Service. Sender may be nil, in which case
// delivery requests fail with CodeDeliveryFailed.
type Deps struct {
	Camera     func() config.CameraConfig
	Fetcher    *camera.SnapshotFetcher
	Optimizer  *imaging.Optimizer
	Recorder   *recorder.Recorder
	Compressor *transcoder.Compressor
	Cleaner    *fsutil.Cleaner
	Sender     messaging.Sender
}

// Service runs the snapshot and recording pipelines.
type Service struct {
	camera     func() config.CameraConfig
	fetcher    *camera.SnapshotFetcher
	optimizer  *imaging.Optimizer
	recorder   *recorder.Recorder
	compressor *transcoder.Compressor
	cleaner    *fsutil.Cleaner
	logger     zerolog.Logger

	mu     sync.RWMutex
	sender messaging.Sender
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	return &Service{
		camera:     d.Camera,
		fetcher:    d.Fetcher,
		optimizer:  d.Optimizer,
		recorder:   d.Recorder,
		compressor: d.Compressor,
		cleaner:    d.Cleaner,
		sender:     d.Sender,
		logger:     xglog.WithComponent("capture"),
	}
}

// SetSender swaps the delivery client, e.g. after a config reload.
func (s *Service) SetSender(sender messaging.Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

func (s *Service) currentSender() messaging.Sender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sender
}

// Delivery names who receives the media. The zero value returns the media to
// the caller; Phone "" with Send set selects the configured default recipient.
// Message, when set, goes out as a text before the capture starts.
type Delivery struct {
	Send    bool
	Phone   string
	Caption string
	Message string
}

func (d Delivery) wanted() bool { return d.Send || d.Phone != "" }

// SnapshotResult is an optimized still image.
type SnapshotResult struct {
	Image     imaging.Result
	Delivered bool
}

// Snapshot fetches, optimizes and optionally delivers one still image.
func (s *Service) Snapshot(ctx context.Context, d Delivery) (res SnapshotResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "capture.snapshot")
	defer func() { telemetry.EndSpan(span, err, "capture") }()

	cam := s.camera()
	if cam.SnapshotURL == "" {
		return SnapshotResult{}, classify(fmt.Errorf("%w: snapshot_url is empty", errNotConfigured))
	}
	if d.wanted() {
		if err := s.announce(ctx, d); err != nil {
			return SnapshotResult{}, classify(err)
		}
	}

	snap, err := s.fetcher.Fetch(ctx, cam.SnapshotURL, credentials(cam))
	if err != nil {
		return SnapshotResult{}, classify(err)
	}
	img := s.optimizer.Optimize(snap.Data, snap.MimeType)
	res = SnapshotResult{Image: img}

	if d.wanted() {
		media := messaging.Media{Data: img.Data, MimeType: img.MimeType, Filename: "snapshot" + extension(img.MimeType)}
		if err := s.deliver(ctx, d, media); err != nil {
			return res, classify(err)
		}
		res.Delivered = true
	}
	return res, nil
}

// RecordRequest parameterizes Record.
type RecordRequest struct {
	// DurationSeconds 0 selects the configured default.
	DurationSeconds int
	Delivery        Delivery
}

// RecordObserver receives job updates while Record runs. Both hooks are
// optional and called from the calling goroutine.
type RecordObserver struct {
	OnStart    func(recorder.Status)
	OnProgress func(recorder.EventProgress)
}

// RecordResult is a finished clip. Data is set when the clip was not
// delivered; the file itself is always removed before Record returns.
type RecordResult struct {
	JobID     string
	Size      int64
	MimeType  string
	Data      []byte
	Delivered bool
}

// Record captures a clip, compresses it when over budget and delivers or
// returns it. Every file the job created is removed on every outcome.
func (s *Service) Record(ctx context.Context, req RecordRequest, obs RecordObserver) (res RecordResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "capture.record")
	defer func() { telemetry.EndSpan(span, err, "capture") }()

	cam := s.camera()
	if cam.RTSPURL == "" {
		return RecordResult{}, classify(fmt.Errorf("%w: rtsp_url is empty", errNotConfigured))
	}
	source, err := withUserinfo(cam.RTSPURL, credentials(cam))
	if err != nil {
		return RecordResult{}, classify(fmt.Errorf("%w: invalid rtsp_url", errNotConfigured))
	}
	if req.Delivery.wanted() {
		if err := s.announce(ctx, req.Delivery); err != nil {
			return RecordResult{}, classify(err)
		}
	}

	events, job := s.recorder.Record(ctx, source, req.DurationSeconds)
	res.JobID = job.ID()
	if obs.OnStart != nil {
		obs.OnStart(job.Status())
	}
	ctx = xglog.ContextWithJobID(ctx, res.JobID)
	logger := xglog.WithContext(ctx, s.logger)

	var done recorder.EventDone
	var failed error
	for ev := range events {
		switch e := ev.(type) {
		case recorder.EventProgress:
			if obs.OnProgress != nil {
				obs.OnProgress(e)
			}
		case recorder.EventDone:
			done = e
		case recorder.EventFailed:
			failed = e.Err
		}
	}
	if failed != nil {
		return res, classify(failed)
	}

	final := done.Path
	// The job turns terminal only after its files are gone.
	var jobErr error
	defer func() {
		s.cleaner.Cleanup(ctx, final, "pipeline_finished")
		if jobErr != nil {
			_ = job.MarkFailed(jobErr)
			return
		}
		_ = job.MarkDone(final, res.Size)
	}()

	fail := func(err error) (RecordResult, error) {
		jobErr = err
		logger.Warn().Err(err).Str(xglog.FieldEvent, "capture.record.failed").Msg("recording pipeline failed")
		return res, classify(err)
	}

	fits, err := s.compressor.Fits(done.Path)
	if err != nil {
		return fail(err)
	}
	if !fits {
		if err := job.MarkCompressing(); err != nil {
			return fail(err)
		}
		compressed, cerr := s.compressor.CompressIfNeeded(ctx, done.Path)
		final = compressed
		if compressed != done.Path {
			// The compressor removes the original on success; make sure of it
			// on the oversize path too.
			s.cleaner.Cleanup(ctx, done.Path, "compressed")
		}
		if cerr != nil {
			return fail(cerr)
		}
	}

	data, err := os.ReadFile(final)
	if err != nil {
		return fail(fmt.Errorf("%w: read %s: %w", fsutil.ErrFileSystem, filepath.Base(final), err))
	}
	res.Size = int64(len(data))
	res.MimeType = videoMimeType

	if req.Delivery.wanted() {
		media := messaging.Media{Data: data, MimeType: videoMimeType, Filename: res.JobID + ".mp4"}
		if err := s.deliver(ctx, req.Delivery, media); err != nil {
			return fail(err)
		}
		res.Delivered = true
	} else {
		res.Data = data
	}
	return res, nil
}

// announce sends d.Message ahead of the capture. Without a message it only
// checks that a sender exists, so a doomed delivery fails before any work.
func (s *Service) announce(ctx context.Context, d Delivery) error {
	sender := s.currentSender()
	if sender == nil {
		return messaging.ErrNotConfigured
	}
	if d.Message == "" {
		return nil
	}
	return sender.SendText(ctx, d.Phone, d.Message, "")
}

func (s *Service) deliver(ctx context.Context, d Delivery, media messaging.Media) error {
	sender := s.currentSender()
	if sender == nil {
		return messaging.ErrNotConfigured
	}
	return sender.SendMedia(ctx, d.Phone, media, d.Caption)
}

func credentials(cam config.CameraConfig) camera.Credentials {
	return camera.Credentials{Username: cam.Username, Password: cam.Password}
}

// withUserinfo embeds creds into an RTSP URL that carries none.
func withUserinfo(raw string, creds camera.Credentials) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.User != nil || creds.Empty() {
		return raw, nil
	}
	u.User = url.UserPassword(creds.Username, creds.Password)
	return u.String(), nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}

// IsFailure reports whether err carries the given code.
func IsFailure(err error, code Code) bool {
	var f *Failure
	return errors.As(err, &f) && f.Code == code
}
