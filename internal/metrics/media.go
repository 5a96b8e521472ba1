// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imageOptimizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_image_optimizations_total",
		Help: "Image optimizer runs by result (unchanged, resized, passthrough, failed)",
	}, []string{"result"})

	recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_recordings_total",
		Help: "Recording jobs by terminal outcome",
	}, []string{"outcome"})

	recordingsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camgate_recordings_active",
		Help: "Recording jobs currently running an encoder",
	})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "camgate_recording_wall_seconds",
		Help:    "Wall-clock time from encoder spawn to terminal state",
		Buckets: []float64{5, 10, 15, 30, 60, 90, 120, 180},
	})

	compressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_compressions_total",
		Help: "Compressor decisions by result (skipped, ok, oversize, failed)",
	}, []string{"result"})

	compressionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "camgate_compression_ratio",
		Help:    "Output/input size ratio of successful compressions",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	cleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_cleanups_total",
		Help: "Temporary file removals by result (removed, missing, refused, error)",
	}, []string{"result"})
)

// IncImageOptimization counts one optimizer run.
func IncImageOptimization(result string) {
	imageOptimizations.WithLabelValues(result).Inc()
}

// RecordingStarted marks an encoder as running.
func RecordingStarted() { recordingsActive.Inc() }

// RecordingFinished records the terminal outcome of a recording job.
func RecordingFinished(outcome string, elapsed time.Duration) {
	recordingsActive.Dec()
	recordings.WithLabelValues(outcome).Inc()
	recordingDuration.Observe(elapsed.Seconds())
}

// IncCompression counts one compressor decision.
func IncCompression(result string) {
	compressions.WithLabelValues(result).Inc()
}

// ObserveCompressionRatio records out/in bytes of a finished compression.
func ObserveCompressionRatio(in, out int64) {
	if in > 0 {
		compressionRatio.Observe(float64(out) / float64(in))
	}
}

// IncCleanup counts one cleanup attempt.
func IncCleanup(result string) {
	cleanups.WithLabelValues(result).Inc()
}
