// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_proc_terminate_total",
		Help: "Signals sent to encoder process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camgate_proc_wait_total",
		Help: "Encoder wait outcomes after termination",
	}, []string{"result"})

	encoderStalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camgate_encoder_stalls_total",
		Help: "Encoders killed by the progress watchdog",
	})
)

// IncProcTerminate counts a termination signal.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts a reaped process.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}

// IncEncoderStall counts a watchdog kill.
func IncEncoderStall() {
	encoderStalls.Inc()
}
