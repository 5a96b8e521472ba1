// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog consumes the ffmpeg -progress stream, tracks encoded media
// time and fails encoders that never start or stop making progress.
package watchdog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrStartTimeout means the encoder produced no progress within the start window.
	ErrStartTimeout = fmt.Errorf("encoder produced no progress: %w", context.DeadlineExceeded)
	// ErrStalled means progress stopped advancing for longer than the stall timeout.
	ErrStalled = fmt.Errorf("encoder progress stalled: %w", context.DeadlineExceeded)
)

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Watchdog is fed progress lines by the stdout reader and polled by Run.
type Watchdog struct {
	mu sync.Mutex

	startTimeout time.Duration
	stallTimeout time.Duration

	outTime       time.Duration
	hasOutTime    bool
	totalSize     int64
	lastHeartbeat time.Time
	state         State

	completeOnce sync.Once
	completed    chan struct{}

	now func() time.Time
}

// New creates a watchdog. The start window begins immediately.
func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	w := &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		completed:    make(chan struct{}),
		now:          time.Now,
	}
	w.lastHeartbeat = w.now()
	return w
}

// ParseLine processes one key=value line of ffmpeg -progress output.
func (w *Watchdog) ParseLine(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || val == "N/A" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch key {
	// ffmpeg reports out_time_ms in microseconds, same as out_time_us.
	case "out_time_us", "out_time_ms":
		if us, err := strconv.ParseInt(val, 10, 64); err == nil {
			w.advance(time.Duration(us) * time.Microsecond)
		}
	case "out_time":
		if d, ok := parseClock(val); ok {
			w.advance(d)
		}
	case "total_size":
		if size, err := strconv.ParseInt(val, 10, 64); err == nil && size > w.totalSize {
			w.totalSize = size
			w.heartbeat()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			w.completeOnce.Do(func() { close(w.completed) })
		}
	}
}

func (w *Watchdog) advance(d time.Duration) {
	if d > w.outTime {
		w.outTime = d
		w.hasOutTime = true
		w.heartbeat()
	}
}

func (w *Watchdog) heartbeat() {
	w.lastHeartbeat = w.now()
	if w.state == StateStarting {
		w.state = StateRunning
	}
}

// parseClock parses ffmpeg's HH:MM:SS.micro timestamps.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second)), true
}

// OutTime returns the encoded media time, if the encoder reported one.
func (w *Watchdog) OutTime() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outTime, w.hasOutTime
}

// TotalSize returns the last reported output size in bytes.
func (w *Watchdog) TotalSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalSize
}

// State returns the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Completed is closed once the encoder reports progress=end.
func (w *Watchdog) Completed() <-chan struct{} {
	return w.completed
}

// Run polls until ctx ends, the encoder completes, or a timeout fires.
// It returns ErrStartTimeout or ErrStalled on timeout and nil otherwise.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := time.Second
	if q := w.stallTimeout / 4; q > 0 && q < interval {
		interval = q
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.completed:
			return nil
		case <-ticker.C:
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.now().Sub(w.lastHeartbeat)
	switch w.state {
	case StateStarting:
		if elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStartTimeout
		}
	case StateRunning:
		if elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}
