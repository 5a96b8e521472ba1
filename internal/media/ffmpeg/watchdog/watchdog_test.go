// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestWatchdog(start, stall time.Duration) (*Watchdog, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	w := New(start, stall)
	w.now = clock.Now
	w.lastHeartbeat = clock.Now()
	return w, clock
}

func TestWatchdog_StartTimeout(t *testing.T) {
	w, clock := newTestWatchdog(2*time.Second, 5*time.Second)

	clock.Advance(time.Second)
	require.NoError(t, w.check())

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, w.check(), ErrStartTimeout)
	assert.ErrorIs(t, w.check(), context.DeadlineExceeded)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestWatchdog_StallAfterProgress(t *testing.T) {
	w, clock := newTestWatchdog(2*time.Second, 5*time.Second)

	w.ParseLine("out_time_us=1000000")
	assert.Equal(t, StateRunning, w.State())

	clock.Advance(4 * time.Second)
	w.ParseLine("out_time_us=1000000") // no advance, no heartbeat
	require.NoError(t, w.check())

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, w.check(), ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_SizeGrowthCountsAsProgress(t *testing.T) {
	w, clock := newTestWatchdog(time.Second, 2*time.Second)
	for i := 1; i <= 5; i++ {
		clock.Advance(1500 * time.Millisecond)
		w.ParseLine("total_size=" + strconv.Itoa(i*1000))
		require.NoError(t, w.check())
	}
	assert.Equal(t, int64(5000), w.TotalSize())
}

func TestWatchdog_OutTimeSources(t *testing.T) {
	w, _ := newTestWatchdog(time.Second, time.Second)

	_, ok := w.OutTime()
	assert.False(t, ok)

	w.ParseLine("out_time_ms=2500000")
	d, ok := w.OutTime()
	assert.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, d)

	w.ParseLine("out_time=00:00:07.250000")
	d, _ = w.OutTime()
	assert.Equal(t, 7250*time.Millisecond, d)

	w.ParseLine("out_time_us=N/A")
	w.ParseLine("out_time=garbage")
	w.ParseLine("not a progress line")
	w.ParseLine("out_time_us=100") // never goes backwards
	d, _ = w.OutTime()
	assert.Equal(t, 7250*time.Millisecond, d)
}

func TestWatchdog_ProgressEndCompletesRun(t *testing.T) {
	w := New(time.Minute, time.Minute)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	w.ParseLine("progress=continue")
	w.ParseLine("progress=end")
	w.ParseLine("progress=end")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after progress=end")
	}
	assert.Equal(t, StateCompleted, w.State())
}

func TestWatchdog_RunReportsStartTimeout(t *testing.T) {
	w := New(50*time.Millisecond, 100*time.Millisecond)
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrStartTimeout)
}

func TestWatchdog_RunStopsOnCancel(t *testing.T) {
	w := New(time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
