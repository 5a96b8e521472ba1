// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/camgate/internal/config"
)

// State is the lifecycle position of a recording job.
type State string

const (
	StatePending     State = "pending"
	StateRecording   State = "recording"
	StateEncoded     State = "encoded"
	StateCompressing State = "compressing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

var transitions = map[State][]State{
	StatePending:     {StateRecording, StateFailed},
	StateRecording:   {StateEncoded, StateFailed},
	StateEncoded:     {StateCompressing, StateDone, StateFailed},
	StateCompressing: {StateDone, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	MinDurationSeconds = 5
	MaxDurationSeconds = 120
)

// ClampDuration resolves the effective clip length: 0 selects def, and the
// result is bounded to [5,120] seconds.
func ClampDuration(requested, def int) int {
	if requested == 0 {
		requested = def
	}
	return min(max(requested, MinDurationSeconds), MaxDurationSeconds)
}

// NewJobID returns rec-<UTC timestamp with ns>-<8 hex>.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("rec-%s-%s", now.UTC().Format("20060102T150405.000000000Z"), suffix)
}

// Status is a point-in-time copy of a job.
type Status struct {
	ID               string
	Source           string
	RequestedSeconds int
	EffectiveSeconds int
	State            State
	Path             string
	Percent          int
	Size             int64
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Job is one recording. It is safe for concurrent reads; transitions are
// made by the recorder and, after encoding, by the caller.
type Job struct {
	mu     sync.Mutex
	status Status
	hook   func(Status)
}

func newJob(id, source string, requested, effective int, now time.Time, hook func(Status)) *Job {
	j := &Job{
		status: Status{
			ID:               id,
			Source:           source,
			RequestedSeconds: requested,
			EffectiveSeconds: effective,
			State:            StatePending,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		hook: hook,
	}
	j.notify(j.status)
	return j
}

func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.ID
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) transition(to State, mutate func(*Status)) error {
	j.mu.Lock()
	if !canTransition(j.status.State, to) {
		from := j.status.State
		j.mu.Unlock()
		return fmt.Errorf("invalid job transition %s -> %s", from, to)
	}
	j.status.State = to
	if mutate != nil {
		mutate(&j.status)
	}
	j.status.UpdatedAt = time.Now()
	snap := j.status
	j.mu.Unlock()

	j.notify(snap)
	return nil
}

func (j *Job) notify(s Status) {
	if j.hook != nil {
		j.hook(s)
	}
}

func (j *Job) setPercent(p int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p > j.status.Percent {
		j.status.Percent = p
	}
}

// MarkCompressing records that the encoded file is being re-encoded.
func (j *Job) MarkCompressing() error {
	return j.transition(StateCompressing, nil)
}

// MarkDone records the final deliverable.
func (j *Job) MarkDone(path string, size int64) error {
	return j.transition(StateDone, func(s *Status) {
		s.Path = path
		s.Size = size
		s.Percent = 100
	})
}

// MarkFailed records err. The output file must already be gone.
func (j *Job) MarkFailed(err error) error {
	return j.transition(StateFailed, func(s *Status) {
		s.Path = ""
		s.Size = 0
		if err != nil {
			s.Error = config.MaskURLsInText(err.Error())
		}
	})
}
