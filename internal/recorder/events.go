// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

// Event is delivered on the channel returned by Record: zero or more
// EventProgress values, then exactly one EventDone or EventFailed.
type Event interface {
	isEvent()
}

// EventProgress reports a crossed progress threshold.
type EventProgress struct {
	Percent          int
	RemainingSeconds int
}

// EventDone carries the encoded clip.
type EventDone struct {
	Path string
	Size int64
}

// EventFailed carries the job error.
type EventFailed struct {
	Err error
}

func (EventProgress) isEvent() {}
func (EventDone) isEvent()     {}
func (EventFailed) isEvent()   {}
