// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"math"
	"sync"
	"time"
)

var progressThresholds = []int{25, 50, 75}

// progressTracker turns encoder position or elapsed time into threshold
// events. Once the encoder has reported a position, elapsed time is ignored.
// Percent never reaches 100 here; completion is EventDone.
type progressTracker struct {
	mu          sync.Mutex
	total       time.Duration
	next        int
	encoderSeen bool
	emit        func(EventProgress)
}

func newProgressTracker(total time.Duration, emit func(EventProgress)) *progressTracker {
	return &progressTracker{total: total, emit: emit}
}

func (p *progressTracker) fromEncoder(pos time.Duration) {
	p.update(pos, true)
}

func (p *progressTracker) fromElapsed(elapsed time.Duration) {
	p.update(elapsed, false)
}

func (p *progressTracker) update(pos time.Duration, encoder bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if encoder {
		p.encoderSeen = true
	} else if p.encoderSeen {
		return
	}
	if p.total <= 0 {
		return
	}

	pct := min(int(pos*100/p.total), 99)
	for p.next < len(progressThresholds) && pct >= progressThresholds[p.next] {
		remaining := int(math.Ceil((p.total - pos).Seconds()))
		p.emit(EventProgress{Percent: progressThresholds[p.next], RemainingSeconds: max(remaining, 0)})
		p.next++
	}
}
