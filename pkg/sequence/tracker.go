// Package sequence groups bursts of estimate calls into one logical render
// pass so the pass total can be calibrated against the usage reported for it.
package sequence

import (
	"time"

	"github.com/wycats/SferaDev-sub001/pkg/estimate"
)

// DefaultGap is the longest pause between two calls of the same sequence.
const DefaultGap = 500 * time.Millisecond

// Call is one recorded estimate.
type Call struct {
	Tokens int
	Source estimate.Source
}

// Sequence is a burst of calls with no pause longer than the gap.
type Sequence struct {
	StartTime     time.Time
	LastCallTime  time.Time
	Calls         []Call
	TotalEstimate int
}

// Tracker owns the current sequence. It is not safe for concurrent use.
type Tracker struct {
	gap     time.Duration
	now     func() time.Time
	current *Sequence
}

// NewTracker creates a Tracker. A zero gap uses DefaultGap and a nil clock
// uses time.Now.
func NewTracker(gap time.Duration, now func() time.Time) *Tracker {
	if gap <= 0 {
		gap = DefaultGap
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{gap: gap, now: now}
}

// OnCall records est. A new sequence starts when none exists or when more
// than the gap has passed since the previous call; the gap is measured from
// the last call, not the sequence start.
func (t *Tracker) OnCall(est estimate.TokenEstimate) {
	now := t.now()
	if t.current == nil || now.Sub(t.current.LastCallTime) > t.gap {
		t.current = &Sequence{StartTime: now}
	}
	t.current.Calls = append(t.current.Calls, Call{Tokens: est.Tokens, Source: est.Source})
	t.current.TotalEstimate += est.Tokens
	t.current.LastCallTime = now
}

// Current returns a copy of the current sequence, or nil.
func (t *Tracker) Current() *Sequence {
	if t.current == nil {
		return nil
	}
	cp := *t.current
	cp.Calls = append([]Call(nil), t.current.Calls...)
	return &cp
}

// Reset drops the current sequence.
func (t *Tracker) Reset() {
	t.current = nil
}
