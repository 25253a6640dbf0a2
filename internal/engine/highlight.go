package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHighlightDuration is how long a changed field stays marked.
const DefaultHighlightDuration = 300 * time.Millisecond

// HighlightTracker diffs consecutive board states over the fixed tracked
// field list and keeps a transient per-field mark that expires duration after
// the field last changed. Expiry is lazy: marks are swept on the next diff or
// read, never by a background timer.
//
// Owned by the engine goroutine; no locking.
type HighlightTracker struct {
	duration time.Duration
	prev     map[string]*decimal.Decimal
	marks    map[string]time.Time // field -> expiresAt
}

// NewHighlightTracker creates a tracker with the given mark duration.
func NewHighlightTracker(duration time.Duration) *HighlightTracker {
	if duration <= 0 {
		duration = DefaultHighlightDuration
	}
	return &HighlightTracker{
		duration: duration,
		prev:     make(map[string]*decimal.Decimal),
		marks:    make(map[string]time.Time),
	}
}

// DiffAndMark compares cur against the previous state and marks every field
// whose value changed, including transitions to and from nil. Each changed
// field's timer restarts independently; untouched fields keep their existing
// expiry. The previous state is replaced by cur even when nothing changed.
func (h *HighlightTracker) DiffAndMark(cur map[string]*decimal.Decimal, now time.Time) []string {
	var changed []string
	for _, field := range TrackedFields {
		if !eqValue(h.prev[field], cur[field]) {
			changed = append(changed, field)
			h.marks[field] = now.Add(h.duration)
		}
	}
	h.prev = cur
	h.sweep(now)
	return changed
}

// Active returns the set of fields whose mark has not expired at now.
// Expired marks are removed as a side effect.
func (h *HighlightTracker) Active(now time.Time) map[string]bool {
	h.sweep(now)
	out := make(map[string]bool, len(h.marks))
	for field := range h.marks {
		out[field] = true
	}
	return out
}

// Reset drops all marks and the previous state (symbol switch).
func (h *HighlightTracker) Reset() {
	h.prev = make(map[string]*decimal.Decimal)
	h.marks = make(map[string]time.Time)
}

func (h *HighlightTracker) sweep(now time.Time) {
	for field, expiresAt := range h.marks {
		if !now.Before(expiresAt) {
			delete(h.marks, field)
		}
	}
}

func eqValue(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
