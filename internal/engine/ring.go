package engine

import "tapefeed/internal/domain"

// tickRing is a bounded history of accepted prints. The oldest print is
// evicted when the ring is full, which also retires its dedup key, keeping
// memory flat for a session of any length. Not safe for concurrent use; the
// engine goroutine is the only writer and reader.
type tickRing struct {
	buf  []domain.Tick
	head int // index of the next write
	size int
}

func newTickRing(capacity int) *tickRing {
	if capacity < 1 {
		capacity = 1
	}
	return &tickRing{buf: make([]domain.Tick, capacity)}
}

// push appends a tick, returning the evicted tick when the ring was full.
func (r *tickRing) push(t domain.Tick) (domain.Tick, bool) {
	var evicted domain.Tick
	full := r.size == len(r.buf)
	if full {
		evicted = r.buf[r.head]
	} else {
		r.size++
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
	return evicted, full
}

// recent returns up to n ticks, newest first.
func (r *tickRing) recent(n int) []domain.Tick {
	if n > r.size {
		n = r.size
	}
	out := make([]domain.Tick, 0, n)
	idx := r.head
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = len(r.buf) - 1
		}
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *tickRing) len() int { return r.size }

func (r *tickRing) reset() {
	r.head = 0
	r.size = 0
}
