package engine

import (
	"testing"

	"tapefeed/internal/domain"
)

func TestTickRing(t *testing.T) {
	t.Run("Push And Recent", func(t *testing.T) {
		r := newTickRing(4)
		for i := 1; i <= 3; i++ {
			if _, evicted := r.push(domain.Tick{Ts: int64(i)}); evicted {
				t.Fatalf("no eviction expected before capacity, tick %d", i)
			}
		}

		got := r.recent(2)
		if len(got) != 2 || got[0].Ts != 3 || got[1].Ts != 2 {
			t.Errorf("expected newest-first [3 2], got %+v", got)
		}
	})

	t.Run("Evicts Oldest When Full", func(t *testing.T) {
		r := newTickRing(3)
		for i := 1; i <= 3; i++ {
			r.push(domain.Tick{Ts: int64(i)})
		}

		evicted, full := r.push(domain.Tick{Ts: 4})
		if !full || evicted.Ts != 1 {
			t.Errorf("expected eviction of ts=1, got full=%v evicted=%+v", full, evicted)
		}
		if r.len() != 3 {
			t.Errorf("size must stay at capacity, got %d", r.len())
		}
	})

	t.Run("Recent Clamped To Size", func(t *testing.T) {
		r := newTickRing(8)
		r.push(domain.Tick{Ts: 1})
		if got := r.recent(100); len(got) != 1 {
			t.Errorf("expected 1 tick, got %d", len(got))
		}
	})

	t.Run("Reset", func(t *testing.T) {
		r := newTickRing(2)
		r.push(domain.Tick{Ts: 1})
		r.reset()
		if r.len() != 0 || len(r.recent(5)) != 0 {
			t.Error("ring must be empty after reset")
		}
	})
}
