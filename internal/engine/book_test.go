package engine

import (
	"testing"

	"tapefeed/internal/domain"

	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func snapshotQuote() *domain.Quote {
	q := &domain.Quote{}
	q.Bids[0].Price = decPtr(23700)
	return q
}

func snapshotTotals() *domain.Totals {
	return &domain.Totals{
		Volume:     decPtr(1000),
		BuyVolume:  decPtr(600),
		SellVolume: decPtr(400),
	}
}

func TestBookState_ApplySnapshot(t *testing.T) {
	t.Run("Totals From Server", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplySnapshot(snapshotQuote(), snapshotTotals())

		if !b.TotalVolume.Equal(dec(1000)) {
			t.Errorf("expected TotalVolume 1000, got %v", b.TotalVolume)
		}
		if !b.TotalBuyVolume.Equal(dec(600)) {
			t.Errorf("expected TotalBuyVolume 600, got %v", b.TotalBuyVolume)
		}
		if !b.TotalSellVolume.Equal(dec(400)) {
			t.Errorf("expected TotalSellVolume 400, got %v", b.TotalSellVolume)
		}
		if b.Quote.Bids[0].Price == nil || !b.Quote.Bids[0].Price.Equal(dec(23700)) {
			t.Errorf("expected BidPrice1 23700, got %v", b.Quote.Bids[0].Price)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplySnapshot(snapshotQuote(), snapshotTotals())
		b.ApplySnapshot(snapshotQuote(), snapshotTotals())

		if !b.TotalVolume.Equal(dec(1000)) {
			t.Errorf("double apply must not accumulate, got %v", b.TotalVolume)
		}
	})

	t.Run("Partial Totals Keep Prior Values", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplySnapshot(snapshotQuote(), snapshotTotals())
		b.ApplySnapshot(nil, &domain.Totals{Volume: decPtr(1500)})

		if !b.TotalVolume.Equal(dec(1500)) {
			t.Errorf("expected re-synced TotalVolume 1500, got %v", b.TotalVolume)
		}
		if !b.TotalBuyVolume.Equal(dec(600)) {
			t.Errorf("absent totals must not reset, got %v", b.TotalBuyVolume)
		}
	})
}

func TestBookState_ApplyTick(t *testing.T) {
	t.Run("Accumulates Totals", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplySnapshot(snapshotQuote(), snapshotTotals())

		err := b.ApplyTick(domain.Tick{Symbol: "SSI", Price: dec(23800), Volume: dec(100), Side: domain.SideBuy, Ts: 1})
		if err != nil {
			t.Fatalf("ApplyTick failed: %v", err)
		}

		if !b.TotalVolume.Equal(dec(1100)) {
			t.Errorf("expected TotalVolume 1100, got %v", b.TotalVolume)
		}
		if !b.TotalBuyVolume.Equal(dec(700)) {
			t.Errorf("expected TotalBuyVolume 700, got %v", b.TotalBuyVolume)
		}
		if !b.TotalSellVolume.Equal(dec(400)) {
			t.Errorf("sell volume must be unchanged, got %v", b.TotalSellVolume)
		}
	})

	t.Run("Unknown Side Only Moves Total", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(10), Side: domain.SideUnknown, Ts: 1})

		if !b.TotalVolume.Equal(dec(10)) {
			t.Errorf("expected TotalVolume 10, got %v", b.TotalVolume)
		}
		if !b.TotalBuyVolume.IsZero() || !b.TotalSellVolume.IsZero() {
			t.Error("side totals must stay zero for unknown side")
		}
	})

	t.Run("Side Volume Conservation", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(10), Side: domain.SideBuy, Ts: 1})
		b.ApplyTick(domain.Tick{Price: dec(101), Volume: dec(20), Side: domain.SideSell, Ts: 2})
		b.ApplyTick(domain.Tick{Price: dec(102), Volume: dec(30), Side: domain.SideUnknown, Ts: 3})

		sum := b.TotalBuyVolume.Add(b.TotalSellVolume)
		if sum.GreaterThan(b.TotalVolume) {
			t.Errorf("buy+sell (%v) must not exceed total (%v)", sum, b.TotalVolume)
		}
		if !b.TotalVolume.Equal(dec(60)) {
			t.Errorf("expected TotalVolume 60, got %v", b.TotalVolume)
		}
	})

	t.Run("Duplicate Key Rejected", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		tick := domain.Tick{Price: dec(23800), Volume: dec(100), Side: domain.SideBuy, Ts: 5}

		if err := b.ApplyTick(tick); err != nil {
			t.Fatalf("first apply failed: %v", err)
		}
		before := b.TotalVolume

		if err := b.ApplyTick(tick); err != domain.ErrDuplicateTick {
			t.Errorf("expected ErrDuplicateTick, got %v", err)
		}
		if !b.TotalVolume.Equal(before) {
			t.Errorf("duplicate must not change totals: %v vs %v", before, b.TotalVolume)
		}
	})

	t.Run("Explicit Seq Key Wins Over Composite", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(10), Ts: 1, Seq: "a"})

		// Same composite fields, different explicit key: a distinct tick.
		if err := b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(10), Ts: 1, Seq: "b"}); err != nil {
			t.Errorf("distinct seq must be accepted, got %v", err)
		}
		if !b.TotalVolume.Equal(dec(20)) {
			t.Errorf("expected TotalVolume 20, got %v", b.TotalVolume)
		}
	})

	t.Run("Malformed Dropped", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		err := b.ApplyTick(domain.Tick{Ts: 1})
		if err != domain.ErrMalformedTick {
			t.Errorf("expected ErrMalformedTick, got %v", err)
		}
		if b.HistoryLen() != 0 {
			t.Error("malformed tick must not enter history")
		}

		if err := b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(-5), Ts: 2}); err != domain.ErrMalformedTick {
			t.Errorf("negative volume must be malformed, got %v", err)
		}
	})

	t.Run("Monotonic Total", func(t *testing.T) {
		b := NewBookState("SSI", 16)
		prev := b.TotalVolume
		for i := 0; i < 50; i++ {
			b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(float64(i % 7)), Ts: int64(i)})
			if b.TotalVolume.LessThan(prev) {
				t.Fatalf("total volume decreased at tick %d", i)
			}
			prev = b.TotalVolume
		}
	})
}

func TestBookState_Reset(t *testing.T) {
	b := NewBookState("SSI", 16)
	b.ApplySnapshot(snapshotQuote(), &domain.Totals{Volume: decPtr(5000)})
	b.ApplyTick(domain.Tick{Price: dec(23800), Volume: dec(100), Side: domain.SideBuy, Ts: 1})

	b.Reset("VCB")

	if b.Symbol != "VCB" {
		t.Errorf("expected symbol VCB, got %s", b.Symbol)
	}
	if !b.TotalVolume.IsZero() || !b.TotalBuyVolume.IsZero() || !b.TotalSellVolume.IsZero() {
		t.Error("totals must be zero after reset")
	}
	if b.HistoryLen() != 0 {
		t.Error("history must be empty after reset")
	}
	if !b.Quote.IsEmpty() {
		t.Error("quote must be empty after reset")
	}

	// Prior symbol's dedup keys must not leak into the new session.
	if err := b.ApplyTick(domain.Tick{Price: dec(23800), Volume: dec(100), Side: domain.SideBuy, Ts: 1}); err != nil {
		t.Errorf("first tick after reset must be accepted, got %v", err)
	}
}

func TestBookState_RingEviction(t *testing.T) {
	b := NewBookState("SSI", 4)
	for i := 0; i < 10; i++ {
		if err := b.ApplyTick(domain.Tick{Price: dec(100), Volume: dec(1), Ts: int64(i)}); err != nil {
			t.Fatalf("tick %d rejected: %v", i, err)
		}
	}

	if b.HistoryLen() != 4 {
		t.Errorf("expected bounded history of 4, got %d", b.HistoryLen())
	}
	if len(b.seen) != 4 {
		t.Errorf("dedup set must shrink with eviction, got %d keys", len(b.seen))
	}
	if !b.TotalVolume.Equal(dec(10)) {
		t.Errorf("eviction must not rewind totals, got %v", b.TotalVolume)
	}

	prints := b.RecentPrints(10)
	if len(prints) != 4 || prints[0].Ts != 9 {
		t.Errorf("expected newest-first window ending at ts 9, got %+v", prints)
	}
}
