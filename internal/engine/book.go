package engine

import (
	"strconv"

	"tapefeed/internal/domain"

	"github.com/shopspring/decimal"
)

// BookState is the running per-symbol aggregate: the latest ladder quote,
// session volume totals, the bounded print history and the dedup set.
//
// All mutation happens on the engine goroutine (single-writer discipline), so
// no locking here. A host running the book outside the engine loop must
// serialize ApplySnapshot/ApplyTick/Reset per symbol itself.
type BookState struct {
	Symbol string

	Quote           domain.Quote
	TotalVolume     decimal.Decimal
	TotalBuyVolume  decimal.Decimal
	TotalSellVolume decimal.Decimal

	// seen holds the dedup keys of every print still inside the ring; keys
	// leave the set when their print is evicted, so the set is bounded by the
	// ring capacity.
	seen map[string]struct{}
	ring *tickRing
}

// NewBookState creates the aggregate for one symbol with a bounded print
// history of historySize entries.
func NewBookState(symbol string, historySize int) *BookState {
	return &BookState{
		Symbol: symbol,
		seen:   make(map[string]struct{}),
		ring:   newTickRing(historySize),
	}
}

// ApplySnapshot merges a full ladder quote and, when present, re-syncs the
// session totals from the server-computed values. Calling it twice with the
// same snapshot yields the same state (idempotent): the quote merge writes
// the same values and the totals are overwritten, not accumulated.
func (b *BookState) ApplySnapshot(quote *domain.Quote, totals *domain.Totals) {
	b.Quote.Merge(quote)
	if totals == nil {
		return
	}
	if totals.Volume != nil {
		b.TotalVolume = *totals.Volume
	}
	if totals.BuyVolume != nil {
		b.TotalBuyVolume = *totals.BuyVolume
	}
	if totals.SellVolume != nil {
		b.TotalSellVolume = *totals.SellVolume
	}
}

// ApplyTick ingests one executed trade. Redelivered ticks are rejected by
// dedup key; negative or missing volume is malformed. Accepted ticks are
// pushed into the ring (evicting the oldest print and its dedup key), total
// volume accrues unconditionally, and the side totals only for classified
// sides, so a misclassified side never corrupts the total.
func (b *BookState) ApplyTick(t domain.Tick) error {
	if t.Volume.IsNegative() || (t.Price.IsZero() && t.Volume.IsZero()) {
		return domain.ErrMalformedTick
	}

	key := t.DedupKey()
	if _, dup := b.seen[key]; dup {
		return domain.ErrDuplicateTick
	}

	evicted, full := b.ring.push(t)
	if full {
		delete(b.seen, evicted.DedupKey())
	}
	b.seen[key] = struct{}{}

	b.TotalVolume = b.TotalVolume.Add(t.Volume)
	switch t.Side {
	case domain.SideBuy:
		b.TotalBuyVolume = b.TotalBuyVolume.Add(t.Volume)
	case domain.SideSell:
		b.TotalSellVolume = b.TotalSellVolume.Add(t.Volume)
	}
	return nil
}

// Reset clears all state for a symbol switch. Must run before the first
// snapshot or tick of the new symbol, otherwise the previous symbol's totals
// bleed into the new session.
func (b *BookState) Reset(symbol string) {
	b.Symbol = symbol
	b.Quote = domain.Quote{}
	b.TotalVolume = decimal.Zero
	b.TotalBuyVolume = decimal.Zero
	b.TotalSellVolume = decimal.Zero
	b.seen = make(map[string]struct{})
	b.ring.reset()
}

// RecentPrints returns up to n accepted prints, newest first.
func (b *BookState) RecentPrints(n int) []domain.Tick {
	return b.ring.recent(n)
}

// HistoryLen returns the number of prints currently retained.
func (b *BookState) HistoryLen() int {
	return b.ring.len()
}

// trackedDepth is how many ladder levels feed the highlight diff. The board
// renders three levels per side; deeper levels never highlight.
const trackedDepth = 3

// TrackedFields is the fixed list of field names the highlight tracker diffs.
var TrackedFields = trackedFieldNames()

func trackedFieldNames() []string {
	names := make([]string, 0, trackedDepth*4+3)
	for i := 1; i <= trackedDepth; i++ {
		names = append(names, "BidPrice"+strconv.Itoa(i), "BidVol"+strconv.Itoa(i))
	}
	for i := 1; i <= trackedDepth; i++ {
		names = append(names, "AskPrice"+strconv.Itoa(i), "AskVol"+strconv.Itoa(i))
	}
	return append(names, "TotalBuyVol", "TotalSellVol", "TotalVol")
}

// FieldValues projects the tracked fields into name -> value form for the
// highlight diff. Absent ladder cells map to nil, so a first-ever value is a
// change too.
func (b *BookState) FieldValues() map[string]*decimal.Decimal {
	vals := make(map[string]*decimal.Decimal, len(TrackedFields))
	for i := 0; i < trackedDepth; i++ {
		n := strconv.Itoa(i + 1)
		vals["BidPrice"+n] = b.Quote.Bids[i].Price
		vals["BidVol"+n] = b.Quote.Bids[i].Volume
		vals["AskPrice"+n] = b.Quote.Asks[i].Price
		vals["AskVol"+n] = b.Quote.Asks[i].Volume
	}
	tv, bv, sv := b.TotalVolume, b.TotalBuyVolume, b.TotalSellVolume
	vals["TotalVol"] = &tv
	vals["TotalBuyVol"] = &bv
	vals["TotalSellVol"] = &sv
	return vals
}
