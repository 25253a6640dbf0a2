package engine

import (
	"sort"
	"strconv"
	"time"

	"tapefeed/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// Placeholder rendered for numeric fields that have not received data yet.
	Placeholder = "-"

	recentPrintCount = 20
	topByVolumeCount = 7
)

// LadderRow is one rendered price level with per-cell highlight flags.
// Only the first three levels carry tracked highlights; deeper rows render
// with all flags off.
type LadderRow struct {
	Level int `json:"level"`

	BidPrice  string `json:"bid_price"`
	BidVolume string `json:"bid_volume"`
	AskPrice  string `json:"ask_price"`
	AskVolume string `json:"ask_volume"`

	BidPriceHot  bool `json:"bid_price_hot"`
	BidVolumeHot bool `json:"bid_volume_hot"`
	AskPriceHot  bool `json:"ask_price_hot"`
	AskVolumeHot bool `json:"ask_volume_hot"`
}

// TotalsView is the formatted session totals with highlight flags.
type TotalsView struct {
	Volume     string `json:"volume"`
	BuyVolume  string `json:"buy_volume"`
	SellVolume string `json:"sell_volume"`

	VolumeHot     bool `json:"volume_hot"`
	BuyVolumeHot  bool `json:"buy_volume_hot"`
	SellVolumeHot bool `json:"sell_volume_hot"`
}

// PrintView is one formatted trade print.
type PrintView struct {
	Price  string `json:"price"`
	Volume string `json:"volume"`
	Side   string `json:"side"`
	Ts     int64  `json:"ts"`
}

// ViewModel is the fully derived board the presentation layer renders.
// It is a pure projection of BookState plus the active highlight set: no
// independent state, rebuildable from scratch on every update.
type ViewModel struct {
	Symbol string `json:"symbol"`

	LastPrice  string `json:"last_price"`
	LastVolume string `json:"last_volume"`
	Change     string `json:"change"`
	ChangePct  string `json:"change_pct"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Average    string `json:"average"`
	Ceiling    string `json:"ceiling"`
	Floor      string `json:"floor"`
	Reference  string `json:"reference"`

	Ladder      []LadderRow `json:"ladder"`
	Totals      TotalsView  `json:"totals"`
	Prints      []PrintView `json:"prints"`
	TopByVolume []PrintView `json:"top_by_volume"`
	Highlights  []string    `json:"highlights"`

	AsOf time.Time `json:"as_of"`
}

// BuildViewModel projects the aggregate and the active highlight set into the
// renderable board. Read-only over its inputs; every nil numeric field
// renders as the placeholder instead of panicking on partial quotes.
func BuildViewModel(book *BookState, active map[string]bool, now time.Time) ViewModel {
	vm := ViewModel{
		Symbol:     book.Symbol,
		LastPrice:  fmtDec(book.Quote.LastPrice),
		LastVolume: fmtDec(book.Quote.LastVolume),
		Change:     fmtDec(book.Quote.Change),
		ChangePct:  fmtDec(book.Quote.ChangePct),
		High:       fmtDec(book.Quote.High),
		Low:        fmtDec(book.Quote.Low),
		Average:    fmtDec(book.Quote.Average),
		Ceiling:    fmtDec(book.Quote.Ceiling),
		Floor:      fmtDec(book.Quote.Floor),
		Reference:  fmtDec(book.Quote.Reference),
		Ladder:     make([]LadderRow, 0, domain.LadderDepth),
		AsOf:       now,
	}

	for i := 0; i < domain.LadderDepth; i++ {
		n := strconv.Itoa(i + 1)
		vm.Ladder = append(vm.Ladder, LadderRow{
			Level:        i + 1,
			BidPrice:     fmtDec(book.Quote.Bids[i].Price),
			BidVolume:    fmtDec(book.Quote.Bids[i].Volume),
			AskPrice:     fmtDec(book.Quote.Asks[i].Price),
			AskVolume:    fmtDec(book.Quote.Asks[i].Volume),
			BidPriceHot:  active["BidPrice"+n],
			BidVolumeHot: active["BidVol"+n],
			AskPriceHot:  active["AskPrice"+n],
			AskVolumeHot: active["AskVol"+n],
		})
	}

	vm.Totals = TotalsView{
		Volume:        book.TotalVolume.String(),
		BuyVolume:     book.TotalBuyVolume.String(),
		SellVolume:    book.TotalSellVolume.String(),
		VolumeHot:     active["TotalVol"],
		BuyVolumeHot:  active["TotalBuyVol"],
		SellVolumeHot: active["TotalSellVol"],
	}

	recent := book.RecentPrints(recentPrintCount)
	vm.Prints = toPrintViews(recent)
	vm.TopByVolume = toPrintViews(topByVolume(book.RecentPrints(book.HistoryLen()), topByVolumeCount))

	vm.Highlights = make([]string, 0, len(active))
	for _, field := range TrackedFields {
		if active[field] {
			vm.Highlights = append(vm.Highlights, field)
		}
	}
	return vm
}

// topByVolume returns the n largest prints by volume, newest first on ties.
func topByVolume(prints []domain.Tick, n int) []domain.Tick {
	out := make([]domain.Tick, len(prints))
	copy(out, prints)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume.GreaterThan(out[j].Volume)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func toPrintViews(ticks []domain.Tick) []PrintView {
	views := make([]PrintView, 0, len(ticks))
	for _, t := range ticks {
		views = append(views, PrintView{
			Price:  t.Price.String(),
			Volume: t.Volume.String(),
			Side:   t.Side.String(),
			Ts:     t.Ts,
		})
	}
	return views
}

func fmtDec(d *decimal.Decimal) string {
	if d == nil {
		return Placeholder
	}
	return d.String()
}
