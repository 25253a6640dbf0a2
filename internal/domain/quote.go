package domain

import "github.com/shopspring/decimal"

// LadderDepth is the maximum number of bid/ask levels kept per side.
const LadderDepth = 10

// Level is one price/volume pair on the ladder.
// Either field may be nil until the first message carrying it arrives.
type Level struct {
	Price  *decimal.Decimal `json:"price"`
	Volume *decimal.Decimal `json:"volume"`
}

// Quote is the best-bid/best-ask ladder plus the session price fields for one
// symbol. All numeric fields are nil until first data arrives; consumers must
// tolerate partial quotes.
//
// Bids are sorted by descending price, asks by ascending price, best first,
// at most LadderDepth entries each. The feed delivers levels already ordered
// as numbered fields (BidPrice1 is the best bid), so ordering is preserved by
// construction rather than re-sorted here.
type Quote struct {
	Bids [LadderDepth]Level `json:"bids"`
	Asks [LadderDepth]Level `json:"asks"`

	LastPrice  *decimal.Decimal `json:"last_price"`
	LastVolume *decimal.Decimal `json:"last_volume"`
	Change     *decimal.Decimal `json:"change"`     // absolute change vs reference
	ChangePct  *decimal.Decimal `json:"change_pct"` // percentage change vs reference
	High       *decimal.Decimal `json:"high"`
	Low        *decimal.Decimal `json:"low"`
	Average    *decimal.Decimal `json:"average"`
	Ceiling    *decimal.Decimal `json:"ceiling"`
	Floor      *decimal.Decimal `json:"floor"`
	Reference  *decimal.Decimal `json:"reference"`
}

// Merge applies a partial quote update onto q. Only fields present (non-nil)
// on the patch are written; absent fields keep their previous value. Ladder
// levels are patched per cell, so a message carrying only BidPrice1 does not
// blank the deeper levels.
func (q *Quote) Merge(patch *Quote) {
	if patch == nil {
		return
	}
	for i := 0; i < LadderDepth; i++ {
		if patch.Bids[i].Price != nil {
			q.Bids[i].Price = patch.Bids[i].Price
		}
		if patch.Bids[i].Volume != nil {
			q.Bids[i].Volume = patch.Bids[i].Volume
		}
		if patch.Asks[i].Price != nil {
			q.Asks[i].Price = patch.Asks[i].Price
		}
		if patch.Asks[i].Volume != nil {
			q.Asks[i].Volume = patch.Asks[i].Volume
		}
	}
	if patch.LastPrice != nil {
		q.LastPrice = patch.LastPrice
	}
	if patch.LastVolume != nil {
		q.LastVolume = patch.LastVolume
	}
	if patch.Change != nil {
		q.Change = patch.Change
	}
	if patch.ChangePct != nil {
		q.ChangePct = patch.ChangePct
	}
	if patch.High != nil {
		q.High = patch.High
	}
	if patch.Low != nil {
		q.Low = patch.Low
	}
	if patch.Average != nil {
		q.Average = patch.Average
	}
	if patch.Ceiling != nil {
		q.Ceiling = patch.Ceiling
	}
	if patch.Floor != nil {
		q.Floor = patch.Floor
	}
	if patch.Reference != nil {
		q.Reference = patch.Reference
	}
}

// IsEmpty reports whether the quote has received no data at all.
func (q *Quote) IsEmpty() bool {
	if q.LastPrice != nil || q.Reference != nil {
		return false
	}
	for i := 0; i < LadderDepth; i++ {
		if q.Bids[i].Price != nil || q.Bids[i].Volume != nil ||
			q.Asks[i].Price != nil || q.Asks[i].Volume != nil {
			return false
		}
	}
	return true
}

// Totals carries server-computed session volume totals from a snapshot.
// Nil fields mean the snapshot did not include that total.
type Totals struct {
	Volume     *decimal.Decimal `json:"total_vol"`
	BuyVolume  *decimal.Decimal `json:"total_buy_vol"`
	SellVolume *decimal.Decimal `json:"total_sell_vol"`
}
