package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side classifies the aggressor of an executed trade.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// ParseSide maps the feed's aggressor flag ("B"/"S") to a Side.
// Anything else is unknown; unknown sides still count toward total volume.
func ParseSide(s string) Side {
	switch s {
	case "B":
		return SideBuy
	case "S":
		return SideSell
	default:
		return SideUnknown
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "B"
	case SideSell:
		return "S"
	default:
		return "-"
	}
}

// Tick is one executed trade report from the market stream.
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Side   Side            `json:"side"`
	Ts     int64           `json:"ts"` // exchange time, unix milliseconds

	// Seq is the feed's explicit dedup key when it provides one.
	Seq string `json:"seq,omitempty"`
}

// DedupKey returns the identifier used to recognize redeliveries of the same
// tick: the explicit sequence when present, otherwise a composite of
// timestamp, price and volume.
func (t Tick) DedupKey() string {
	if t.Seq != "" {
		return t.Seq
	}
	return fmt.Sprintf("%d|%s|%s", t.Ts, t.Price.String(), t.Volume.String())
}
