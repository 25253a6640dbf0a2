package stream

import (
	"encoding/json"
	"strconv"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/event"

	"github.com/shopspring/decimal"
)

const (
	maxRetries        = 5
	reconnectCoolDown = 2 * time.Minute
	pingInterval      = 30 * time.Second
	readTimeout       = 60 * time.Second
)

// subscribeRequest is the channel-join message sent after connecting.
type subscribeRequest struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
}

// envelope wraps every server message. Market updates arrive as
// event="marketData" with a loosely-typed payload: numeric fields may be
// JSON numbers or numeric strings, and any field may be absent.
type envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// parseMarketData converts one marketData payload into an engine event.
// Missing numeric fields stay nil on the quote patch; a tick is attached only
// when the message carries both LastPrice and LastVol. Returns nil when the
// payload has nothing usable.
func parseMarketData(data map[string]interface{}, symbol string, epoch uint64) *event.TickEvent {
	if data == nil {
		return nil
	}

	if s := strField(data, "symbol"); s != "" {
		symbol = s
	}

	quote := parseQuotePatch(data)
	tick := parseTrade(data, symbol)
	if quote == nil && tick == nil {
		return nil
	}

	ev := event.AcquireTickEvent()
	ev.Symbol = symbol
	ev.Epoch = epoch
	ev.Ts = numMillis(data, "Time")
	ev.Tick = tick
	ev.Quote = quote
	ev.Duplicate = boolField(data, "isDuplicate")
	return ev
}

// parseQuotePatch extracts the ladder and session price fields bundled with
// the message. Nil result means the message carried no quote fields at all.
func parseQuotePatch(data map[string]interface{}) *domain.Quote {
	q := &domain.Quote{}
	found := false

	for i := 0; i < domain.LadderDepth; i++ {
		n := strconv.Itoa(i + 1)
		if v := numField(data, "BidPrice"+n); v != nil {
			q.Bids[i].Price = v
			found = true
		}
		if v := numField(data, "BidVol"+n); v != nil {
			q.Bids[i].Volume = v
			found = true
		}
		if v := numField(data, "AskPrice"+n); v != nil {
			q.Asks[i].Price = v
			found = true
		}
		if v := numField(data, "AskVol"+n); v != nil {
			q.Asks[i].Volume = v
			found = true
		}
	}

	fields := []struct {
		key string
		dst **decimal.Decimal
	}{
		{"LastPrice", &q.LastPrice},
		{"LastVol", &q.LastVolume},
		{"Change", &q.Change},
		{"RatioChange", &q.ChangePct},
		{"High", &q.High},
		{"Low", &q.Low},
		{"AvgPrice", &q.Average},
		{"Ceiling", &q.Ceiling},
		{"Floor", &q.Floor},
		{"RefPrice", &q.Reference},
	}
	for _, f := range fields {
		if v := numField(data, f.key); v != nil {
			*f.dst = v
			found = true
		}
	}

	if !found {
		return nil
	}
	return q
}

// parseTrade extracts the executed-trade part of the message, when present.
func parseTrade(data map[string]interface{}, symbol string) *domain.Tick {
	price := numField(data, "LastPrice")
	volume := numField(data, "LastVol")
	if price == nil || volume == nil {
		return nil
	}

	return &domain.Tick{
		Symbol: symbol,
		Price:  *price,
		Volume: *volume,
		Side:   domain.ParseSide(strField(data, "type")),
		Ts:     numMillis(data, "Time"),
		Seq:    strField(data, "Seq"),
	}
}

// numField reads a numeric field that may arrive as a JSON number, a numeric
// string, or not at all. Unparseable values are treated as absent.
func numField(m map[string]interface{}, key string) *decimal.Decimal {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		d := decimal.NewFromFloat(n)
		return &d
	case string:
		if n == "" {
			return nil
		}
		d, err := decimal.NewFromString(n)
		if err != nil {
			return nil
		}
		return &d
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}

func numMillis(m map[string]interface{}, key string) int64 {
	if v := numField(m, key); v != nil {
		return v.IntPart()
	}
	return 0
}

func strField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
