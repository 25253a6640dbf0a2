package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/event"
	"tapefeed/internal/infra"

	"github.com/shopspring/decimal"
)

const snapshotPath = "/mua_ban_chu_dong_short"

// row is one snapshot record from the REST endpoint. The endpoint serves a
// short ladder (three levels per side) plus the server-computed session
// totals; missing fields stay nil.
type row struct {
	TotalVol     *float64 `json:"TotalVol"`
	TotalBuyVol  *float64 `json:"TotalBuyVol"`
	TotalSellVol *float64 `json:"TotalSellVol"`

	BidPrice1 *float64 `json:"BidPrice1"`
	BidPrice2 *float64 `json:"BidPrice2"`
	BidPrice3 *float64 `json:"BidPrice3"`
	BidVol1   *float64 `json:"BidVol1"`
	BidVol2   *float64 `json:"BidVol2"`
	BidVol3   *float64 `json:"BidVol3"`
	AskPrice1 *float64 `json:"AskPrice1"`
	AskPrice2 *float64 `json:"AskPrice2"`
	AskPrice3 *float64 `json:"AskPrice3"`
	AskVol1   *float64 `json:"AskVol1"`
	AskVol2   *float64 `json:"AskVol2"`
	AskVol3   *float64 `json:"AskVol3"`
}

type response struct {
	Data []row `json:"data"`
}

// Client polls the snapshot endpoint for one symbol subscription and feeds
// SnapshotEvents into the engine inbox. The first array element is the
// latest snapshot. Every successful fetch re-syncs the engine's totals from
// the server-computed values; drift accrued from the stream between fetches
// is accepted.
type Client struct {
	baseURL      string
	symbol       string
	epoch        uint64
	inbox        chan<- event.Event
	metrics      *infra.Metrics
	pollInterval time.Duration
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewClient creates a snapshot poller for one symbol subscription.
func NewClient(baseURL string, pollIntervalSec int, symbol string, epoch uint64, inbox chan<- event.Event, metrics *infra.Metrics) *Client {
	interval := 60 * time.Second
	if pollIntervalSec > 0 {
		interval = time.Duration(pollIntervalSec) * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		symbol:       symbol,
		epoch:        epoch,
		inbox:        inbox,
		metrics:      metrics,
		pollInterval: interval,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start fetches immediately and keeps polling until Stop or context cancel.
// All fetching happens on the poll goroutine: a slow endpoint must never
// stall the caller (Subscribe runs this during a symbol switch).
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Snapshot polling panic recovered", slog.Any("panic", r))
			}
		}()

		if err := c.fetchSnapshot(ctx); err != nil {
			slog.Warn("Initial snapshot fetch failed", slog.String("symbol", c.symbol), slog.Any("error", err))
			// Will retry on the next tick
		}

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Snapshot polling stopped", slog.String("symbol", c.symbol))
				return
			case <-ticker.C:
				if err := c.fetchSnapshot(ctx); err != nil {
					c.metrics.IncSnapshotErrors()
					slog.Warn("Snapshot fetch failed", slog.String("symbol", c.symbol), slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchSnapshot fetches the current snapshot with retry logic. A failed
// fetch leaves the engine's prior state intact.
func (c *Client) fetchSnapshot(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := infra.CalculateBackoff(i - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Snapshot fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *Client) doFetch(ctx context.Context) error {
	u := fmt.Sprintf("%s%s?symbol=%s", c.baseURL, snapshotPath, url.QueryEscape(c.symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}
	if len(data.Data) == 0 {
		return domain.ErrEmptySnapshot
	}

	ev := buildEvent(data.Data[0], c.symbol, c.epoch)
	select {
	case c.inbox <- ev:
		c.metrics.IncSnapshotFetches()
	default:
		c.metrics.IncInboxDrops()
	}
	return nil
}

// buildEvent converts the latest snapshot row into an engine event.
func buildEvent(r row, symbol string, epoch uint64) *event.SnapshotEvent {
	quote := &domain.Quote{}
	bidPrices := []*float64{r.BidPrice1, r.BidPrice2, r.BidPrice3}
	bidVols := []*float64{r.BidVol1, r.BidVol2, r.BidVol3}
	askPrices := []*float64{r.AskPrice1, r.AskPrice2, r.AskPrice3}
	askVols := []*float64{r.AskVol1, r.AskVol2, r.AskVol3}
	for i := 0; i < 3; i++ {
		quote.Bids[i].Price = toDec(bidPrices[i])
		quote.Bids[i].Volume = toDec(bidVols[i])
		quote.Asks[i].Price = toDec(askPrices[i])
		quote.Asks[i].Volume = toDec(askVols[i])
	}

	return &event.SnapshotEvent{
		BaseEvent: event.BaseEvent{
			Symbol: symbol,
			Epoch:  epoch,
			Ts:     time.Now().UnixMilli(),
		},
		Quote: quote,
		Totals: &domain.Totals{
			Volume:     toDec(r.TotalVol),
			BuyVolume:  toDec(r.TotalBuyVol),
			SellVolume: toDec(r.TotalSellVol),
		},
	}
}

func toDec(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

// Stop stops the polling
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}
