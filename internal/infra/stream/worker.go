package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tapefeed/internal/event"
	"tapefeed/internal/infra"

	"github.com/gorilla/websocket"
)

// Worker holds one market-stream subscription for one symbol. It owns the
// connection lifecycle: dial, channel join, read loop with deadline, and
// reconnect with exponential backoff; after maxRetries consecutive failures
// it cools down and starts the backoff schedule over.
// Missed ticks during a gap are not backfilled; the snapshot poller re-syncs
// the totals.
type Worker struct {
	wsURL     string
	authToken string
	symbol    string
	epoch     uint64
	inbox     chan<- event.Event
	metrics   *infra.Metrics

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a stream worker for one symbol subscription. All events
// it emits are tagged with the given epoch so the engine can discard them
// after the subscription is superseded.
func NewWorker(wsURL, authToken, symbol string, epoch uint64, inbox chan<- event.Event, metrics *infra.Metrics) *Worker {
	return &Worker{
		wsURL:     wsURL,
		authToken: authToken,
		symbol:    symbol,
		epoch:     epoch,
		inbox:     inbox,
		metrics:   metrics,
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// reconnectDelay returns the wait before the next dial attempt. After
// maxRetries consecutive failures it switches to a long cool-down and
// signals that the failure counter resets, so a transient outage cannot
// permanently kill the subscription.
func reconnectDelay(retry int) (time.Duration, bool) {
	if retry >= maxRetries {
		return reconnectCoolDown, true
	}
	return infra.CalculateBackoff(retry), false
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			w.metrics.IncWSReconnects()
			retryCount++
			delay, coolDown := reconnectDelay(retryCount)
			if coolDown {
				slog.Error("Stream cooling down after repeated failures",
					slog.String("symbol", w.symbol), slog.Int("attempts", retryCount), slog.Duration("cooldown", delay))
				retryCount = 0
			} else {
				slog.Warn("Stream connection failed",
					slog.Any("error", err), slog.Int("retry", retryCount), slog.Duration("delay", delay))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", infra.DefaultUserAgent)
	if w.authToken != "" {
		header.Set("Authorization", "Bearer "+w.authToken)
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	w.metrics.SetStreamConnected(true)

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	slog.Info("Stream connected", slog.String("symbol", w.symbol), slog.Uint64("epoch", w.epoch))
	return nil
}

func (w *Worker) subscribe() error {
	msg := subscribeRequest{Action: "subscribe", Symbol: w.symbol}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.threadSafeWrite(websocket.TextMessage, []byte("ping"))
		}
	}
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var env envelope
	if json.Unmarshal(msg, &env) != nil || env.Event != "marketData" {
		return
	}

	ev := parseMarketData(env.Data, w.symbol, w.epoch)
	if ev == nil {
		return
	}

	select {
	case w.inbox <- ev:
	default:
		// Never block the socket on a slow consumer.
		w.metrics.IncInboxDrops()
		event.ReleaseTickEvent(ev)
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	w.metrics.SetStreamConnected(false)
}

// IsConnected reports whether the socket is currently up.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and waits for its goroutines to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
