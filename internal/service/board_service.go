package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/engine"
	"tapefeed/internal/infra"
	"tapefeed/internal/infra/snapshot"
	"tapefeed/internal/infra/stream"
	"tapefeed/internal/infra/storage"

	"github.com/shopspring/decimal"
)

const (
	printBatchSize  = 64
	printFlushEvery = 500 * time.Millisecond
	pruneEveryFlush = 20
)

// BoardService hosts the reconciliation engine for one active symbol: it
// owns the subscription lifecycle (stream worker + snapshot poller per
// epoch), persists accepted prints, checks price alerts, and serves the
// current board over HTTP.
type BoardService struct {
	cfg     *infra.Config
	engine  *engine.Engine
	store   *storage.Storage
	metrics *infra.Metrics

	mu     sync.Mutex // guards subscription swap only
	stream domain.StreamWorker
	snap   domain.SnapshotProvider

	// alertMu is separate from mu: handleUpdate runs on the engine
	// goroutine, and the engine must never wait on a Subscribe in
	// progress or the inbox can wedge both sides.
	alertMu sync.Mutex
	alerts  []*domain.AlertConfig
	onAlert func(alert *domain.AlertConfig, price decimal.Decimal)

	printCh chan domain.Tick
	wg      sync.WaitGroup
}

// New creates the service and its engine. store may be nil (prints are then
// kept in memory only).
func New(cfg *infra.Config, store *storage.Storage, metrics *infra.Metrics) *BoardService {
	s := &BoardService{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		printCh: make(chan domain.Tick, 1024),
	}
	s.engine = engine.New(engine.Config{
		InboxSize:         cfg.Board.InboxSize,
		HistorySize:       cfg.Board.HistorySize,
		HighlightDuration: time.Duration(cfg.Board.HighlightMS) * time.Millisecond,
	}, metrics, s, s.handleUpdate)
	return s
}

// Start launches the engine loop and the print persister.
func (s *BoardService) Start(ctx context.Context) {
	go s.engine.Run(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persistLoop(ctx)
	}()
}

// Subscribe switches the board to a new symbol: the previous stream
// subscription and snapshot poller are stopped first, then the engine resets
// under a fresh epoch, then new adapters start tagged with that epoch. Any
// in-flight response from the old subscription carries a stale epoch and is
// discarded by the engine.
func (s *BoardService) Subscribe(ctx context.Context, symbol string) error {
	if symbol == "" {
		return domain.ErrInvalidSymbol
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil {
		s.snap.Stop()
		s.snap = nil
	}
	if s.stream != nil {
		s.stream.Disconnect()
		s.stream = nil
	}

	epoch := s.engine.Subscribe(symbol)

	s.stream = stream.NewWorker(
		s.cfg.API.Stream.WSURL,
		s.cfg.API.Stream.AuthToken,
		symbol,
		epoch,
		s.engine.Inbox(),
		s.metrics,
	)
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}

	s.snap = snapshot.NewClient(
		s.cfg.API.Snapshot.RestURL,
		s.cfg.API.Snapshot.PollIntervalSec,
		symbol,
		epoch,
		s.engine.Inbox(),
		s.metrics,
	)
	return s.snap.Start(ctx)
}

// Unsubscribe stops the active subscription, leaving the last board visible.
func (s *BoardService) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil {
		s.snap.Stop()
		s.snap = nil
	}
	if s.stream != nil {
		s.stream.Disconnect()
		s.stream = nil
	}
}

// ViewModel returns a copy of the current board.
func (s *BoardService) ViewModel() engine.ViewModel {
	return s.engine.ViewModel()
}

// Accept implements domain.PrintSink: accepted ticks queue for persistence
// without ever blocking the engine loop.
func (s *BoardService) Accept(tick domain.Tick) {
	select {
	case s.printCh <- tick:
	default:
	}
}

// AddAlert registers a price alert checked on every board update.
func (s *BoardService) AddAlert(a *domain.AlertConfig) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	s.alerts = append(s.alerts, a)
}

// SetOnAlert sets the callback fired when an alert condition is met.
func (s *BoardService) SetOnAlert(f func(alert *domain.AlertConfig, price decimal.Decimal)) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	s.onAlert = f
}

// handleUpdate runs on the engine goroutine after every accepted event.
func (s *BoardService) handleUpdate(vm engine.ViewModel) {
	if vm.LastPrice == engine.Placeholder {
		return
	}
	price, err := decimal.NewFromString(vm.LastPrice)
	if err != nil {
		return
	}

	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	for _, a := range s.alerts {
		if a.Symbol != vm.Symbol || !a.CheckCondition(price) {
			continue
		}
		slog.Info("PRICE_ALERT",
			slog.String("symbol", a.Symbol),
			slog.String("target", a.TargetPrice.String()),
			slog.String("price", price.String()),
		)
		if s.onAlert != nil {
			s.onAlert(a, price)
		}
		if !a.IsPersistent {
			a.SetActive(false)
		}
	}
}

// persistLoop batches accepted prints into storage and prunes old rows.
func (s *BoardService) persistLoop(ctx context.Context) {
	if s.store == nil {
		return
	}

	ticker := time.NewTicker(printFlushEvery)
	defer ticker.Stop()

	batch := make([]domain.PrintRecord, 0, printBatchSize)
	flushes := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.SavePrints(batch); err != nil {
			slog.Error("Failed to persist prints", slog.Any("error", err))
		} else {
			s.metrics.AddPrintsPersisted(len(batch))
			flushes++
			if flushes%pruneEveryFlush == 0 && s.cfg.Board.PrintsRetention > 0 {
				if err := s.store.PrunePrints(batch[0].Symbol, s.cfg.Board.PrintsRetention); err != nil {
					slog.Warn("Failed to prune prints", slog.Any("error", err))
				}
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case tick := <-s.printCh:
			batch = append(batch, domain.PrintRecord{
				Symbol:   tick.Symbol,
				Price:    tick.Price.String(),
				Volume:   tick.Volume.String(),
				Side:     tick.Side.String(),
				Ts:       tick.Ts,
				DedupKey: tick.DedupKey(),
			})
			if len(batch) >= printBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Handler serves the current board as JSON (GET /board).
func (s *BoardService) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vm := s.engine.ViewModel()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(vm); err != nil {
			slog.Error("Failed to encode board", slog.Any("error", err))
		}
	}
}
