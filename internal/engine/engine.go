package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/event"
	"tapefeed/internal/infra"
)

// Config holds the engine tunables.
type Config struct {
	InboxSize         int
	HistorySize       int
	HighlightDuration time.Duration
}

// Engine is the single-threaded reconciliation loop: it drains snapshot and
// tick events from its inbox, applies them to the per-symbol BookState,
// diffs the tracked fields, and republishes the projected view model.
//
// Run MUST execute in exactly one goroutine. External readers only ever see
// a copied ViewModel taken under the read lock; BookState itself is never
// shared.
type Engine struct {
	inbox   chan event.Event
	book    *BookState
	tracker *HighlightTracker

	// epoch is bumped by Subscribe; the loop adopts it when the matching
	// SubscribeEvent is processed. Events tagged with any other epoch or
	// symbol are stale and discarded.
	epoch     atomic.Uint64
	curSymbol string
	curEpoch  uint64

	sink     domain.PrintSink
	onUpdate func(ViewModel)
	metrics  *infra.Metrics

	mu sync.RWMutex // guards vm for external reads only
	vm ViewModel

	now func() time.Time
}

// New creates an engine. sink and onUpdate may be nil.
func New(cfg Config, metrics *infra.Metrics, sink domain.PrintSink, onUpdate func(ViewModel)) *Engine {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 256
	}
	return &Engine{
		inbox:    make(chan event.Event, cfg.InboxSize),
		book:     NewBookState("", cfg.HistorySize),
		tracker:  NewHighlightTracker(cfg.HighlightDuration),
		sink:     sink,
		onUpdate: onUpdate,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Inbox returns the event channel. Adapters send events here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// Subscribe switches the engine to a new symbol. It allocates the next
// subscription epoch, enqueues the reset ahead of any data the new adapters
// will produce, and returns the epoch those adapters must tag their events
// with. Inbox ordering guarantees the reset is processed before new data.
func (e *Engine) Subscribe(symbol string) uint64 {
	ep := e.epoch.Add(1)
	e.inbox <- &event.SubscribeEvent{BaseEvent: event.BaseEvent{Symbol: symbol, Epoch: ep}}
	return ep
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started (single-thread hotpath)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return
		case ev := <-e.inbox:
			e.processEvent(ev)
		}
	}
}

func (e *Engine) processEvent(ev event.Event) {
	switch msg := ev.(type) {
	case *event.SubscribeEvent:
		e.handleSubscribe(msg)
	case *event.SnapshotEvent:
		e.handleSnapshot(msg)
	case *event.TickEvent:
		e.handleTick(msg)
		event.ReleaseTickEvent(msg)
	default:
		slog.Warn("Unknown event type", slog.String("type", ev.GetType()))
	}
}

func (e *Engine) handleSubscribe(msg *event.SubscribeEvent) {
	e.curSymbol = msg.Symbol
	e.curEpoch = msg.Epoch
	e.book.Reset(msg.Symbol)
	e.tracker.Reset()
	e.publish()
	slog.Info("Subscribed", slog.String("symbol", msg.Symbol), slog.Uint64("epoch", msg.Epoch))
}

// stale reports whether an event belongs to a superseded subscription. A
// response for the previous symbol that lands after a fast switch is silently
// dropped here instead of corrupting the new symbol's board.
func (e *Engine) stale(ev event.Event) bool {
	if ev.GetEpoch() == e.curEpoch && ev.GetSymbol() == e.curSymbol {
		return false
	}
	e.metrics.IncStaleDropped()
	slog.Debug("Dropping stale event",
		slog.String("type", ev.GetType()),
		slog.String("symbol", ev.GetSymbol()),
		slog.Uint64("epoch", ev.GetEpoch()),
	)
	return true
}

func (e *Engine) handleSnapshot(msg *event.SnapshotEvent) {
	if e.stale(msg) {
		return
	}
	e.book.ApplySnapshot(msg.Quote, msg.Totals)
	e.publish()
}

func (e *Engine) handleTick(msg *event.TickEvent) {
	if e.stale(msg) {
		return
	}
	if msg.Duplicate {
		e.metrics.IncDuplicatesDropped()
		return
	}

	if msg.Tick != nil {
		switch err := e.book.ApplyTick(*msg.Tick); err {
		case nil:
			e.metrics.IncTicksAccepted()
			if e.sink != nil {
				e.sink.Accept(*msg.Tick)
			}
		case domain.ErrDuplicateTick:
			e.metrics.IncDuplicatesDropped()
		case domain.ErrMalformedTick:
			e.metrics.IncMalformedDropped()
			slog.Warn("Dropping malformed tick", slog.String("symbol", msg.Symbol))
		}
	}

	// Quote fields arrive bundled with the trade in the same message; they
	// apply even when the trade record itself was unusable.
	e.book.Quote.Merge(msg.Quote)
	e.publish()
}

// publish runs the diff-and-mark cycle and republishes the view model.
func (e *Engine) publish() {
	now := e.now()
	e.tracker.DiffAndMark(e.book.FieldValues(), now)
	vm := BuildViewModel(e.book, e.tracker.Active(now), now)

	e.mu.Lock()
	e.vm = vm
	e.mu.Unlock()

	if e.onUpdate != nil {
		e.onUpdate(vm)
	}
}

// ViewModel returns a copy of the current board (external read).
func (e *Engine) ViewModel() ViewModel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vm
}

// DumpState writes the book to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Symbol          string        `json:"symbol"`
		Epoch           uint64        `json:"epoch"`
		Quote           domain.Quote  `json:"quote"`
		TotalVolume     string        `json:"total_volume"`
		TotalBuyVolume  string        `json:"total_buy_volume"`
		TotalSellVolume string        `json:"total_sell_volume"`
		Prints          []domain.Tick `json:"prints"`
	}{
		Symbol:          e.book.Symbol,
		Epoch:           e.curEpoch,
		Quote:           e.book.Quote,
		TotalVolume:     e.book.TotalVolume.String(),
		TotalBuyVolume:  e.book.TotalBuyVolume.String(),
		TotalSellVolume: e.book.TotalSellVolume.String(),
		Prints:          e.book.RecentPrints(e.book.HistoryLen()),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
