package service

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/engine"
	"tapefeed/internal/event"
	"tapefeed/internal/infra"

	"github.com/shopspring/decimal"
)

func newTestService() *BoardService {
	cfg := &infra.Config{}
	cfg.Board.HistorySize = 16
	cfg.Board.InboxSize = 16
	cfg.Board.HighlightMS = 300
	return New(cfg, nil, nil)
}

func TestBoardService_Alerts(t *testing.T) {
	t.Run("Fires And Deactivates One-Shot", func(t *testing.T) {
		s := newTestService()

		var fired *domain.AlertConfig
		s.SetOnAlert(func(a *domain.AlertConfig, price decimal.Decimal) {
			fired = a
		})
		alert := domain.NewAlertConfig("SSI", decimal.NewFromInt(25000), decimal.NewFromInt(23700), false)
		s.AddAlert(alert)

		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25100"})

		if fired == nil {
			t.Fatal("alert must fire at or above target")
		}
		if alert.IsActive() {
			t.Error("one-shot alert must deactivate after firing")
		}

		// A second crossing stays silent.
		fired = nil
		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25200"})
		if fired != nil {
			t.Error("deactivated alert must not fire again")
		}
	})

	t.Run("Persistent Alert Keeps Firing", func(t *testing.T) {
		s := newTestService()

		count := 0
		s.SetOnAlert(func(a *domain.AlertConfig, price decimal.Decimal) { count++ })
		s.AddAlert(domain.NewAlertConfig("SSI", decimal.NewFromInt(25000), decimal.NewFromInt(23700), true))

		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25100"})
		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25200"})

		if count != 2 {
			t.Errorf("persistent alert must fire every crossing, got %d", count)
		}
	})

	t.Run("Symbol Scoped", func(t *testing.T) {
		s := newTestService()

		fired := false
		s.SetOnAlert(func(a *domain.AlertConfig, price decimal.Decimal) { fired = true })
		s.AddAlert(domain.NewAlertConfig("VCB", decimal.NewFromInt(1), decimal.NewFromInt(0), false))

		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25100"})
		if fired {
			t.Error("alert for another symbol must not fire")
		}
	})

	t.Run("Placeholder Price Ignored", func(t *testing.T) {
		s := newTestService()
		s.AddAlert(domain.NewAlertConfig("SSI", decimal.NewFromInt(1), decimal.NewFromInt(0), false))
		// Must not panic or fire on a board with no data yet.
		s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: engine.Placeholder})
	})
}

func TestBoardService_Handler(t *testing.T) {
	s := newTestService()
	h := s.Handler()

	t.Run("Serves Board JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("GET", "/board", nil))

		if rec.Code != 200 {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var vm engine.ViewModel
		if err := json.Unmarshal(rec.Body.Bytes(), &vm); err != nil {
			t.Fatalf("response must be a view model: %v", err)
		}
	})

	t.Run("Rejects Non-GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("POST", "/board", nil))
		if rec.Code != 405 {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

// The engine goroutine calls handleUpdate after every accepted event, and
// Subscribe enqueues into the engine inbox while holding the subscription
// lock. Those two paths must never share a mutex or a full inbox wedges the
// whole service.
func TestBoardService_EngineNeverWaitsOnSubscriptionLock(t *testing.T) {
	t.Run("Update Completes While Lock Held", func(t *testing.T) {
		s := newTestService()
		s.AddAlert(domain.NewAlertConfig("SSI", decimal.NewFromInt(25000), decimal.NewFromInt(23700), false))

		s.mu.Lock()
		defer s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.handleUpdate(engine.ViewModel{Symbol: "SSI", LastPrice: "25100"})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("board update must not wait on the subscription lock")
		}
	})

	t.Run("Symbol Switch Survives In-Flight Updates", func(t *testing.T) {
		cfg := &infra.Config{}
		cfg.Board.HistorySize = 16
		cfg.Board.InboxSize = 1
		cfg.Board.HighlightMS = 300
		s := New(cfg, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.Start(ctx)

		s.mu.Lock()
		epoch := s.engine.Subscribe("SSI")
		s.engine.Inbox() <- &event.SnapshotEvent{
			BaseEvent: event.BaseEvent{Symbol: "SSI", Epoch: epoch},
			Quote:     &domain.Quote{},
			Totals:    &domain.Totals{},
		}

		switched := make(chan struct{})
		go func() {
			s.engine.Subscribe("VCB")
			close(switched)
		}()
		select {
		case <-switched:
		case <-time.After(2 * time.Second):
			t.Fatal("symbol switch wedged behind in-flight board updates")
		}
		s.mu.Unlock()
	})
}

func TestBoardService_AcceptNeverBlocks(t *testing.T) {
	s := newTestService()
	// Fill the print queue well past capacity with no consumer running.
	for i := 0; i < 5000; i++ {
		s.Accept(domain.Tick{Symbol: "SSI", Price: decimal.NewFromInt(100), Volume: decimal.NewFromInt(1), Ts: int64(i)})
	}
}
