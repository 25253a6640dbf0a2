package event

import "tapefeed/internal/domain"

// Event is the unit of work delivered to the engine inbox. Every event
// carries the symbol and subscription epoch it was produced for, so the
// engine can discard responses that arrive after a symbol switch.
type Event interface {
	GetType() string
	GetSymbol() string
	GetEpoch() uint64
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	Symbol string
	Epoch  uint64
	Ts     int64 // unix milliseconds
}

func (b *BaseEvent) GetSymbol() string { return b.Symbol }
func (b *BaseEvent) GetEpoch() uint64  { return b.Epoch }

// SubscribeEvent resets the engine for a new symbol. It must be enqueued
// before any tick or snapshot for the new epoch; inbox ordering guarantees
// the reset is processed first.
type SubscribeEvent struct {
	BaseEvent
}

func (e *SubscribeEvent) GetType() string { return "subscribe" }

// TickEvent is one marketData message from the stream: an optional executed
// trade bundled with a partial quote update.
type TickEvent struct {
	BaseEvent

	// Tick is nil when the message carried a quote update with no trade.
	Tick *domain.Tick

	// Quote holds the fields bundled with the message; nil fields are absent.
	Quote *domain.Quote

	// Duplicate mirrors the feed's isDuplicate flag. Flagged events are
	// dropped before aggregation.
	Duplicate bool
}

func (e *TickEvent) GetType() string { return "tick" }

// SnapshotEvent is the result of a snapshot fetch: a full ladder quote and,
// when the endpoint provides them, server-computed session totals.
type SnapshotEvent struct {
	BaseEvent

	Quote  *domain.Quote
	Totals *domain.Totals
}

func (e *SnapshotEvent) GetType() string { return "snapshot" }
